package checkout

import (
	"encoding/json"
	"time"
)

const (
	EventCheckoutInitiated    = "CheckoutInitiated"
	EventTransactionFinalized = "TransactionFinalized"
	EventStockReleased        = "StockReleased"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "checkout-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya transaction_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type CheckoutInitiatedPayload struct {
	TransactionID    string    `json:"transaction_id"`
	PublicNumber     string    `json:"public_number"`
	ProductID        string    `json:"product_id"`
	StockUnitID      string    `json:"stock_unit_id"`
	AmountTotalCents int       `json:"amount_total_cents"`
	Currency         string    `json:"currency"`
	ReservedUntil    time.Time `json:"reserved_until"`
}

// Source: "webhook" | "sync" | "sweeper"
type TransactionFinalizedPayload struct {
	TransactionID string `json:"transaction_id"`
	PublicNumber  string `json:"public_number"`
	FinalStatus   Status `json:"final_status"`
	StockUnitID   string `json:"stock_unit_id,omitempty"`
	Source        string `json:"source"`
}

type StockReleasedPayload struct {
	StockUnitID   string `json:"stock_unit_id"`
	ProductID     string `json:"product_id"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason"` // e.g., RESERVATION_EXPIRED | PAYMENT_DECLINED
}
