package checkout

import "time"

type Product struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StockUnit = satu unit fisik/virtual yang bisa dijual.
// status + reserved_* hanya boleh berubah lewat conditional update (CAS di status).
type StockUnit struct {
	ID             string      `json:"id"`
	ProductID      string      `json:"product_id"`
	Status         StockStatus `json:"status"`
	ReservedUntil  *time.Time  `json:"reserved_until,omitempty"`
	ReservedByTxID *string     `json:"reserved_by_tx_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

type Customer struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

// Delivery: snapshot alamat saat order; immutable setelah dibuat.
type Delivery struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer_id"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code,omitempty"`
	Notes       string `json:"notes,omitempty"`
	FeeCents    int    `json:"fee_cents"`
}

type Transaction struct {
	ID             string `json:"id"`
	IdempotencyKey string `json:"-"`
	PublicNumber   string `json:"public_number"`
	Status         Status `json:"status"`

	ProductID   string `json:"product_id"`
	CustomerID  string `json:"customer_id"`
	DeliveryID  string `json:"delivery_id"`
	StockUnitID string `json:"stock_unit_id,omitempty"` // kosong sampai reservasi sukses

	AmountProductCents int    `json:"amount_product_cents"`
	FeeBaseCents       int    `json:"fee_base_cents"`
	FeeDeliveryCents   int    `json:"fee_delivery_cents"`
	AmountTotalCents   int    `json:"amount_total_cents"`
	Currency           string `json:"currency"`

	ProviderTransactionID string    `json:"provider_transaction_id,omitempty"`
	ProviderReference     string    `json:"provider_reference,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// WebhookEvent = ledger dedup untuk notifikasi inbound provider.
type WebhookEvent struct {
	ID           string      `json:"id"` // event id stabil (dari provider, atau hash deterministik)
	EventType    string      `json:"event_type"`
	ProviderTxID string      `json:"provider_tx_id"`
	Status       EventStatus `json:"status"`
	Payload      []byte      `json:"-"`
	ErrorMessage string      `json:"error_message,omitempty"`
	ReceivedAt   time.Time   `json:"received_at"`
	ProcessedAt  *time.Time  `json:"processed_at,omitempty"`
}

// TransactionSnapshot dikembalikan ke client saat init/replay.
type TransactionSnapshot struct {
	TransactionID    string     `json:"transaction_id"`
	PublicNumber     string     `json:"public_number"`
	Status           Status     `json:"status"`
	AmountTotalCents int        `json:"amount_total_cents"`
	Currency         string     `json:"currency"`
	StockUnitID      string     `json:"stock_unit_id,omitempty"`
	ReservedUntil    *time.Time `json:"reserved_until,omitempty"`
	IdempotentReplay bool       `json:"idempotent_replay"`
}
