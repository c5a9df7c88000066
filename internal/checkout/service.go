package checkout

import (
	"context"
	"time"

	"github.com/ariefcatur/go-checkout-core.git/internal/gateway"
)

const (
	BaseFeeCents            = 3000
	DefaultDeliveryFeeCents = 5000
	ReservationTTL          = 10 * time.Minute
)

// Ledger = porsi store yang dibutuhkan orchestrator. *Repo memenuhinya;
// test pakai fake in-memory.
type Ledger interface {
	FindTransactionByIdemKey(ctx context.Context, key string) (*Transaction, *time.Time, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	CreateCheckout(ctx context.Context, p CreateCheckoutParams) (*TransactionSnapshot, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	GetStockUnit(ctx context.Context, id string) (*StockUnit, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	SetProviderResult(ctx context.Context, txID, providerTxID, providerRef string) error
}

type Gateway interface {
	TokenizeCard(ctx context.Context, card gateway.Card) (string, error)
	AcceptanceTokens(ctx context.Context) (gateway.Tokens, error)
	CreateTransaction(ctx context.Context, in gateway.CreateTransactionInput) (gateway.ProviderTransaction, error)
}

type Service struct {
	Ledger         Ledger
	Gateway        Gateway
	MinAmountCents int
	Now            func() time.Time // nil = time.Now
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type InitInput struct {
	IdempotencyKey string
	ProductID      string
	Customer       CustomerInput
	Delivery       DeliveryInput
}

// InitCheckout: idempotent by key. Replay balikin snapshot transaksi yang sudah
// ada (termasuk expiry reservasi live) tanpa side effect baru.
func (s *Service) InitCheckout(ctx context.Context, in InitInput) (*TransactionSnapshot, error) {
	if in.IdempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}

	existing, reservedUntil, err := s.Ledger.FindTransactionByIdemKey(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &TransactionSnapshot{
			TransactionID:    existing.ID,
			PublicNumber:     existing.PublicNumber,
			Status:           existing.Status,
			AmountTotalCents: existing.AmountTotalCents,
			Currency:         existing.Currency,
			StockUnitID:      existing.StockUnitID,
			ReservedUntil:    reservedUntil,
			IdempotentReplay: true,
		}, nil
	}

	product, err := s.Ledger.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	total := product.PriceCents + BaseFeeCents + DefaultDeliveryFeeCents

	// Upsert customer + delivery + reserve + create tx = satu atomic unit di store.
	// ErrConflict (unique violation / kandidat keburu diambil) retryable buat caller.
	return s.Ledger.CreateCheckout(ctx, CreateCheckoutParams{
		IdempotencyKey:   in.IdempotencyKey,
		PublicNumber:     NewPublicNumber(now),
		Product:          product,
		Customer:         in.Customer,
		Delivery:         in.Delivery,
		FeeBaseCents:     BaseFeeCents,
		FeeDeliveryCents: DefaultDeliveryFeeCents,
		AmountTotalCents: total,
		ReservedUntil:    now.Add(ReservationTTL),
	})
}

type ProviderPaymentSnapshot struct {
	TransactionID         string `json:"transaction_id"`
	PublicNumber          string `json:"public_number"`
	ProviderTransactionID string `json:"provider_transaction_id"`
	ProviderStatus        string `json:"provider_status"`
	ProviderReference     string `json:"provider_reference"`
	IdempotentReplay      bool   `json:"idempotent_replay"`
}

// PayCheckout trigger pembayaran di provider untuk transaksi PENDING yang ada.
// Tidak pernah mengubah Transaction.status, itu urusan reconciliation.
// Gateway call + persist hasilnya sequential, bukan atomic; crash di antaranya
// ditutup karena call ini idempotent replay by provider_transaction_id.
func (s *Service) PayCheckout(ctx context.Context, txID string, card gateway.Card, installments int) (*ProviderPaymentSnapshot, error) {
	tx, err := s.Ledger.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusPending {
		return nil, ErrInvalidState
	}

	if tx.ProviderTransactionID != "" {
		// Sudah pernah submit, jangan bayar dua kali.
		return &ProviderPaymentSnapshot{
			TransactionID:         tx.ID,
			PublicNumber:          tx.PublicNumber,
			ProviderTransactionID: tx.ProviderTransactionID,
			ProviderStatus:        string(StatusPending),
			ProviderReference:     tx.ProviderReference,
			IdempotentReplay:      true,
		}, nil
	}

	if err := s.checkReservation(ctx, tx); err != nil {
		return nil, err
	}

	if tx.AmountTotalCents < s.MinAmountCents {
		return nil, ErrAmountTooLow
	}

	customer, err := s.Ledger.GetCustomer(ctx, tx.CustomerID)
	if err != nil {
		return nil, err
	}

	cardToken, err := s.Gateway.TokenizeCard(ctx, card)
	if err != nil {
		return nil, err
	}
	tokens, err := s.Gateway.AcceptanceTokens(ctx)
	if err != nil {
		return nil, err
	}

	remote, err := s.Gateway.CreateTransaction(ctx, gateway.CreateTransactionInput{
		AmountCents:   tx.AmountTotalCents,
		Currency:      tx.Currency,
		Reference:     tx.PublicNumber,
		CustomerEmail: customer.Email,
		Tokens:        tokens,
		CardToken:     cardToken,
		Installments:  installments,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Ledger.SetProviderResult(ctx, tx.ID, remote.ID, remote.Reference); err != nil {
		return nil, err
	}

	return &ProviderPaymentSnapshot{
		TransactionID:         tx.ID,
		PublicNumber:          tx.PublicNumber,
		ProviderTransactionID: remote.ID,
		ProviderStatus:        remote.Status,
		ProviderReference:     remote.Reference,
	}, nil
}

// checkReservation: unit harus masih RESERVED milik transaksi ini dan TTL belum lewat.
func (s *Service) checkReservation(ctx context.Context, tx *Transaction) error {
	if tx.StockUnitID == "" {
		return ErrReservationExpired
	}
	unit, err := s.Ledger.GetStockUnit(ctx, tx.StockUnitID)
	if err != nil {
		return err
	}
	if unit.Status != StockReserved {
		return ErrReservationExpired
	}
	if unit.ReservedByTxID == nil || *unit.ReservedByTxID != tx.ID {
		return ErrReservationExpired
	}
	if unit.ReservedUntil == nil || unit.ReservedUntil.Before(s.now()) {
		return ErrReservationExpired
	}
	return nil
}
