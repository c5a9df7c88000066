package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-checkout-core.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-core.git/internal/gateway"
	kafkax "github.com/ariefcatur/go-checkout-core.git/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Ledger = porsi store yang dibutuhkan reconciliation. *checkout.Repo memenuhinya.
type Ledger interface {
	FindByProviderRef(ctx context.Context, providerTxID, reference string) (*checkout.Transaction, error)
	GetTransactionByPublicNumber(ctx context.Context, publicNumber string) (*checkout.Transaction, error)
	SetProviderResult(ctx context.Context, txID, providerTxID, providerRef string) error
	ApplyOutcome(ctx context.Context, txID, stockUnitID string, target checkout.Status) (checkout.ApplyResult, error)
	InsertEventIfNew(ctx context.Context, ev *checkout.WebhookEvent) (bool, error)
	MarkEvent(ctx context.Context, id string, status checkout.EventStatus, errMsg string) error
}

type Gateway interface {
	GetTransaction(ctx context.Context, providerTxID string) (gateway.ProviderTransaction, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Engine = state machine inti: outcome provider (webhook push atau poll)
// diterapkan ke Transaction + StockUnit secara atomik, exactly once.
type Engine struct {
	Ledger       Ledger
	Gateway      Gateway
	Producer     Publisher // topic checkout.transaction.finalized; boleh nil
	EventsSecret string
	ServiceName  string
}

type WebhookResult struct {
	OK        bool   `json:"ok"`
	Ignored   bool   `json:"ignored,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleWebhook: verifikasi signature -> dedup by event id -> reconcile.
// Error internal SETELAH row event tercatat tidak dilempar keluar: dicatat di
// WebhookEvent (status ERROR) dan tetap di-ACK, supaya provider tidak retry
// tanpa batas. Signature invalid satu-satunya yang ditolak mentah.
func (e *Engine) HandleWebhook(ctx context.Context, raw []byte, signatureHeader string) (*WebhookResult, error) {
	var ev ProviderEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode provider event: %w", err)
	}

	if !VerifySignature(raw, &ev, signatureHeader, e.EventsSecret) {
		return nil, checkout.ErrInvalidSignature
	}

	eventID := EventID(&ev)
	inserted, err := e.Ledger.InsertEventIfNew(ctx, &checkout.WebhookEvent{
		ID:           eventID,
		EventType:    ev.Event,
		ProviderTxID: ev.Data.Transaction.ID,
		Payload:      raw,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Delivery kedua dari event logis yang sama: skip sebelum side effect apa pun.
		return &WebhookResult{OK: true, Ignored: true, Duplicate: true, Reason: "duplicate event"}, nil
	}

	out, rerr := e.reconcile(ctx,
		ev.Data.Transaction.ID, ev.Data.Transaction.Reference, ev.Data.Transaction.Status, "webhook")
	if rerr != nil {
		_ = e.Ledger.MarkEvent(ctx, eventID, checkout.EventError, rerr.Error())
		return &WebhookResult{OK: false, Error: rerr.Error()}, nil
	}

	status := checkout.EventProcessed
	if out.ignored {
		status = checkout.EventIgnored
	}
	if err := e.Ledger.MarkEvent(ctx, eventID, status, ""); err != nil {
		return &WebhookResult{OK: false, Error: err.Error()}, nil
	}
	return &WebhookResult{OK: true, Ignored: out.ignored, Reason: out.reason}, nil
}

type SyncResult struct {
	Found          bool            `json:"found"`
	Synced         bool            `json:"synced"`
	Reason         string          `json:"reason,omitempty"`
	ProviderStatus string          `json:"provider_status,omitempty"`
	Status         checkout.Status `json:"status,omitempty"`
}

// Sync: fallback polling kalau webhook tidak sampai. No-op kalau transaksi
// sudah final atau provider belum final.
func (e *Engine) Sync(ctx context.Context, publicNumber string) (*SyncResult, error) {
	tx, err := e.Ledger.GetTransactionByPublicNumber(ctx, publicNumber)
	if err != nil {
		if err == checkout.ErrNotFound {
			return &SyncResult{Found: false, Reason: "TRANSACTION_NOT_FOUND"}, nil
		}
		return nil, err
	}
	if tx.Status.Final() {
		return &SyncResult{Found: true, Reason: "ALREADY_FINAL", Status: tx.Status}, nil
	}
	if tx.ProviderTransactionID == "" {
		return &SyncResult{Found: true, Reason: "NO_PROVIDER_TRANSACTION_ID", Status: tx.Status}, nil
	}

	remote, err := e.Gateway.GetTransaction(ctx, tx.ProviderTransactionID)
	if err != nil {
		return nil, err
	}
	providerStatus := strings.ToUpper(remote.Status)
	if checkout.MapProviderStatus(providerStatus) == "" {
		return &SyncResult{Found: true, Reason: "PROVIDER_STATUS_NOT_FINAL",
			ProviderStatus: providerStatus, Status: tx.Status}, nil
	}

	out, err := e.reconcile(ctx, tx.ProviderTransactionID, tx.PublicNumber, providerStatus, "sync")
	if err != nil {
		return nil, err
	}
	res := &SyncResult{Found: true, Synced: !out.ignored, ProviderStatus: providerStatus,
		Reason: out.reason, Status: out.finalStatus}
	if out.ignored {
		res.Status = tx.Status
	}
	return res, nil
}

type outcome struct {
	ignored     bool
	reason      string
	finalStatus checkout.Status
}

// reconcile = prosedur bersama kedua entry point.
// Serialisasi murni di store: "update only if still PENDING" + CAS stock unit.
func (e *Engine) reconcile(ctx context.Context, providerTxID, reference, providerStatus, source string) (*outcome, error) {
	target := checkout.MapProviderStatus(strings.ToUpper(providerStatus))
	if target == "" {
		return &outcome{ignored: true, reason: "provider status not final"}, nil
	}

	tx, err := e.Ledger.FindByProviderRef(ctx, providerTxID, reference)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		// Tidak pernah bikin transaksi dari event provider.
		return &outcome{ignored: true, reason: "local transaction not found"}, nil
	}
	if tx.Status.Final() {
		return &outcome{ignored: true, reason: "already final"}, nil
	}

	// Backfill provider id kalau pay step sempat crash sebelum persist
	// (no-op kalau kolom sudah terisi).
	if providerTxID != "" {
		if err := e.Ledger.SetProviderResult(ctx, tx.ID, providerTxID, reference); err != nil {
			return nil, err
		}
	}

	applied, err := e.Ledger.ApplyOutcome(ctx, tx.ID, tx.StockUnitID, target)
	if err != nil {
		return nil, err
	}

	switch applied {
	case checkout.ApplyAlreadyFinal:
		return &outcome{ignored: true, reason: "already final"}, nil
	case checkout.ApplyReservationExpired:
		e.publishFinalized(tx, checkout.StatusError, source)
		return &outcome{reason: "reservation expired before approval", finalStatus: checkout.StatusError}, nil
	default:
		e.publishFinalized(tx, target, source)
		return &outcome{finalStatus: target}, nil
	}
}

func (e *Engine) publishFinalized(tx *checkout.Transaction, final checkout.Status, source string) {
	if e.Producer == nil {
		return
	}
	env := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventTransactionFinalized,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.ServiceName,
		CorrelationID: tx.ID,
		Payload: kafkax.MustMarshal(checkout.TransactionFinalizedPayload{
			TransactionID: tx.ID,
			PublicNumber:  tx.PublicNumber,
			FinalStatus:   final,
			StockUnitID:   tx.StockUnitID,
			Source:        source,
		}),
	}
	e.Producer.Publish(checkout.PartitionKey(tx.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventTransactionFinalized)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
