package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/go-checkout-core.git/internal/checkout"
	"github.com/go-chi/chi/v5"
)

type fakeTxReader struct {
	tx       *checkout.Transaction
	customer *checkout.Customer
	delivery *checkout.Delivery
}

func (f *fakeTxReader) GetTransactionByPublicNumber(_ context.Context, publicNumber string) (*checkout.Transaction, error) {
	if f.tx == nil || f.tx.PublicNumber != publicNumber {
		return nil, checkout.ErrNotFound
	}
	return f.tx, nil
}

func (f *fakeTxReader) GetCustomer(_ context.Context, id string) (*checkout.Customer, error) {
	if f.customer == nil || f.customer.ID != id {
		return nil, checkout.ErrNotFound
	}
	return f.customer, nil
}

func (f *fakeTxReader) GetDelivery(_ context.Context, id string) (*checkout.Delivery, error) {
	if f.delivery == nil || f.delivery.ID != id {
		return nil, checkout.ErrNotFound
	}
	return f.delivery, nil
}

func TestGetTransactionDetail(t *testing.T) {
	store := &fakeTxReader{
		tx: &checkout.Transaction{
			ID:           "tx-1",
			PublicNumber: "TX-20240307-ABC123",
			Status:       checkout.StatusApproved,
			CustomerID:   "cust-1",
			DeliveryID:   "del-1",
		},
		customer: &checkout.Customer{ID: "cust-1", FullName: "Jane Roe", Email: "jane@example.com"},
		delivery: &checkout.Delivery{
			ID: "del-1", CustomerID: "cust-1",
			AddressLine: "Calle 1 #2-3", City: "Bogota", State: "DC", FeeCents: 5000,
		},
	}
	r := chi.NewRouter()
	(&TransactionsHandler{Repo: store}).Register(r)

	req := httptest.NewRequest(http.MethodGet, "/transactions/TX-20240307-ABC123", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Transaction checkout.Transaction `json:"transaction"`
		Customer    checkout.Customer    `json:"customer"`
		Delivery    checkout.Delivery    `json:"delivery"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Transaction.PublicNumber != "TX-20240307-ABC123" {
		t.Fatalf("unexpected transaction %+v", body.Transaction)
	}
	if body.Customer.Email != "jane@example.com" {
		t.Fatalf("unexpected customer %+v", body.Customer)
	}
	if body.Delivery.AddressLine != "Calle 1 #2-3" || body.Delivery.FeeCents != 5000 {
		t.Fatalf("unexpected delivery %+v", body.Delivery)
	}
}

func TestGetTransactionDetailNotFound(t *testing.T) {
	r := chi.NewRouter()
	(&TransactionsHandler{Repo: &fakeTxReader{}}).Register(r)

	req := httptest.NewRequest(http.MethodGet, "/transactions/TX-20240307-NOPE", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

type fakeEventStore struct {
	events map[string]*checkout.WebhookEvent
}

func (f *fakeEventStore) GetEvent(_ context.Context, id string) (*checkout.WebhookEvent, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, checkout.ErrNotFound
	}
	return ev, nil
}

func TestGetWebhookEvent(t *testing.T) {
	processed := time.Date(2024, 3, 7, 10, 5, 0, 0, time.UTC)
	store := &fakeEventStore{events: map[string]*checkout.WebhookEvent{
		"evt-1": {
			ID:           "evt-1",
			EventType:    "transaction.updated",
			ProviderTxID: "prov-1",
			Status:       checkout.EventError,
			ErrorMessage: "apply outcome: context deadline exceeded",
			ProcessedAt:  &processed,
		},
	}}
	r := chi.NewRouter()
	(&WebhookHandler{Events: store}).Register(r)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/provider/events/evt-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var ev checkout.WebhookEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if ev.Status != checkout.EventError || ev.ErrorMessage == "" {
		t.Fatalf("expected recorded failure to be visible, got %+v", ev)
	}

	req = httptest.NewRequest(http.MethodGet, "/webhooks/provider/events/evt-404", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown event, got %d", rec.Code)
	}
}
