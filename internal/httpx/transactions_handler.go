package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-checkout-core.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-core.git/internal/gateway"
	kafkax "github.com/ariefcatur/go-checkout-core.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-core.git/internal/reconcile"
	"github.com/ariefcatur/go-checkout-core.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// TransactionReader = porsi store yang dibutuhkan endpoint transaksi.
// *checkout.Repo memenuhinya.
type TransactionReader interface {
	GetTransactionByPublicNumber(ctx context.Context, publicNumber string) (*checkout.Transaction, error)
	GetCustomer(ctx context.Context, id string) (*checkout.Customer, error)
	GetDelivery(ctx context.Context, id string) (*checkout.Delivery, error)
}

type TransactionsHandler struct {
	Repo   TransactionReader
	Engine *reconcile.Engine
	Redis  *redis.Client
}

func (h *TransactionsHandler) Register(r *chi.Mux) {
	r.Get("/transactions/{publicNumber}", h.getDetail)
	r.Get("/transactions/{publicNumber}/status", h.getStatus)
	r.Post("/transactions/{publicNumber}/sync", h.sync)
}

// getDetail: snapshot lengkap buat operator/receipt (transaksi + customer +
// alamat delivery yang dibekukan saat order).
func (h *TransactionsHandler) getDetail(w http.ResponseWriter, r *http.Request) {
	publicNumber := chi.URLParam(r, "publicNumber")
	if publicNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing public number"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	tx, err := h.Repo.GetTransactionByPublicNumber(ctx, publicNumber)
	if errors.Is(err, checkout.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"found": false, "reason": "TRANSACTION_NOT_FOUND"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	customer, err := h.Repo.GetCustomer(ctx, tx.CustomerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	delivery, err := h.Repo.GetDelivery(ctx, tx.DeliveryID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction": tx,
		"customer":    customer,
		"delivery":    delivery,
	})
}

// getStatus read-only: tidak pernah mengubah state, cuma buat polling client.
func (h *TransactionsHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	publicNumber := chi.URLParam(r, "publicNumber")
	if publicNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing public number"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	key := fmt.Sprintf(redisx.KeyTxStatus, publicNumber)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	// 2) fallback DB
	tx, err := h.Repo.GetTransactionByPublicNumber(ctx, publicNumber)
	if errors.Is(err, checkout.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"found": false, "reason": "TRANSACTION_NOT_FOUND"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	body := map[string]any{
		"found":                   true,
		"id":                      tx.ID,
		"public_number":           tx.PublicNumber,
		"status":                  tx.Status,
		"provider_transaction_id": tx.ProviderTransactionID,
		"stock_unit_id":           tx.StockUnitID,
		"updated_at":              tx.UpdatedAt,
	}
	b := kafkax.MustMarshal(body)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// sync = fallback reconciliation via poll ke provider.
func (h *TransactionsHandler) sync(w http.ResponseWriter, r *http.Request) {
	publicNumber := chi.URLParam(r, "publicNumber")
	if publicNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing public number"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	res, err := h.Engine.Sync(ctx, publicNumber)
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !res.Found {
		writeJSON(w, http.StatusNotFound, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
