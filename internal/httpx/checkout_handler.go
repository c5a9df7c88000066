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
	"github.com/ariefcatur/go-checkout-core.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type CheckoutHandler struct {
	Service  *checkout.Service
	Repo     *checkout.Repo
	Producer *kafkax.Producer // checkout.initiated
	Redis    *redis.Client
	Name     string
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout/init", h.initCheckout)
	r.Post("/checkout/pay", h.payCheckout)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type InitCheckoutReq struct {
	ProductID string                 `json:"product_id"`
	Customer  checkout.CustomerInput `json:"customer"`
	Delivery  checkout.DeliveryInput `json:"delivery"`
}

func (h *CheckoutHandler) initCheckout(w http.ResponseWriter, r *http.Request) {
	var req InitCheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" || req.Customer.FullName == "" || req.Customer.Email == "" ||
		req.Delivery.AddressLine == "" || req.Delivery.City == "" || req.Delivery.State == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snap, err := h.Service.InitCheckout(ctx, checkout.InitInput{
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		ProductID:      req.ProductID,
		Customer:       req.Customer,
		Delivery:       req.Delivery,
	})
	if err != nil {
		writeCheckoutErr(w, err)
		return
	}

	if snap.IdempotentReplay {
		writeJSON(w, http.StatusOK, snap)
		return
	}

	// Shortcut idempotency + cache status di Redis; DB tetap jadi kebenaran.
	idemKey := fmt.Sprintf(redisx.KeyIdemCheckoutInit, r.Header.Get("Idempotency-Key"))
	_ = h.Redis.Set(ctx, idemKey, snap.TransactionID, redisx.TTLIdempotency).Err()
	statusKey := fmt.Sprintf(redisx.KeyTxStatus, snap.PublicNumber)
	_ = h.Redis.Set(ctx, statusKey, kafkax.MustMarshal(map[string]any{
		"found": true, "public_number": snap.PublicNumber, "status": snap.Status,
	}), redisx.TTLStatusCache).Err()

	ev := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventCheckoutInitiated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Name,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: snap.TransactionID,
	}
	ev.Payload = kafkax.MustMarshal(checkout.CheckoutInitiatedPayload{
		TransactionID:    snap.TransactionID,
		PublicNumber:     snap.PublicNumber,
		ProductID:        req.ProductID,
		StockUnitID:      snap.StockUnitID,
		AmountTotalCents: snap.AmountTotalCents,
		Currency:         snap.Currency,
		ReservedUntil:    *snap.ReservedUntil,
	})
	h.Producer.Publish(checkout.PartitionKey(snap.TransactionID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventCheckoutInitiated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	writeJSON(w, http.StatusCreated, snap)
}

type PayCheckoutReq struct {
	TransactionID string `json:"transaction_id"`
	CardNumber    string `json:"card_number"`
	CardCVC       string `json:"card_cvc"`
	CardExpMonth  string `json:"card_exp_month"`
	CardExpYear   string `json:"card_exp_year"`
	CardHolder    string `json:"card_holder"`
	Installments  int    `json:"installments"`
}

func (h *CheckoutHandler) payCheckout(w http.ResponseWriter, r *http.Request) {
	var req PayCheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.TransactionID == "" || req.CardNumber == "" || req.CardCVC == "" ||
		req.CardExpMonth == "" || req.CardExpYear == "" || req.CardHolder == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	if req.Installments < 1 || req.Installments > 36 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "installments must be 1..36"})
		return
	}

	// Gateway call bisa lambat; kasih ruang lebih dari init.
	ctx, cancel := context.WithTimeout(r.Context(), 25*time.Second)
	defer cancel()

	snap, err := h.Service.PayCheckout(ctx, req.TransactionID, gateway.Card{
		Number:     req.CardNumber,
		CVC:        req.CardCVC,
		ExpMonth:   req.CardExpMonth,
		ExpYear:    req.CardExpYear,
		CardHolder: req.CardHolder,
	}, req.Installments)
	if err != nil {
		writeCheckoutErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *CheckoutHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListProducts(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// writeCheckoutErr: map taksonomi error domain ke HTTP code.
func writeCheckoutErr(w http.ResponseWriter, err error) {
	var apiErr *gateway.APIError
	switch {
	case errors.Is(err, checkout.ErrMissingIdempotencyKey):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, checkout.ErrAmountTooLow):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, checkout.ErrProductNotFound), errors.Is(err, checkout.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, checkout.ErrOutOfStock),
		errors.Is(err, checkout.ErrConflict),
		errors.Is(err, checkout.ErrInvalidState),
		errors.Is(err, checkout.ErrReservationExpired):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &apiErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
