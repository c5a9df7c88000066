package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-checkout-core.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-core.git/internal/reconcile"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// EventStore baca row WebhookEvent; *checkout.Repo memenuhinya.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (*checkout.WebhookEvent, error)
}

type WebhookHandler struct {
	Engine *reconcile.Engine
	Events EventStore
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/webhooks/provider", h.handleProviderEvent)
	r.Get("/webhooks/provider/events/{eventID}", h.getEvent)
}

// getEvent buat inspeksi operator: event yang gagal diproses tetap di-ACK 200,
// jadi error_message di row ini satu-satunya jejaknya.
func (h *WebhookHandler) getEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventID")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing event id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ev, err := h.Events.GetEvent(ctx, id)
	if errors.Is(err, checkout.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleProviderEvent: signature invalid ditolak (401). Setelah event row
// tercatat, internal error apa pun tetap dibalas 200 (error tersimpan di
// WebhookEvent, provider tidak perlu retry tanpa batas).
func (h *WebhookHandler) handleProviderEvent(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}

	sig := r.Header.Get("X-Event-Checksum")
	if sig == "" {
		sig = r.Header.Get("X-Signature")
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Engine.HandleWebhook(ctx, raw, sig)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrInvalidSignature):
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		case strings.Contains(err.Error(), "decode provider event"):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			// Belum ada row event yang tercatat, biarkan provider retry.
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}
