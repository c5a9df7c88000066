package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-checkout-core.git/internal/sweeper"
	"github.com/go-chi/chi/v5"
)

// StockHandler expose trigger sweeper buat scheduler eksternal (cron/k8s job).
type StockHandler struct {
	Sweeper *sweeper.Sweeper
}

func (h *StockHandler) Register(r *chi.Mux) {
	r.Post("/stock/release-expired", h.releaseExpired)
}

func (h *StockHandler) releaseExpired(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	report, err := h.Sweeper.ReleaseExpired(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
