package ledger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/unistock/internal/platform/httpx"
	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// Handler exposes stock card endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{id}/movements", h.stockCard)
}

func (h *Handler) stockCard(w http.ResponseWriter, r *http.Request) {
	p, ok := tenancy.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := Filter{ProductID: id}
	if from, err := time.Parse(time.DateOnly, r.URL.Query().Get("from")); err == nil {
		filter.From = from
	}
	if to, err := time.Parse(time.DateOnly, r.URL.Query().Get("to")); err == nil {
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	card, err := h.service.StockCard(r.Context(), p, filter)
	if err != nil {
		h.logger.Warn("stock card", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": card})
}
