package reconcile

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/unistock/internal/platform/httpx"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// Handler exposes the per-product recompute endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	tenancy tenancy.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, mw tenancy.Middleware) *Handler {
	return &Handler{logger: logger, service: service, tenancy: mw}
}

// MountRoutes registers reconcile routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.tenancy.RequireManage).Post("/products/{id}/recompute", h.recompute)
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) {
	p, _ := tenancy.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.RecomputeFor(r.Context(), p, id)
	if err != nil {
		h.logger.Warn("recompute stock", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
