package assets

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/unistock/internal/platform/httpx"
	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// Handler exposes asset item endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	tenancy tenancy.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, mw tenancy.Middleware) *Handler {
	return &Handler{logger: logger, service: service, tenancy: mw}
}

// MountRoutes registers asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/assets", h.list)
	r.Get("/assets/{id}", h.show)
	r.Group(func(r chi.Router) {
		r.Use(h.tenancy.RequireManage)
		r.Post("/assets/{id}/maintenance", h.maintenance(true))
		r.Delete("/assets/{id}/maintenance", h.maintenance(false))
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, ok := tenancy.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	q := r.URL.Query()
	productID, _ := strconv.ParseInt(q.Get("product_id"), 10, 64)
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	items, pagination, err := h.service.List(r.Context(), p, ListRequest{
		ProductID: productID,
		State:     State(q.Get("state")),
		Page:      page,
		PerPage:   perPage,
	})
	if err != nil {
		h.logger.Error("list assets", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": pagination})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
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
	item, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) maintenance(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := tenancy.PrincipalFromContext(r.Context())
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		item, err := h.service.SetMaintenance(r.Context(), p, id, on)
		if err != nil {
			h.logger.Warn("asset maintenance", slog.Int64("asset_id", id), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, item)
	}
}
