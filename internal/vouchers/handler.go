package vouchers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/unistock/internal/assets"
	"github.com/odyssey-erp/unistock/internal/platform/httpx"
	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

const dateLayout = "2006-01-02"

// Handler exposes voucher HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	tenancy  tenancy.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, mw tenancy.Middleware) *Handler {
	return &Handler{logger: logger, service: service, tenancy: mw, validate: validator.New()}
}

// MountRoutes registers voucher routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/vouchers", h.list)
	r.Get("/vouchers/{id:[0-9]+}", h.show)
	r.Group(func(r chi.Router) {
		r.Use(h.tenancy.RequireEdit)
		r.Post("/vouchers/{kind:[a-z]+}", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.tenancy.RequireManage)
		r.Post("/vouchers/{id:[0-9]+}/confirm", h.confirm)
		r.Post("/vouchers/{id:[0-9]+}/cancel", h.cancel)
	})
}

type newAssetRequest struct {
	InventoryNumber string `json:"inventory_number" validate:"omitempty,max=64"`
	SerialNumber    string `json:"serial_number" validate:"omitempty,max=128"`
}

type lineRequest struct {
	ProductID         int64             `json:"product_id" validate:"required,gt=0"`
	Quantity          int64             `json:"quantity" validate:"required,gt=0"`
	UnitPrice         decimal.Decimal   `json:"unit_price"`
	Condition         string            `json:"condition" validate:"omitempty,oneof=good fair damaged"`
	DamageDescription string            `json:"damage_description" validate:"omitempty,max=500"`
	AssetIDs          []int64           `json:"asset_ids" validate:"omitempty,dive,gt=0"`
	NewAssets         []newAssetRequest `json:"new_assets" validate:"omitempty,dive"`
}

type createRequest struct {
	UnitID          int64         `json:"unit_id" validate:"gte=0"`
	Date            string        `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Notes           string        `json:"notes" validate:"max=1000"`
	Supplier        string        `json:"supplier" validate:"max=255"`
	InvoiceNumber   string        `json:"invoice_number" validate:"max=64"`
	InvoiceDate     string        `json:"invoice_date" validate:"omitempty,datetime=2006-01-02"`
	DepartmentID    int64         `json:"department_id" validate:"gte=0"`
	RecipientName   string        `json:"recipient_name" validate:"max=255"`
	ReturnReason    string        `json:"return_reason" validate:"max=500"`
	OriginalExitID  int64         `json:"original_exit_id" validate:"gte=0"`
	DisposalReason  string        `json:"disposal_reason"`
	Committee       string        `json:"committee" validate:"max=500"`
	DisposalDate    string        `json:"disposal_date" validate:"omitempty,datetime=2006-01-02"`
	DisposalDetails string        `json:"disposal_details" validate:"max=2000"`
	Lines           []lineRequest `json:"lines" validate:"dive"`
}

func (req createRequest) toInput(kind Kind) (CreateInput, error) {
	input := CreateInput{
		Kind:            kind,
		UnitID:          req.UnitID,
		Notes:           req.Notes,
		Supplier:        strings.TrimSpace(req.Supplier),
		InvoiceNumber:   strings.TrimSpace(req.InvoiceNumber),
		DepartmentID:    req.DepartmentID,
		RecipientName:   strings.TrimSpace(req.RecipientName),
		ReturnReason:    req.ReturnReason,
		OriginalExitID:  req.OriginalExitID,
		DisposalReason:  DisposalReason(req.DisposalReason),
		Committee:       req.Committee,
		DisposalDetails: req.DisposalDetails,
	}
	var err error
	if input.Date, err = parseDate(req.Date); err != nil {
		return CreateInput{}, err
	}
	if input.InvoiceDate, err = parseOptionalDate(req.InvoiceDate); err != nil {
		return CreateInput{}, err
	}
	if input.DisposalDate, err = parseOptionalDate(req.DisposalDate); err != nil {
		return CreateInput{}, err
	}
	for _, l := range req.Lines {
		line := LineInput{
			ProductID:         l.ProductID,
			Quantity:          l.Quantity,
			UnitPrice:         l.UnitPrice,
			Condition:         assets.Condition(l.Condition),
			DamageDescription: l.DamageDescription,
			AssetIDs:          l.AssetIDs,
		}
		for _, na := range l.NewAssets {
			line.NewAssets = append(line.NewAssets, NewAsset{
				InventoryNumber: strings.TrimSpace(na.InventoryNumber),
				SerialNumber:    strings.TrimSpace(na.SerialNumber),
			})
		}
		input.Lines = append(input.Lines, line)
	}
	return input, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, validationf("invalid date %q", raw)
	}
	return t, nil
}

func parseOptionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, _ := tenancy.PrincipalFromContext(r.Context())
	kind := Kind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		httpx.RespondError(w, ErrUnknownKind)
		return
	}
	var req createRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := req.toInput(kind)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	v, err := h.service.Create(r.Context(), p, input)
	if err != nil {
		h.logger.Warn("create voucher", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, ok := tenancy.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	vouchers, pagination, err := h.service.List(r.Context(), p, ListRequest{
		Kind:    Kind(q.Get("kind")),
		Status:  Status(q.Get("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if vouchers == nil {
		vouchers = []Voucher{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": vouchers, "pagination": pagination})
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
	v, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	p, _ := tenancy.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Confirm(r.Context(), p, id)
	if err != nil {
		h.logger.Warn("confirm voucher", slog.Int64("voucher_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	p, _ := tenancy.PrincipalFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Cancel(r.Context(), p, id)
	if err != nil {
		h.logger.Warn("cancel voucher", slog.Int64("voucher_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}
