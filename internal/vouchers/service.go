// Package vouchers implements the entry, exit, return and disposal workflows:
// draft creation, the draft -> confirmed/cancelled state machine and the stock
// effects applied at confirmation.
package vouchers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/odyssey-erp/unistock/internal/assets"
	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/ledger"
	"github.com/odyssey-erp/unistock/internal/platform/db"
	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

const (
	maxCreateAttempts = 3
	idempotencyModule = "vouchers.create"
)

// TxRepository exposes the operations available inside one unit of work.
type TxRepository interface {
	GetUnit(ctx context.Context, id int64) (tenancy.Unit, error)
	DepartmentInUnit(ctx context.Context, unitID, departmentID int64) (bool, error)

	GetProducts(ctx context.Context, unitID int64, ids []int64) (map[int64]catalog.Product, error)
	LockProducts(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
	SetStockQuantity(ctx context.Context, productID, qty int64) error

	InventoryNumberTaken(ctx context.Context, unitID int64, number string) (bool, error)
	InsertAsset(ctx context.Context, item *assets.Item) error
	GetAssets(ctx context.Context, ids []int64) (map[int64]assets.Item, error)
	LockAssets(ctx context.Context, ids []int64) (map[int64]assets.Item, error)
	UpdateAsset(ctx context.Context, item assets.Item) error
	CountAvailable(ctx context.Context, productID int64) (int64, error)

	AppendMovement(ctx context.Context, row *ledger.Row) error

	NextSequence(ctx context.Context, unitID int64, kind Kind, year int) (int64, error)
	InsertVoucher(ctx context.Context, v *Voucher) error
	InsertLine(ctx context.Context, voucherID int64, line *Line) error
	LinkAssets(ctx context.Context, lineID int64, assetIDs []int64) error
	GetVoucher(ctx context.Context, id int64) (Voucher, error)
	LockVoucher(ctx context.Context, id int64) (Voucher, error)
	MarkConfirmed(ctx context.Context, id, actorID int64, at time.Time) error
	MarkCancelled(ctx context.Context, id int64, at time.Time) error

	LastExitForAsset(ctx context.Context, assetID int64) (int64, bool, error)
	IssuedQuantity(ctx context.Context, exitID, productID int64) (int64, error)
	ReturnedQuantity(ctx context.Context, exitID, productID, excludeVoucherID int64) (int64, error)
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	VoucherUnit(ctx context.Context, id int64) (int64, error)
	Get(ctx context.Context, id int64) (Voucher, error)
	List(ctx context.Context, filter ListFilter) ([]Voucher, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort rejects duplicate create submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// LockPort hands out per-voucher locks.
type LockPort interface {
	Acquire(ctx context.Context, key string) (func(context.Context), error)
}

// ChangeNotifier is told after committed stock changes, e.g. to drop cached reports.
type ChangeNotifier interface {
	StockChanged(ctx context.Context, unitID int64) error
}

// ServiceConfig groups optional settings and collaborators.
type ServiceConfig struct {
	// StrictReturns checks returns against their original exit voucher.
	StrictReturns bool
	Locker        LockPort
	Notifier      ChangeNotifier
	Metrics       *Metrics
	Numbers       *assets.NumberGenerator
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Service coordinates voucher operations.
type Service struct {
	repo          RepositoryPort
	audit         AuditPort
	idempotency   IdempotencyPort
	locker        LockPort
	notifier      ChangeNotifier
	metrics       *Metrics
	numbers       *assets.NumberGenerator
	logger        *slog.Logger
	tracer        trace.Tracer
	now           func() time.Time
	strictReturns bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cfg ServiceConfig) *Service {
	svc := &Service{
		repo:          repo,
		audit:         audit,
		idempotency:   idem,
		locker:        cfg.Locker,
		notifier:      cfg.Notifier,
		metrics:       cfg.Metrics,
		numbers:       cfg.Numbers,
		logger:        cfg.Logger,
		tracer:        otel.Tracer("github.com/odyssey-erp/unistock/internal/vouchers"),
		now:           cfg.Clock,
		strictReturns: cfg.StrictReturns,
	}
	if svc.numbers == nil {
		svc.numbers = assets.NewNumberGenerator()
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc
}

// Create persists a draft voucher. Drafts have no effect on stock.
func (s *Service) Create(ctx context.Context, p tenancy.Principal, input CreateInput) (v Voucher, err error) {
	ctx, span := s.tracer.Start(ctx, "vouchers.Create", trace.WithAttributes(attribute.String("voucher.kind", string(input.Kind))))
	defer func() { endSpan(span, err) }()

	if err := tenancy.RequireEdit(p); err != nil {
		return Voucher{}, err
	}
	if err := normalizeCreate(&input, s.now()); err != nil {
		return Voucher{}, err
	}
	unitID, err := tenancy.WriteUnit(p, input.UnitID)
	if err != nil {
		return Voucher{}, err
	}

	inserted := false
	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, idempotencyModule); err != nil {
			return Voucher{}, err
		}
		inserted = true
	}

	var created Voucher
	for attempt := 1; ; attempt++ {
		created, err = s.createOnce(ctx, p, unitID, input)
		collided := errors.Is(err, errGeneratedCollision)
		if !collided && !errors.Is(err, db.ErrSerialization) {
			break
		}
		if attempt >= maxCreateAttempts {
			if collided {
				err = fmt.Errorf("%w after %d attempts", assets.ErrNumberSpaceExhausted, attempt)
			}
			break
		}
		s.logger.Debug("retry voucher create", slog.Int("attempt", attempt), slog.Any("error", err))
	}
	s.metrics.observe(input.Kind, "create", err)
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return Voucher{}, err
	}
	span.SetAttributes(attribute.Int64("voucher.id", created.ID), attribute.String("voucher.number", created.Number))
	s.recordAudit(ctx, p, shared.AuditActionCreate, created)
	return created, nil
}

func (s *Service) createOnce(ctx context.Context, p tenancy.Principal, unitID int64, input CreateInput) (Voucher, error) {
	var created Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		unit, err := tx.GetUnit(ctx, unitID)
		if err != nil {
			return err
		}
		if !unit.Active {
			return validationf("unit %s is inactive", unit.Code)
		}
		if err := s.checkCounterparts(ctx, tx, unitID, input); err != nil {
			return err
		}
		products, err := s.checkLines(ctx, tx, unitID, input)
		if err != nil {
			return err
		}

		year := input.Date.Year()
		seq, err := tx.NextSequence(ctx, unitID, input.Kind, year)
		if err != nil {
			return err
		}
		v := Voucher{
			Kind:            input.Kind,
			Number:          FormatNumber(input.Kind, unit.Code, year, seq),
			UnitID:          unitID,
			Date:            input.Date,
			Status:          StatusDraft,
			Notes:           input.Notes,
			Supplier:        input.Supplier,
			InvoiceNumber:   input.InvoiceNumber,
			InvoiceDate:     input.InvoiceDate,
			RecipientName:   input.RecipientName,
			ReturnReason:    input.ReturnReason,
			DisposalReason:  input.DisposalReason,
			Committee:       input.Committee,
			DisposalDate:    input.DisposalDate,
			DisposalDetails: input.DisposalDetails,
			CreatedBy:       p.UserID,
		}
		if input.DepartmentID != 0 {
			dept := input.DepartmentID
			v.DepartmentID = &dept
		}
		if input.OriginalExitID != 0 {
			orig := input.OriginalExitID
			v.OriginalExitID = &orig
		}
		if err := tx.InsertVoucher(ctx, &v); err != nil {
			return err
		}

		batch := make(map[string]struct{})
		for i, li := range input.Lines {
			line := Line{
				ProductID:         li.ProductID,
				Quantity:          li.Quantity,
				UnitPrice:         li.UnitPrice,
				Condition:         li.Condition,
				DamageDescription: li.DamageDescription,
			}
			if err := tx.InsertLine(ctx, v.ID, &line); err != nil {
				return err
			}
			product := products[li.ProductID]
			if product.IsAsset() {
				ids := li.AssetIDs
				if v.Kind == KindEntry {
					ids, err = s.receiveAssets(ctx, tx, v, product, li, batch)
					if err != nil {
						return fmt.Errorf("line %d: %w", i+1, err)
					}
				}
				if err := tx.LinkAssets(ctx, line.ID, ids); err != nil {
					return err
				}
				line.AssetIDs = append([]int64(nil), ids...)
			}
			v.Lines = append(v.Lines, line)
		}
		created = v
		return nil
	})
	return created, err
}

// checkCounterparts validates the department and original exit references.
func (s *Service) checkCounterparts(ctx context.Context, tx TxRepository, unitID int64, input CreateInput) error {
	if input.DepartmentID != 0 {
		ok, err := tx.DepartmentInUnit(ctx, unitID, input.DepartmentID)
		if err != nil {
			return err
		}
		if !ok {
			return validationf("department %d does not belong to the unit", input.DepartmentID)
		}
	}
	if input.Kind == KindReturn && input.OriginalExitID != 0 {
		orig, err := tx.GetVoucher(ctx, input.OriginalExitID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return validationf("original exit voucher %d not found", input.OriginalExitID)
			}
			return err
		}
		if orig.Kind != KindExit || orig.UnitID != unitID {
			return validationf("voucher %s is not an exit voucher of the unit", orig.Number)
		}
	}
	return nil
}

// checkLines resolves products and asset references of every line.
func (s *Service) checkLines(ctx context.Context, tx TxRepository, unitID int64, input CreateInput) (map[int64]catalog.Product, error) {
	ids := make([]int64, 0, len(input.Lines))
	for _, line := range input.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := tx.GetProducts(ctx, unitID, ids)
	if err != nil {
		return nil, err
	}
	var referenced []int64
	for i, line := range input.Lines {
		n := i + 1
		product, ok := products[line.ProductID]
		if !ok {
			return nil, validationf("line %d: product %d not found in unit", n, line.ProductID)
		}
		if !product.Active {
			return nil, validationf("line %d: product %s is inactive", n, product.Code)
		}
		if !product.IsAsset() {
			if len(line.AssetIDs) > 0 || len(line.NewAssets) > 0 {
				return nil, validationf("line %d: consumable product %s takes no asset references", n, product.Code)
			}
			continue
		}
		if input.Kind != KindEntry && int64(len(line.AssetIDs)) != line.Quantity {
			return nil, validationf("line %d: product %s needs %d asset references, got %d", n, product.Code, line.Quantity, len(line.AssetIDs))
		}
		referenced = append(referenced, line.AssetIDs...)
	}
	if len(referenced) == 0 {
		return products, nil
	}
	items, err := tx.GetAssets(ctx, referenced)
	if err != nil {
		return nil, err
	}
	for i, line := range input.Lines {
		for _, id := range line.AssetIDs {
			item, ok := items[id]
			if !ok || item.UnitID != unitID {
				return nil, validationf("line %d: asset %d not found in unit", i+1, id)
			}
			if item.ProductID != line.ProductID {
				return nil, validationf("line %d: asset %s does not belong to product %s", i+1, item.InventoryNumber, products[line.ProductID].Code)
			}
			if input.Kind != KindEntry && !item.InCirculation() {
				return nil, validationf("line %d: asset %s is %s", i+1, item.InventoryNumber, item.State)
			}
		}
	}
	return products, nil
}

// receiveAssets inserts one pending item per received unit of an entry line.
func (s *Service) receiveAssets(ctx context.Context, tx TxRepository, v Voucher, product catalog.Product, li LineInput, batch map[string]struct{}) ([]int64, error) {
	taken := func(ctx context.Context, number string) (bool, error) {
		return tx.InventoryNumberTaken(ctx, v.UnitID, number)
	}
	ids := make([]int64, 0, li.Quantity)
	for j := int64(0); j < li.Quantity; j++ {
		item := assets.Item{
			UnitID:        v.UnitID,
			ProductID:     product.ID,
			State:         assets.StatePending,
			Condition:     assets.ConditionNew,
			PurchaseDate:  v.Date,
			PurchasePrice: li.UnitPrice,
		}
		supplied := false
		if j < int64(len(li.NewAssets)) {
			item.SerialNumber = li.NewAssets[j].SerialNumber
			item.InventoryNumber = li.NewAssets[j].InventoryNumber
			supplied = item.InventoryNumber != ""
		}
		if supplied {
			if _, dup := batch[item.InventoryNumber]; dup {
				return nil, fmt.Errorf("%w: %s", assets.ErrDuplicateNumber, item.InventoryNumber)
			}
			used, err := taken(ctx, item.InventoryNumber)
			if err != nil {
				return nil, err
			}
			if used {
				return nil, fmt.Errorf("%w: %s", assets.ErrDuplicateNumber, item.InventoryNumber)
			}
			batch[item.InventoryNumber] = struct{}{}
		} else {
			number, err := s.numbers.Generate(ctx, product.Code, v.Date, taken, batch)
			if err != nil {
				return nil, err
			}
			item.InventoryNumber = number
		}
		if err := tx.InsertAsset(ctx, &item); err != nil {
			if !supplied && errors.Is(err, assets.ErrDuplicateNumber) {
				return nil, fmt.Errorf("%w: %v", errGeneratedCollision, err)
			}
			return nil, err
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}

// Get returns a voucher with its lines after checking the principal's scope.
func (s *Service) Get(ctx context.Context, p tenancy.Principal, id int64) (Voucher, error) {
	unitID, err := s.repo.VoucherUnit(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if err := tenancy.Authorize(p, unitID); err != nil {
		return Voucher{}, err
	}
	return s.repo.Get(ctx, id)
}

// List returns vouchers in the principal's scope.
func (s *Service) List(ctx context.Context, p tenancy.Principal, req ListRequest) ([]Voucher, shared.Pagination, error) {
	if req.Kind != "" && !req.Kind.Valid() {
		return nil, shared.Pagination{}, ErrUnknownKind
	}
	page, perPage := shared.NormalizePage(req.Page, req.PerPage)
	vouchers, total, err := s.repo.List(ctx, ListFilter{
		UnitID: tenancy.CurrentUnit(p).UnitFilter(),
		Kind:   req.Kind,
		Status: req.Status,
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return vouchers, shared.NewPagination(page, perPage, total), nil
}

// recordAudit notifies the audit layer outside the transaction. Failures are
// logged and never change the outcome.
func (s *Service) recordAudit(ctx context.Context, p tenancy.Principal, action string, v Voucher) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  p.UserID,
		UnitID:   v.UnitID,
		Action:   action,
		Entity:   "voucher." + string(v.Kind),
		EntityID: fmt.Sprintf("%d", v.ID),
		Meta:     map[string]any{"number": v.Number, "status": string(v.Status), "lines": len(v.Lines)},
	})
	if err != nil {
		s.logger.Warn("audit voucher", slog.String("action", action), slog.Int64("voucher_id", v.ID), slog.Any("error", err))
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
