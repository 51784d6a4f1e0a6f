// Package reconcile rebuilds the cached product stock from the authoritative
// sources: the available asset items of asset products and the movement
// ledger of consumables. It never touches vouchers or ledger rows.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// TxRepository exposes the reads and the single write of one recompute.
type TxRepository interface {
	LockProduct(ctx context.Context, id int64) (catalog.Product, error)
	CountAvailable(ctx context.Context, productID int64) (int64, error)
	LedgerSum(ctx context.Context, productID int64) (int64, error)
	SetStockQuantity(ctx context.Context, productID, qty int64) error
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ProductUnit(ctx context.Context, id int64) (int64, error)
	ProductIDs(ctx context.Context, unitID *int64, nature catalog.Nature) ([]int64, error)
}

// LockPort serialises bulk runs over the same scope.
type LockPort interface {
	Acquire(ctx context.Context, key string) (func(context.Context), error)
}

// ChangeNotifier is told about units whose cached stock changed.
type ChangeNotifier interface {
	StockChanged(ctx context.Context, unitID int64) error
}

// Filter narrows a bulk run. A nil UnitID covers every unit.
type Filter struct {
	UnitID *int64
	Nature catalog.Nature
}

func (f Filter) scope() string {
	unit := "all"
	if f.UnitID != nil {
		unit = fmt.Sprintf("%d", *f.UnitID)
	}
	nature := string(f.Nature)
	if nature == "" {
		nature = "any"
	}
	return unit + ":" + nature
}

// Result is the outcome for one product.
type Result struct {
	ProductID int64  `json:"product_id"`
	UnitID    int64  `json:"unit_id"`
	Code      string `json:"code"`
	Old       int64  `json:"old"`
	New       int64  `json:"new"`
	Changed   bool   `json:"changed"`
}

// Report summarises a bulk run.
type Report struct {
	RunID     uuid.UUID `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Processed int       `json:"processed"`
	Updated   int       `json:"updated"`
	Results   []Result  `json:"results"`
}

// String renders the run summary.
func (r Report) String() string {
	return fmt.Sprintf("updated %d of %d", r.Updated, r.Processed)
}

// Config groups optional collaborators.
type Config struct {
	Locker   LockPort
	Notifier ChangeNotifier
	Logger   *slog.Logger
}

// Service recomputes cached stock.
type Service struct {
	repo     RepositoryPort
	locker   LockPort
	notifier ChangeNotifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		locker:   cfg.Locker,
		notifier: cfg.Notifier,
		logger:   logger,
		tracer:   otel.Tracer("github.com/odyssey-erp/unistock/internal/reconcile"),
	}
}

// RecomputeFor is Recompute on behalf of a principal that may manage the product's unit.
func (s *Service) RecomputeFor(ctx context.Context, p tenancy.Principal, productID int64) (Result, error) {
	if err := tenancy.RequireManage(p); err != nil {
		return Result{}, err
	}
	unitID, err := s.repo.ProductUnit(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	if err := tenancy.Authorize(p, unitID); err != nil {
		return Result{}, err
	}
	return s.Recompute(ctx, productID)
}

// Recompute replaces the cached stock of one product with its authoritative
// value. The product row is written only when the value differs.
func (s *Service) Recompute(ctx context.Context, productID int64) (Result, error) {
	result, err := s.recompute(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	if result.Changed {
		s.stockChanged(ctx, result.UnitID)
	}
	return result, nil
}

func (s *Service) recompute(ctx context.Context, productID int64) (Result, error) {
	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		var actual int64
		if product.IsAsset() {
			actual, err = tx.CountAvailable(ctx, product.ID)
		} else {
			actual, err = tx.LedgerSum(ctx, product.ID)
		}
		if err != nil {
			return err
		}
		result = Result{
			ProductID: product.ID,
			UnitID:    product.UnitID,
			Code:      product.Code,
			Old:       product.StockQuantity,
			New:       actual,
			Changed:   actual != product.StockQuantity,
		}
		if !result.Changed {
			return nil
		}
		return tx.SetStockQuantity(ctx, product.ID, actual)
	})
	return result, err
}

// RecomputeAll recomputes every product matching the filter, one transaction
// per product. It stops at the first failure and returns the partial report.
func (s *Service) RecomputeAll(ctx context.Context, filter Filter) (report Report, err error) {
	ctx, span := s.tracer.Start(ctx, "reconcile.RecomputeAll", trace.WithAttributes(attribute.String("reconcile.scope", filter.scope())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if filter.Nature != "" && !filter.Nature.Valid() {
		return Report{}, fmt.Errorf("%w: %v", shared.ErrValidation, catalog.ErrUnknownNature)
	}
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.ReconcileLockKey(filter.scope()))
		if err != nil {
			return Report{}, err
		}
		defer release(ctx)
	}

	report = Report{RunID: uuid.New(), StartedAt: time.Now().UTC(), Results: []Result{}}
	span.SetAttributes(attribute.String("reconcile.run_id", report.RunID.String()))
	ids, err := s.repo.ProductIDs(ctx, filter.UnitID, filter.Nature)
	if err != nil {
		return report, err
	}

	changedUnits := make(map[int64]struct{})
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := s.recompute(ctx, id)
		if err != nil {
			return report, fmt.Errorf("reconcile product %d: %w", id, err)
		}
		report.Processed++
		if result.Changed {
			report.Updated++
			report.Results = append(report.Results, result)
			changedUnits[result.UnitID] = struct{}{}
			s.logger.Info("stock recomputed",
				slog.String("run_id", report.RunID.String()),
				slog.String("product", result.Code),
				slog.Int64("old", result.Old),
				slog.Int64("new", result.New))
		}
	}
	for unitID := range changedUnits {
		s.stockChanged(ctx, unitID)
	}
	span.SetAttributes(attribute.Int("reconcile.processed", report.Processed), attribute.Int("reconcile.updated", report.Updated))
	s.logger.Info("reconciliation finished", slog.String("run_id", report.RunID.String()), slog.String("summary", report.String()))
	return report, nil
}

func (s *Service) stockChanged(ctx context.Context, unitID int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.StockChanged(ctx, unitID); err != nil {
		s.logger.Warn("notify stock change", slog.Int64("unit_id", unitID), slog.Any("error", err))
	}
}
