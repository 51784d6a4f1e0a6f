package vouchers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/odyssey-erp/unistock/internal/assets"
	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/ledger"
	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// confirmPlan holds every write of a confirmation, computed before the first one.
type confirmPlan struct {
	stock     map[int64]int64
	movements []ledger.Row
	items     []assets.Item
	refresh   []int64
}

// Confirm applies the voucher's stock effects and marks it confirmed. Either
// every effect is committed or none is, and the voucher stays draft on failure.
func (s *Service) Confirm(ctx context.Context, p tenancy.Principal, id int64) (v Voucher, err error) {
	ctx, span := s.tracer.Start(ctx, "vouchers.Confirm", trace.WithAttributes(attribute.Int64("voucher.id", id)))
	defer func() { endSpan(span, err) }()

	if err := tenancy.RequireManage(p); err != nil {
		return Voucher{}, err
	}
	unitID, err := s.repo.VoucherUnit(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if err := tenancy.Authorize(p, unitID); err != nil {
		return Voucher{}, err
	}
	release, err := s.acquire(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	defer release(ctx)

	var confirmed Voucher
	kind := Kind("unknown")
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockVoucher(ctx, id)
		if err != nil {
			return err
		}
		kind = current.Kind
		if current.Status != StatusDraft {
			return invalidState(current, "confirm")
		}
		plan, err := s.plan(ctx, tx, current)
		if err != nil {
			return err
		}
		at := s.now()
		if err := tx.MarkConfirmed(ctx, current.ID, p.UserID, at); err != nil {
			return err
		}
		if err := apply(ctx, tx, plan); err != nil {
			return err
		}
		current.Status = StatusConfirmed
		actor := p.UserID
		current.ConfirmedBy = &actor
		current.ConfirmedAt = &at
		confirmed = current
		return nil
	})
	s.metrics.observe(kind, "confirm", err)
	if err != nil {
		return Voucher{}, err
	}
	span.SetAttributes(attribute.String("voucher.kind", string(confirmed.Kind)), attribute.String("voucher.number", confirmed.Number))
	s.recordAudit(ctx, p, shared.AuditActionConfirm, confirmed)
	s.stockChanged(ctx, confirmed.UnitID)
	s.logger.Info("voucher confirmed",
		slog.Int64("voucher_id", confirmed.ID),
		slog.String("number", confirmed.Number),
		slog.Int("lines", len(confirmed.Lines)))
	return confirmed, nil
}

// plan validates the voucher against locked rows and returns the writes.
func (s *Service) plan(ctx context.Context, tx TxRepository, v Voucher) (confirmPlan, error) {
	plan := confirmPlan{stock: make(map[int64]int64)}
	if len(v.Lines) == 0 {
		return plan, nil
	}

	productIDs := make([]int64, 0, len(v.Lines))
	for _, line := range v.Lines {
		productIDs = append(productIDs, line.ProductID)
	}
	products, err := tx.LockProducts(ctx, productIDs)
	if err != nil {
		return plan, err
	}

	requested := make(map[int64]int64)
	var consumables []int64
	for _, line := range v.Lines {
		product, ok := products[line.ProductID]
		if !ok {
			return plan, fmt.Errorf("product %d: %w", line.ProductID, shared.ErrNotFound)
		}
		if product.IsAsset() {
			continue
		}
		if _, seen := requested[product.ID]; !seen {
			consumables = append(consumables, product.ID)
		}
		requested[product.ID] += line.Quantity
	}
	sort.Slice(consumables, func(i, j int) bool { return consumables[i] < consumables[j] })

	for _, pid := range consumables {
		product := products[pid]
		qty := requested[pid]
		if v.Kind.Decrements() {
			if qty > product.StockQuantity {
				return plan, &InsufficientStockError{
					ProductID:   pid,
					ProductCode: product.Code,
					Requested:   qty,
					Available:   product.StockQuantity,
				}
			}
			plan.stock[pid] = product.StockQuantity - qty
		} else {
			plan.stock[pid] = product.StockQuantity + qty
		}
	}

	voucherID := v.ID
	for _, line := range v.Lines {
		product := products[line.ProductID]
		if product.IsAsset() {
			continue
		}
		row := ledger.Row{
			UnitID:    v.UnitID,
			ProductID: product.ID,
			Kind:      v.Kind.movementKind(),
			Quantity:  line.Quantity,
			UnitPrice: product.UnitPrice,
			Reference: v.Number,
			VoucherID: &voucherID,
			CreatedBy: v.CreatedBy,
		}
		if v.Kind == KindEntry {
			row.UnitPrice = line.UnitPrice
		}
		if v.Kind.Decrements() {
			row.Quantity = -line.Quantity
		}
		plan.movements = append(plan.movements, row)
	}

	if v.Kind == KindReturn && s.strictReturns && v.OriginalExitID != nil {
		if err := s.checkReturn(ctx, tx, v, products); err != nil {
			return plan, err
		}
	}

	assetIDs := v.AssetIDs()
	if len(assetIDs) == 0 {
		return plan, nil
	}
	items, err := tx.LockAssets(ctx, assetIDs)
	if err != nil {
		return plan, err
	}
	touched := make(map[int64]struct{})
	for _, line := range v.Lines {
		for _, assetID := range line.AssetIDs {
			item, ok := items[assetID]
			if !ok {
				return plan, fmt.Errorf("asset %d: %w", assetID, shared.ErrNotFound)
			}
			if err := transition(&item, v, line); err != nil {
				return plan, err
			}
			plan.items = append(plan.items, item)
			if _, seen := touched[item.ProductID]; !seen {
				touched[item.ProductID] = struct{}{}
				plan.refresh = append(plan.refresh, item.ProductID)
			}
		}
	}
	sort.Slice(plan.refresh, func(i, j int) bool { return plan.refresh[i] < plan.refresh[j] })
	return plan, nil
}

func transition(item *assets.Item, v Voucher, line Line) error {
	switch v.Kind {
	case KindEntry:
		return item.Transition(assets.StateAvailable)
	case KindExit:
		if v.DepartmentID == nil {
			return validationf("voucher %s has no department", v.Number)
		}
		return item.Assign(*v.DepartmentID)
	case KindReturn:
		return item.Release(line.Condition)
	case KindDisposal:
		return item.Dispose()
	}
	return ErrUnknownKind
}

// checkReturn cross-checks a return against the exit voucher it references.
func (s *Service) checkReturn(ctx context.Context, tx TxRepository, v Voucher, products map[int64]catalog.Product) error {
	exitID := *v.OriginalExitID
	orig, err := tx.GetVoucher(ctx, exitID)
	if err != nil {
		return err
	}
	if orig.Kind != KindExit || orig.UnitID != v.UnitID || orig.Status != StatusConfirmed {
		return validationf("voucher %s is not a confirmed exit of the unit", orig.Number)
	}

	for _, line := range v.Lines {
		for _, assetID := range line.AssetIDs {
			last, ok, err := tx.LastExitForAsset(ctx, assetID)
			if err != nil {
				return err
			}
			if !ok || last != exitID {
				return validationf("asset %d was not last issued by voucher %s", assetID, orig.Number)
			}
		}
	}

	returning := make(map[int64]int64)
	for _, line := range v.Lines {
		if !products[line.ProductID].IsAsset() {
			returning[line.ProductID] += line.Quantity
		}
	}
	for pid, qty := range returning {
		issued, err := tx.IssuedQuantity(ctx, exitID, pid)
		if err != nil {
			return err
		}
		returned, err := tx.ReturnedQuantity(ctx, exitID, pid, v.ID)
		if err != nil {
			return err
		}
		if qty > issued-returned {
			return validationf("product %s: returning %d exceeds %d outstanding on voucher %s", products[pid].Code, qty, issued-returned, orig.Number)
		}
	}
	return nil
}

func apply(ctx context.Context, tx TxRepository, plan confirmPlan) error {
	ids := make([]int64, 0, len(plan.stock))
	for pid := range plan.stock {
		ids = append(ids, pid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, pid := range ids {
		if err := tx.SetStockQuantity(ctx, pid, plan.stock[pid]); err != nil {
			return err
		}
	}
	for i := range plan.movements {
		if err := tx.AppendMovement(ctx, &plan.movements[i]); err != nil {
			return err
		}
	}
	for _, item := range plan.items {
		if err := tx.UpdateAsset(ctx, item); err != nil {
			return err
		}
	}
	for _, pid := range plan.refresh {
		count, err := tx.CountAvailable(ctx, pid)
		if err != nil {
			return err
		}
		if err := tx.SetStockQuantity(ctx, pid, count); err != nil {
			return err
		}
	}
	return nil
}

// Cancel moves a draft to cancelled. Items reserved by a draft entry are voided.
func (s *Service) Cancel(ctx context.Context, p tenancy.Principal, id int64) (v Voucher, err error) {
	ctx, span := s.tracer.Start(ctx, "vouchers.Cancel", trace.WithAttributes(attribute.Int64("voucher.id", id)))
	defer func() { endSpan(span, err) }()

	if err := tenancy.RequireManage(p); err != nil {
		return Voucher{}, err
	}
	unitID, err := s.repo.VoucherUnit(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if err := tenancy.Authorize(p, unitID); err != nil {
		return Voucher{}, err
	}
	release, err := s.acquire(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	defer release(ctx)

	var cancelled Voucher
	kind := Kind("unknown")
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockVoucher(ctx, id)
		if err != nil {
			return err
		}
		kind = current.Kind
		if current.Status != StatusDraft {
			return invalidState(current, "cancel")
		}
		at := s.now()
		if err := tx.MarkCancelled(ctx, current.ID, at); err != nil {
			return err
		}
		if current.Kind == KindEntry {
			if ids := current.AssetIDs(); len(ids) > 0 {
				items, err := tx.LockAssets(ctx, ids)
				if err != nil {
					return err
				}
				for _, assetID := range ids {
					item := items[assetID]
					if err := item.Transition(assets.StateVoid); err != nil {
						return err
					}
					if err := tx.UpdateAsset(ctx, item); err != nil {
						return err
					}
				}
			}
		}
		current.Status = StatusCancelled
		current.CancelledAt = &at
		cancelled = current
		return nil
	})
	s.metrics.observe(kind, "cancel", err)
	if err != nil {
		return Voucher{}, err
	}
	s.recordAudit(ctx, p, shared.AuditActionCancel, cancelled)
	return cancelled, nil
}

func (s *Service) acquire(ctx context.Context, id int64) (func(context.Context), error) {
	if s.locker == nil {
		return func(context.Context) {}, nil
	}
	return s.locker.Acquire(ctx, shared.VoucherLockKey(id))
}

func (s *Service) stockChanged(ctx context.Context, unitID int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.StockChanged(ctx, unitID); err != nil {
		s.logger.Warn("notify stock change", slog.Int64("unit_id", unitID), slog.Any("error", err))
	}
}
