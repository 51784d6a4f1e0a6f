package vouchers

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/unistock/internal/shared"
)

var (
	// ErrNumberConflict indicates the allocated voucher number is already taken.
	// Number allocation is deterministic so this is never retried.
	ErrNumberConflict = fmt.Errorf("vouchers: voucher number already exists: %w", shared.ErrUniquenessConflict)
	// ErrUnknownKind is returned for kinds outside entry/exit/return/disposal.
	ErrUnknownKind = fmt.Errorf("vouchers: unknown voucher kind: %w", shared.ErrValidation)

	errGeneratedCollision = errors.New("vouchers: generated inventory number collided")
)

// InsufficientStockError aborts a confirmation whose consumable lines ask for
// more than the cached stock of a product.
type InsufficientStockError struct {
	ProductID   int64
	ProductCode string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("vouchers: insufficient stock for product %s: requested %d, available %d", e.ProductCode, e.Requested, e.Available)
}

// Unwrap exposes the shared error kind.
func (e *InsufficientStockError) Unwrap() error {
	return shared.ErrInsufficientStock
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", shared.ErrValidation, fmt.Sprintf(format, args...))
}

func invalidState(v Voucher, op string) error {
	return fmt.Errorf("%w: cannot %s voucher %s in status %s", shared.ErrInvalidState, op, v.Number, v.Status)
}
