package vouchers

import (
	"strings"
	"time"

	"github.com/odyssey-erp/unistock/internal/assets"
)

// normalizeCreate checks the request shape before anything is read or written
// and fills defaults. Checks that need stored data run inside the transaction.
func normalizeCreate(input *CreateInput, now time.Time) error {
	if !input.Kind.Valid() {
		return ErrUnknownKind
	}
	if input.Date.IsZero() {
		input.Date = now
	}
	input.Notes = strings.TrimSpace(input.Notes)
	switch input.Kind {
	case KindExit:
		if input.DepartmentID <= 0 {
			return validationf("department is required")
		}
		if strings.TrimSpace(input.RecipientName) == "" {
			return validationf("recipient name is required")
		}
	case KindReturn:
		if input.DepartmentID <= 0 {
			return validationf("department is required")
		}
	case KindDisposal:
		if !input.DisposalReason.Valid() {
			return validationf("disposal reason %q is not recognised", input.DisposalReason)
		}
		if input.DisposalDate == nil || input.DisposalDate.IsZero() {
			return validationf("disposal date is required")
		}
	}

	seen := make(map[int64]int)
	for i := range input.Lines {
		line := &input.Lines[i]
		n := i + 1
		if line.ProductID <= 0 {
			return validationf("line %d: product is required", n)
		}
		if line.Quantity <= 0 {
			return validationf("line %d: quantity must be a positive integer, got %d", n, line.Quantity)
		}
		if line.UnitPrice.IsNegative() {
			return validationf("line %d: unit price must not be negative", n)
		}
		if input.Kind == KindEntry {
			if len(line.AssetIDs) > 0 {
				return validationf("line %d: entry lines receive new assets, not existing ones", n)
			}
			if int64(len(line.NewAssets)) > line.Quantity {
				return validationf("line %d: %d new assets supplied for quantity %d", n, len(line.NewAssets), line.Quantity)
			}
		} else if len(line.NewAssets) > 0 {
			return validationf("line %d: only entry lines may create assets", n)
		}
		if input.Kind == KindReturn {
			switch line.Condition {
			case "":
				line.Condition = assets.ConditionGood
			case assets.ConditionGood, assets.ConditionFair, assets.ConditionDamaged:
			default:
				return validationf("line %d: return condition %q is not recognised", n, line.Condition)
			}
		} else {
			line.Condition = ""
		}
		if input.Kind != KindDisposal {
			line.DamageDescription = ""
		}
		for _, id := range line.AssetIDs {
			if prev, dup := seen[id]; dup {
				return validationf("line %d: asset %d already referenced on line %d", n, id, prev)
			}
			seen[id] = n
		}
	}
	return nil
}
