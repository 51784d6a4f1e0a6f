// Package ledger is the append-only journal of consumable stock movements.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a movement.
type Kind string

const (
	KindIn     Kind = "in"
	KindOut    Kind = "out"
	KindReturn Kind = "return"
	KindAdjust Kind = "adjust"
)

// Row is one immutable signed-quantity journal entry. Quantity is positive
// for in and return, negative for out, either sign for adjust.
type Row struct {
	ID        int64           `json:"id"`
	UnitID    int64           `json:"unit_id"`
	ProductID int64           `json:"product_id"`
	Kind      Kind            `json:"kind"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Reference string          `json:"reference"`
	VoucherID *int64          `json:"voucher_id,omitempty"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// SignConsistent reports whether the quantity sign matches the kind.
func (r Row) SignConsistent() bool {
	switch r.Kind {
	case KindIn, KindReturn:
		return r.Quantity > 0
	case KindOut:
		return r.Quantity < 0
	case KindAdjust:
		return r.Quantity != 0
	}
	return false
}

// CardEntry is a movement with the running balance after it.
type CardEntry struct {
	Row
	Balance int64 `json:"balance"`
}

// Filter narrows movement history.
type Filter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
}
