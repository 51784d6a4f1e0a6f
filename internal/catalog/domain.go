package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Nature distinguishes individually tracked products from fungible ones.
type Nature string

const (
	NatureAsset      Nature = "asset"
	NatureConsumable Nature = "consumable"
)

// Valid reports whether n is a known nature.
func (n Nature) Valid() bool {
	return n == NatureAsset || n == NatureConsumable
}

// ParseNature accepts "", "asset" or "consumable". Empty means no filter.
func ParseNature(raw string) (Nature, error) {
	n := Nature(raw)
	if raw == "" || n.Valid() {
		return n, nil
	}
	return "", ErrUnknownNature
}

// ErrUnknownNature is returned for nature filters outside asset/consumable.
var ErrUnknownNature = errors.New("catalog: unknown nature")

// Unit of measure codes.
const (
	UOMPiece = "piece"
	UOMBox   = "box"
	UOMPack  = "pack"
	UOMKg    = "kg"
	UOMLiter = "liter"
	UOMMeter = "meter"
	UOMReam  = "ream"
)

// Product is a catalog entry owned by a unit. StockQuantity is a cache of the
// authoritative figure kept by the asset or movement ledger.
type Product struct {
	ID            int64           `json:"id"`
	UnitID        int64           `json:"unit_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Nature        Nature          `json:"nature"`
	UOM           string          `json:"uom"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	MinStock      int64           `json:"min_stock"`
	StockQuantity int64           `json:"stock_quantity"`
	Active        bool            `json:"active"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsAsset reports whether units of the product are tracked individually.
func (p Product) IsAsset() bool {
	return p.Nature == NatureAsset
}

// LowStock reports whether the cached quantity is at or below min stock.
func (p Product) LowStock() bool {
	return p.StockQuantity <= p.MinStock
}

// ListFilter narrows product listings.
type ListFilter struct {
	UnitID *int64
	Nature Nature
	Search string
	Limit  int
	Offset int
}
