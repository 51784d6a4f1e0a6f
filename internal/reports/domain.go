// Package reports serves read-only inventory aggregates.
package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Window is the look-back period of voucher activity on the dashboard.
const Window = 30 * 24 * time.Hour

// LowStockItem is a consumable at or below its minimum stock.
type LowStockItem struct {
	ProductID int64  `json:"product_id"`
	UnitID    int64  `json:"unit_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Stock     int64  `json:"stock"`
	MinStock  int64  `json:"min_stock"`
}

// Dashboard is the summary shown on the landing page.
type Dashboard struct {
	AssetsByState   map[string]int64 `json:"assets_by_state"`
	AssetValue      decimal.Decimal  `json:"asset_value"`
	RecentVouchers  map[string]int64 `json:"recent_vouchers"`
	LowStock        []LowStockItem   `json:"low_stock"`
	GeneratedAt     time.Time        `json:"generated_at"`
	WindowStartedAt time.Time        `json:"window_started_at"`
}
