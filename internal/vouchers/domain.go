package vouchers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/unistock/internal/assets"
	"github.com/odyssey-erp/unistock/internal/ledger"
)

// Kind identifies the voucher workflow.
type Kind string

const (
	KindEntry    Kind = "entry"
	KindExit     Kind = "exit"
	KindReturn   Kind = "return"
	KindDisposal Kind = "disposal"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEntry, KindExit, KindReturn, KindDisposal:
		return true
	}
	return false
}

// Prefix is the voucher number prefix of the kind.
func (k Kind) Prefix() string {
	switch k {
	case KindEntry:
		return "ENT"
	case KindExit:
		return "EXT"
	case KindReturn:
		return "RET"
	case KindDisposal:
		return "DIS"
	}
	return "VCH"
}

// Decrements reports whether confirmation consumes stock.
func (k Kind) Decrements() bool {
	return k == KindExit || k == KindDisposal
}

// movementKind maps the voucher kind to the ledger kind written for consumables.
func (k Kind) movementKind() ledger.Kind {
	switch k {
	case KindEntry:
		return ledger.KindIn
	case KindExit:
		return ledger.KindOut
	case KindReturn:
		return ledger.KindReturn
	}
	return ledger.KindAdjust
}

// Status is the voucher lifecycle status.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// DisposalReason explains a write-off.
type DisposalReason string

const (
	DisposalDamaged  DisposalReason = "damaged"
	DisposalObsolete DisposalReason = "obsolete"
	DisposalLost     DisposalReason = "lost"
	DisposalTheft    DisposalReason = "theft"
	DisposalOther    DisposalReason = "other"
)

// Valid reports whether r is a known reason.
func (r DisposalReason) Valid() bool {
	switch r {
	case DisposalDamaged, DisposalObsolete, DisposalLost, DisposalTheft, DisposalOther:
		return true
	}
	return false
}

// Voucher is a transaction header with its lines. Variant fields are empty
// for kinds that do not use them.
type Voucher struct {
	ID     int64     `json:"id"`
	Kind   Kind      `json:"kind"`
	Number string    `json:"number"`
	UnitID int64     `json:"unit_id"`
	Date   time.Time `json:"date"`
	Status Status    `json:"status"`
	Notes  string    `json:"notes,omitempty"`

	Supplier      string     `json:"supplier,omitempty"`
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	InvoiceDate   *time.Time `json:"invoice_date,omitempty"`

	DepartmentID   *int64 `json:"department_id,omitempty"`
	RecipientName  string `json:"recipient_name,omitempty"`
	ReturnReason   string `json:"return_reason,omitempty"`
	OriginalExitID *int64 `json:"original_exit_id,omitempty"`

	DisposalReason  DisposalReason `json:"disposal_reason,omitempty"`
	Committee       string         `json:"committee,omitempty"`
	DisposalDate    *time.Time     `json:"disposal_date,omitempty"`
	DisposalDetails string         `json:"disposal_details,omitempty"`

	CreatedBy   int64      `json:"created_by"`
	ConfirmedBy *int64     `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Lines []Line `json:"lines"`
}

// TotalAmount sums quantity times unit price over the lines.
func (v Voucher) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, line := range v.Lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
	}
	return total
}

// AssetIDs returns every asset referenced by the voucher's lines.
func (v Voucher) AssetIDs() []int64 {
	ids := []int64{}
	for _, line := range v.Lines {
		ids = append(ids, line.AssetIDs...)
	}
	return ids
}

// Line is one product line. AssetIDs lists the physical units moved by the
// line when the product is asset-natured.
type Line struct {
	ID                int64            `json:"id"`
	VoucherID         int64            `json:"voucher_id"`
	ProductID         int64            `json:"product_id"`
	Quantity          int64            `json:"quantity"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	Condition         assets.Condition `json:"condition,omitempty"`
	DamageDescription string           `json:"damage_description,omitempty"`
	AssetIDs          []int64          `json:"asset_ids,omitempty"`
}

// NewAsset is a caller-supplied identity for a unit received on an entry line.
// An empty inventory number asks the engine to generate one.
type NewAsset struct {
	InventoryNumber string
	SerialNumber    string
}

// LineInput is one requested line.
type LineInput struct {
	ProductID         int64
	Quantity          int64
	UnitPrice         decimal.Decimal
	Condition         assets.Condition
	DamageDescription string
	AssetIDs          []int64
	NewAssets         []NewAsset
}

// CreateInput is the header and lines of a new draft voucher.
type CreateInput struct {
	Kind   Kind
	UnitID int64
	Date   time.Time
	Notes  string

	Supplier      string
	InvoiceNumber string
	InvoiceDate   *time.Time

	DepartmentID   int64
	RecipientName  string
	ReturnReason   string
	OriginalExitID int64

	DisposalReason  DisposalReason
	Committee       string
	DisposalDate    *time.Time
	DisposalDetails string

	Lines          []LineInput
	IdempotencyKey string
}

// ListFilter narrows voucher listings.
type ListFilter struct {
	UnitID *int64
	Kind   Kind
	Status Status
	Limit  int
	Offset int
}

// ListRequest carries listing parameters from the transport.
type ListRequest struct {
	Kind    Kind
	Status  Status
	Page    int
	PerPage int
}
