// Package assets keeps one row per physical asset unit and guards its lifecycle.
package assets

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/unistock/internal/shared"
)

// State is the lifecycle state of an asset item.
type State string

const (
	// StatePending marks items reserved by a draft entry voucher.
	StatePending     State = "pending"
	StateAvailable   State = "available"
	StateAssigned    State = "assigned"
	StateMaintenance State = "maintenance"
	StateDisposed    State = "disposed"
	// StateVoid marks items of a cancelled entry voucher.
	StateVoid State = "void"
)

// Condition is the physical condition of an asset item.
type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionPoor    Condition = "poor"
	ConditionDamaged Condition = "damaged"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged:
		return true
	}
	return false
}

var (
	// ErrInvalidTransition indicates a lifecycle move the item cannot make.
	ErrInvalidTransition = fmt.Errorf("assets: invalid state transition: %w", shared.ErrInvalidState)
	// ErrDuplicateNumber indicates an inventory number already used in the unit.
	ErrDuplicateNumber = fmt.Errorf("assets: inventory number already exists: %w", shared.ErrUniquenessConflict)
	// ErrNumberSpaceExhausted indicates the generator could not find a free number.
	ErrNumberSpaceExhausted = fmt.Errorf("assets: inventory number generation exhausted: %w", shared.ErrUniquenessConflict)
)

var transitions = map[State][]State{
	StatePending:     {StateAvailable, StateVoid},
	StateAvailable:   {StateAssigned, StateMaintenance, StateDisposed},
	StateAssigned:    {StateAvailable, StateDisposed},
	StateMaintenance: {StateAvailable, StateDisposed},
}

// CanTransition reports whether an item may move from one state to another.
// Disposed and void are terminal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Item is one physical unit of an asset-natured product.
type Item struct {
	ID              int64           `json:"id"`
	UnitID          int64           `json:"unit_id"`
	ProductID       int64           `json:"product_id"`
	InventoryNumber string          `json:"inventory_number"`
	SerialNumber    string          `json:"serial_number,omitempty"`
	State           State           `json:"state"`
	Condition       Condition       `json:"condition"`
	PurchaseDate    time.Time       `json:"purchase_date"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	DepartmentID    *int64          `json:"department_id,omitempty"`
	Location        string          `json:"location,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Transition moves the item to the target state.
func (i *Item) Transition(to State) error {
	if !CanTransition(i.State, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, i.InventoryNumber, i.State, to)
	}
	i.State = to
	return nil
}

// InCirculation reports whether the item was received and not yet written off.
func (i *Item) InCirculation() bool {
	switch i.State {
	case StatePending, StateVoid, StateDisposed:
		return false
	}
	return true
}

// Assign moves an available item to a department.
func (i *Item) Assign(departmentID int64) error {
	if err := i.Transition(StateAssigned); err != nil {
		return err
	}
	i.DepartmentID = &departmentID
	return nil
}

// Release returns an assigned item to stock with the observed condition.
// Items in maintenance go back through Transition, not Release.
func (i *Item) Release(condition Condition) error {
	if i.State != StateAssigned {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, i.InventoryNumber, i.State, StateAvailable)
	}
	if err := i.Transition(StateAvailable); err != nil {
		return err
	}
	i.DepartmentID = nil
	if condition != "" {
		i.Condition = condition
	}
	return nil
}

// Dispose writes the item off.
func (i *Item) Dispose() error {
	if err := i.Transition(StateDisposed); err != nil {
		return err
	}
	i.Condition = ConditionDamaged
	return nil
}

// ListFilter narrows item listings.
type ListFilter struct {
	UnitID    *int64
	ProductID int64
	State     State
	Limit     int
	Offset    int
}
