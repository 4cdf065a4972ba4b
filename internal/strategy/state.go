// Package strategy
package strategy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies a composite strategy type.
type Kind string

const (
	KindOCO  Kind = "OCO"
	KindTWAP Kind = "TWAP"
	KindGrid Kind = "GRID"
)

// Status is a strategy's lifecycle state. completed, stopped, cancelled and
// error are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// OCOState tracks the two resting legs of an OCO pair.
type OCOState struct {
	TakeProfitOrderID int64
	StopLossOrderID   int64
}

// TWAPSlice records one slice attempt: either an accepted order or the
// submission error.
type TWAPSlice struct {
	OrderID   int64
	Quantity  decimal.Decimal
	Error     string
	Timestamp time.Time
}

// TWAPState tracks a time-sliced execution.
type TWAPState struct {
	Side          string
	TotalQuantity decimal.Decimal
	SliceQuantity decimal.Decimal
	NumSlices     int
	Interval      time.Duration
	SlicesPlaced  int
	Slices        []TWAPSlice
}

// GridOrder is one resting ladder order. Checked marks orders whose fill has
// already been processed so a replacement is never issued twice.
type GridOrder struct {
	OrderID int64
	Price   decimal.Decimal
	Side    string
	Checked bool
}

// GridState tracks a grid ladder.
type GridState struct {
	LowerPrice       decimal.Decimal
	UpperPrice       decimal.Decimal
	NumLevels        int
	QuantityPerLevel decimal.Decimal
	// Levels hold the tick-floored prices, matching the resting orders
	// rather than the raw evenly spaced values.
	Levels           []decimal.Decimal
	Orders           []GridOrder
	ActiveOrders     int
	TotalFills       int
}

// State is the full state of one strategy. Exactly one background task owns
// write access; everyone else reads snapshots through the registry.
type State struct {
	ID        string
	Kind      Kind
	Symbol    string
	Status    Status
	CreatedAt time.Time

	OCO  *OCOState
	TWAP *TWAPState
	Grid *GridState
}

// Summary is the projection returned by list operations.
type Summary struct {
	Kind      Kind
	Symbol    string
	Status    Status
	CreatedAt time.Time
}

// Clone deep-copies the state so registry readers never alias task-owned
// slices.
func (s *State) Clone() State {
	out := *s
	if s.OCO != nil {
		oco := *s.OCO
		out.OCO = &oco
	}
	if s.TWAP != nil {
		twap := *s.TWAP
		twap.Slices = append([]TWAPSlice(nil), s.TWAP.Slices...)
		out.TWAP = &twap
	}
	if s.Grid != nil {
		grid := *s.Grid
		grid.Levels = append([]decimal.Decimal(nil), s.Grid.Levels...)
		grid.Orders = append([]GridOrder(nil), s.Grid.Orders...)
		out.Grid = &grid
	}
	return out
}

// Summary returns the list projection of this state.
func (s *State) Summary() Summary {
	return Summary{Kind: s.Kind, Symbol: s.Symbol, Status: s.Status, CreatedAt: s.CreatedAt}
}
