// Package precision rounds prices and quantities to the exchange's tick and
// step sizes. All arithmetic is decimal; binary floats never touch a value
// that is compared against a filter.
package precision

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/amirphl/futures-trader/internal/exchange"
)

// ValidationError reports an input that violates the symbol's constraints
// before anything reaches the exchange.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// FloorToStep truncates v down to the nearest multiple of step, preserving
// step's decimal scale. Rounding is always downward in this system: staying
// under the requested exposure is the conservative direction.
func FloorToStep(v, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

// NearestStep rounds v to the closest multiple of step (half away from
// zero). Only TWAP slice quantities use nearest semantics.
func NearestStep(v, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return v
	}
	return v.Div(step).Round(0).Mul(step)
}

// NormalizeQuantity validates qty against the symbol's lot bounds and floors
// it to the step size.
func NormalizeQuantity(filters exchange.SymbolFilters, qty decimal.Decimal) (decimal.Decimal, error) {
	if qty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, validationErrorf("quantity %s must be positive", qty)
	}
	if qty.LessThan(filters.MinQty) {
		return decimal.Zero, validationErrorf("quantity %s is below minimum %s", qty, filters.MinQty)
	}
	if filters.MaxQty.IsPositive() && qty.GreaterThan(filters.MaxQty) {
		return decimal.Zero, validationErrorf("quantity %s exceeds maximum %s", qty, filters.MaxQty)
	}
	return FloorToStep(qty, filters.StepSize), nil
}

// NormalizePrice floors price to the symbol's tick size.
func NormalizePrice(filters exchange.SymbolFilters, price decimal.Decimal) (decimal.Decimal, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, validationErrorf("price %s must be positive", price)
	}
	return FloorToStep(price, filters.TickSize), nil
}
