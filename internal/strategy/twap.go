package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amirphl/futures-trader/internal/exchange"
	"github.com/amirphl/futures-trader/internal/precision"
	"github.com/amirphl/futures-trader/internal/utils"
)

// TWAPParams describes a time-sliced execution: TotalQuantity split into
// NumOrders equal market orders spread evenly over Duration.
type TWAPParams struct {
	Symbol        string
	Side          string
	TotalQuantity decimal.Decimal
	Duration      time.Duration
	NumOrders     int
}

// TWAPResult is the outcome of a TWAP placement.
type TWAPResult struct {
	Success             bool
	TWAPID              string
	TotalQuantity       decimal.Decimal
	SliceQuantity       decimal.Decimal
	NumSlices           int
	Interval            time.Duration
	EstimatedCompletion time.Time
	Error               string
	ErrorCode           int64
}

// CancelResult is the outcome of a cooperative cancellation request.
type CancelResult struct {
	Success bool
	Error   string
}

// PlaceTWAP validates the parameters, registers the strategy and spawns the
// executor. The slice quantity is rounded to the NEAREST step multiple, not
// floored: with a fixed slice count, nearest keeps the executed total closest
// to the requested one.
func (e *Engine) PlaceTWAP(ctx context.Context, p TWAPParams) TWAPResult {
	if p.Side != exchange.SideBuy && p.Side != exchange.SideSell {
		return TWAPResult{Error: fmt.Sprintf("side must be BUY or SELL, got %q", p.Side)}
	}
	if p.TotalQuantity.LessThanOrEqual(decimal.Zero) {
		return TWAPResult{Error: "total quantity must be positive"}
	}
	if p.Duration <= 0 {
		return TWAPResult{Error: "duration must be positive"}
	}
	if p.NumOrders <= 0 {
		return TWAPResult{Error: "number of orders must be positive"}
	}

	filters, err := e.orders.Exchange().SymbolFilters(ctx, p.Symbol)
	if err != nil {
		res := TWAPResult{Error: err.Error()}
		var apiErr *exchange.APIError
		if errors.As(err, &apiErr) {
			res.Error = apiErr.Message
			res.ErrorCode = apiErr.Code
		}
		return res
	}

	sliceQty := precision.NearestStep(p.TotalQuantity.Div(decimal.NewFromInt(int64(p.NumOrders))), filters.StepSize)
	interval := p.Duration / time.Duration(p.NumOrders)

	utils.GetLogger().Printf("Strategy | Placing TWAP for %s: %s total=%s slices=%d sliceQty=%s interval=%s",
		p.Symbol, p.Side, p.TotalQuantity, p.NumOrders, sliceQty, interval)

	st := &State{
		Kind:      KindTWAP,
		Symbol:    p.Symbol,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
		TWAP: &TWAPState{
			Side:          p.Side,
			TotalQuantity: p.TotalQuantity,
			SliceQuantity: sliceQty,
			NumSlices:     p.NumOrders,
			Interval:      interval,
		},
	}
	e.register(st)
	e.logEvent("strategy", "twap_started", map[string]any{
		"strategy_id": st.ID,
		"symbol":      p.Symbol,
		"num_slices":  p.NumOrders,
	})
	e.spawn(st.ID, func(taskCtx context.Context) {
		e.runTWAP(taskCtx, st.ID, p.Symbol, p.Side, sliceQty, p.NumOrders, interval)
	})

	return TWAPResult{
		Success:             true,
		TWAPID:              st.ID,
		TotalQuantity:       p.TotalQuantity,
		SliceQuantity:       sliceQty,
		NumSlices:           p.NumOrders,
		Interval:            interval,
		EstimatedCompletion: time.Now().UTC().Add(p.Duration),
	}
}

// CancelTWAP flips the cooperative cancelled flag. It takes effect before the
// next slice is placed, never mid-slice.
func (e *Engine) CancelTWAP(id string) CancelResult {
	st, ok := e.registry.Get(id)
	if !ok {
		return CancelResult{Error: fmt.Sprintf("strategy id %s not found", id)}
	}
	if st.Kind != KindTWAP {
		return CancelResult{Error: fmt.Sprintf("strategy %s is not a TWAP", id)}
	}

	e.registry.Update(id, func(st *State) {
		if st.Status == StatusActive {
			st.Status = StatusCancelled
		}
	})
	e.logEvent("strategy", "twap_cancel_requested", map[string]any{"strategy_id": id})
	return CancelResult{Success: true}
}

// runTWAP places the slices. A failed slice is recorded and does not abort
// the remaining slices; the strategy completes even if some slices failed.
func (e *Engine) runTWAP(ctx context.Context, id, symbol, side string, sliceQty decimal.Decimal, numOrders int, interval time.Duration) {
	for i := 0; i < numOrders; i++ {
		st, ok := e.registry.Get(id)
		if !ok {
			return
		}
		if st.Status == StatusCancelled {
			utils.GetLogger().Printf("Strategy | TWAP %s cancelled after %d slices", id, st.TWAP.SlicesPlaced)
			e.logEvent("strategy", "twap_cancelled", map[string]any{"strategy_id": id, "slices_placed": st.TWAP.SlicesPlaced})
			return
		}

		res := e.orders.PlaceMarket(ctx, symbol, side, sliceQty)
		now := time.Now().UTC()
		if res.Success {
			e.registry.Update(id, func(st *State) {
				st.TWAP.Slices = append(st.TWAP.Slices, TWAPSlice{OrderID: res.OrderID, Quantity: sliceQty, Timestamp: now})
				st.TWAP.SlicesPlaced++
			})
			utils.GetLogger().Printf("Strategy | TWAP %s: slice %d/%d placed, order %d", id, i+1, numOrders, res.OrderID)
		} else {
			e.registry.Update(id, func(st *State) {
				st.TWAP.Slices = append(st.TWAP.Slices, TWAPSlice{Error: res.Error, Timestamp: now})
			})
			utils.GetLogger().Printf("Strategy | TWAP %s: slice %d/%d failed: %s", id, i+1, numOrders, res.Error)
		}

		if i < numOrders-1 {
			select {
			case <-ctx.Done():
				e.registry.Update(id, func(st *State) {
					if st.Status == StatusActive {
						st.Status = StatusStopped
					}
				})
				return
			case <-time.After(interval):
			}
		}
	}

	var placed int
	e.registry.Update(id, func(st *State) {
		if st.Status == StatusActive {
			st.Status = StatusCompleted
		}
		placed = st.TWAP.SlicesPlaced
	})
	utils.GetLogger().Printf("Strategy | TWAP %s completed: %d/%d slices placed", id, placed, numOrders)
	e.logEvent("strategy", "twap_completed", map[string]any{"strategy_id": id, "slices_placed": placed})
	e.notify(fmt.Sprintf("TWAP %s completed: %d/%d slices placed", id, placed, numOrders))
}
