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

// GridParams describes a ladder of NumGrids limit orders evenly spaced from
// LowerPrice to UpperPrice inclusive.
type GridParams struct {
	Symbol          string
	LowerPrice      decimal.Decimal
	UpperPrice      decimal.Decimal
	NumGrids        int
	QuantityPerGrid decimal.Decimal
}

// GridResult is the outcome of starting a grid.
type GridResult struct {
	Success      bool
	GridID       string
	Levels       []decimal.Decimal
	Spacing      decimal.Decimal
	CurrentPrice decimal.Decimal
	Orders       []GridOrder
	Error        string
	ErrorCode    int64
}

// StopGridResult is the outcome of stopping a grid.
type StopGridResult struct {
	Success         bool
	GridID          string
	OrdersCancelled int
	Error           string
}

// StartGrid places the initial ladder and spawns the monitor. Levels below
// the current price rest as BUY orders, levels at or above it as SELL orders.
// A level whose placement fails is logged and skipped; the rest of the ladder
// is unaffected.
func (e *Engine) StartGrid(ctx context.Context, p GridParams) GridResult {
	if p.LowerPrice.GreaterThanOrEqual(p.UpperPrice) {
		return GridResult{Error: "lower price must be less than upper price"}
	}
	if p.NumGrids < 2 {
		return GridResult{Error: "number of grids must be at least 2"}
	}
	if p.QuantityPerGrid.LessThanOrEqual(decimal.Zero) {
		return GridResult{Error: "quantity per grid must be positive"}
	}

	currentPrice, err := e.orders.CurrentPrice(ctx, p.Symbol)
	if err != nil {
		return gridFailure(err)
	}
	filters, err := e.orders.Exchange().SymbolFilters(ctx, p.Symbol)
	if err != nil {
		return gridFailure(err)
	}

	utils.GetLogger().Printf("Strategy | Starting grid for %s: %s - %s, %d levels, current price %s",
		p.Symbol, p.LowerPrice, p.UpperPrice, p.NumGrids, currentPrice)

	// NumGrids evenly spaced levels, bounds inclusive, floored to tick size.
	spacing := p.UpperPrice.Sub(p.LowerPrice).Div(decimal.NewFromInt(int64(p.NumGrids - 1)))
	levels := make([]decimal.Decimal, 0, p.NumGrids)
	for i := 0; i < p.NumGrids; i++ {
		level := p.LowerPrice.Add(spacing.Mul(decimal.NewFromInt(int64(i))))
		levels = append(levels, precision.FloorToStep(level, filters.TickSize))
	}

	var orders []GridOrder
	for _, level := range levels {
		side := exchange.SideSell
		if level.LessThan(currentPrice) {
			side = exchange.SideBuy
		}

		res := e.orders.PlaceLimit(ctx, p.Symbol, side, p.QuantityPerGrid, level, "")
		if !res.Success {
			utils.GetLogger().Printf("Strategy | Grid level %s %s failed, skipping: %s", side, level, res.Error)
			continue
		}
		orders = append(orders, GridOrder{OrderID: res.OrderID, Price: level, Side: side})
		utils.GetLogger().Printf("Strategy | Grid %s order placed at %s: %d", side, level, res.OrderID)
	}

	st := &State{
		Kind:      KindGrid,
		Symbol:    p.Symbol,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
		Grid: &GridState{
			LowerPrice:       p.LowerPrice,
			UpperPrice:       p.UpperPrice,
			NumLevels:        p.NumGrids,
			QuantityPerLevel: p.QuantityPerGrid,
			Levels:           levels,
			Orders:           orders,
			ActiveOrders:     len(orders),
		},
	}
	e.register(st)
	e.logEvent("strategy", "grid_started", map[string]any{
		"strategy_id":   st.ID,
		"symbol":        p.Symbol,
		"num_levels":    p.NumGrids,
		"orders_placed": len(orders),
	})
	e.spawn(st.ID, func(taskCtx context.Context) {
		e.monitorGrid(taskCtx, st.ID, p.Symbol)
	})

	return GridResult{
		Success:      true,
		GridID:       st.ID,
		Levels:       levels,
		Spacing:      spacing,
		CurrentPrice: currentPrice,
		Orders:       append([]GridOrder(nil), orders...),
	}
}

func gridFailure(err error) GridResult {
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) {
		return GridResult{Error: apiErr.Message, ErrorCode: apiErr.Code}
	}
	return GridResult{Error: err.Error()}
}

// monitorGrid polls the ladder while the grid is active. Every order is
// examined for a fill at most once: a FILLED order is marked checked and
// replaced by an opposite-side limit order at the same level, which is
// appended unmarked so it becomes eligible for future fill detection. This
// is the mean-reversion core of grid trading: each fill captures a move and
// re-offers liquidity at the same level for the reverse move.
func (e *Engine) monitorGrid(ctx context.Context, id, symbol string) {
	ticker := time.NewTicker(e.cfg.GridPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.registry.Update(id, func(st *State) {
				if st.Status == StatusActive {
					st.Status = StatusStopped
				}
			})
			return

		case <-ticker.C:
			st, ok := e.registry.Get(id)
			if !ok {
				return
			}
			if st.Status != StatusActive {
				return
			}

			// Orders are append-only, so indexes in this snapshot stay valid
			// against the live state.
			for i, o := range st.Grid.Orders {
				if o.Checked {
					continue
				}

				res := e.orders.Status(ctx, symbol, o.OrderID)
				if !res.Success {
					// Per-order failures never abort the monitor loop.
					utils.GetLogger().Printf("Strategy | Grid %s: status query for %d failed: %s", id, o.OrderID, res.Error)
					continue
				}
				if res.Status != exchange.StatusFilled {
					continue
				}

				utils.GetLogger().Printf("Strategy | Grid %s: order %d filled at %s", id, o.OrderID, o.Price)
				e.metrics.IncFillDetected(string(KindGrid))
				e.registry.Update(id, func(st *State) {
					st.Grid.Orders[i].Checked = true
					st.Grid.TotalFills++
					st.Grid.ActiveOrders--
				})

				opposite := exchange.SideBuy
				if o.Side == exchange.SideBuy {
					opposite = exchange.SideSell
				}

				rep := e.orders.PlaceLimit(ctx, symbol, opposite, st.Grid.QuantityPerLevel, o.Price, "")
				if !rep.Success {
					utils.GetLogger().Printf("Strategy | Grid %s: replacement %s at %s failed: %s", id, opposite, o.Price, rep.Error)
					continue
				}

				e.registry.Update(id, func(st *State) {
					st.Grid.Orders = append(st.Grid.Orders, GridOrder{OrderID: rep.OrderID, Price: o.Price, Side: opposite})
					st.Grid.ActiveOrders++
				})
				utils.GetLogger().Printf("Strategy | Grid %s: replaced with %s at %s, order %d", id, opposite, o.Price, rep.OrderID)
				e.logEvent("strategy", "grid_fill_replaced", map[string]any{
					"strategy_id":     id,
					"filled_order_id": o.OrderID,
					"new_order_id":    rep.OrderID,
					"price":           o.Price.String(),
					"side":            opposite,
				})
				e.notify(fmt.Sprintf("Grid %s: fill at %s, replaced with %s", id, o.Price, opposite))
			}
		}
	}
}

// StopGrid sets the grid to stopped and best-effort cancels every recorded
// order, checked or not. Calling it again is safe: the second pass finds
// nothing cancellable and reports zero new cancellations.
func (e *Engine) StopGrid(ctx context.Context, id string) StopGridResult {
	st, ok := e.registry.Get(id)
	if !ok {
		return StopGridResult{Error: fmt.Sprintf("grid id %s not found", id)}
	}
	if st.Kind != KindGrid {
		return StopGridResult{Error: fmt.Sprintf("strategy %s is not a grid", id)}
	}

	e.registry.Update(id, func(st *State) { st.Status = StatusStopped })

	// Re-read after the status flip so the snapshot includes any replacement
	// appended by the monitor in between.
	st, _ = e.registry.Get(id)

	cancelled := 0
	for _, o := range st.Grid.Orders {
		if res := e.orders.Cancel(ctx, st.Symbol, o.OrderID); res.Success {
			cancelled++
		}
	}

	utils.GetLogger().Printf("Strategy | Grid %s stopped, cancelled %d orders", id, cancelled)
	e.logEvent("strategy", "grid_stopped", map[string]any{"strategy_id": id, "orders_cancelled": cancelled})
	e.notify(fmt.Sprintf("Grid %s stopped, cancelled %d orders", id, cancelled))

	return StopGridResult{Success: true, GridID: id, OrdersCancelled: cancelled}
}
