package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amirphl/futures-trader/internal/exchange"
	"github.com/amirphl/futures-trader/internal/order"
	"github.com/amirphl/futures-trader/internal/utils"
)

// OCOParams describes a one-cancels-the-other pair: a take-profit limit
// order and a stop-limit order, both on the same side since both close the
// same position.
type OCOParams struct {
	Symbol         string
	Side           string
	Quantity       decimal.Decimal
	Price          decimal.Decimal // take-profit limit price
	StopPrice      decimal.Decimal // stop-loss trigger
	StopLimitPrice decimal.Decimal // stop-loss execution price
}

// OCOResult is the outcome of an OCO placement. On partial failure the
// already-placed take-profit leg is reported so the caller can see what is
// resting on the exchange.
type OCOResult struct {
	Success    bool
	OCOID      string
	TakeProfit order.Result
	StopLoss   order.Result
	Error      string
	ErrorCode  int64
}

// PlaceOCO validates the pair, submits both legs and spawns the monitor.
//
// Known gap: if the stop leg fails after the take-profit leg was accepted,
// the take-profit leg is NOT rolled back and keeps resting on the exchange.
func (e *Engine) PlaceOCO(ctx context.Context, p OCOParams) OCOResult {
	if p.Side != exchange.SideBuy && p.Side != exchange.SideSell {
		return OCOResult{Error: fmt.Sprintf("side must be BUY or SELL, got %q", p.Side)}
	}
	if p.Quantity.LessThanOrEqual(decimal.Zero) {
		return OCOResult{Error: "quantity must be positive"}
	}
	// The take-profit exit must be more favorable than the stop: above it
	// when selling out of a long, below it when buying back a short.
	if p.Side == exchange.SideSell && p.Price.LessThanOrEqual(p.StopPrice) {
		return OCOResult{Error: "for SELL, take profit price must be higher than stop price"}
	}
	if p.Side == exchange.SideBuy && p.Price.GreaterThanOrEqual(p.StopPrice) {
		return OCOResult{Error: "for BUY, take profit price must be lower than stop price"}
	}

	utils.GetLogger().Printf("Strategy | Placing OCO for %s: %s qty=%s tp=%s stop=%s stopLimit=%s",
		p.Symbol, p.Side, p.Quantity, p.Price, p.StopPrice, p.StopLimitPrice)

	tp := e.orders.PlaceLimit(ctx, p.Symbol, p.Side, p.Quantity, p.Price, "")
	if !tp.Success {
		return OCOResult{TakeProfit: tp, Error: tp.Error, ErrorCode: tp.ErrorCode}
	}

	sl := e.orders.PlaceStopLimit(ctx, p.Symbol, p.Side, p.Quantity, p.StopPrice, p.StopLimitPrice, "")
	if !sl.Success {
		// Take-profit leg stays resting; see the doc comment.
		utils.GetLogger().Printf("Strategy | OCO stop leg failed, take profit %d left resting: %s", tp.OrderID, sl.Error)
		return OCOResult{TakeProfit: tp, StopLoss: sl, Error: sl.Error, ErrorCode: sl.ErrorCode}
	}

	st := &State{
		Kind:      KindOCO,
		Symbol:    p.Symbol,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
		OCO: &OCOState{
			TakeProfitOrderID: tp.OrderID,
			StopLossOrderID:   sl.OrderID,
		},
	}
	e.register(st)
	e.logEvent("strategy", "oco_started", map[string]any{
		"strategy_id":    st.ID,
		"symbol":         p.Symbol,
		"take_profit_id": tp.OrderID,
		"stop_loss_id":   sl.OrderID,
	})
	e.spawn(st.ID, func(taskCtx context.Context) {
		e.monitorOCO(taskCtx, st.ID, p.Symbol, tp.OrderID, sl.OrderID)
	})

	return OCOResult{Success: true, OCOID: st.ID, TakeProfit: tp, StopLoss: sl}
}

// monitorOCO polls both legs until one fills or both are cancelled. At most
// one leg is ever cancelled by this monitor, and never a leg that is itself
// already FILLED.
func (e *Engine) monitorOCO(ctx context.Context, id, symbol string, tpID, slID int64) {
	ticker := time.NewTicker(e.cfg.OCOPollInterval)
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
			tp := e.orders.Status(ctx, symbol, tpID)
			if !tp.Success {
				utils.GetLogger().Printf("Strategy | OCO %s: take profit status query failed: %s", id, tp.Error)
				e.fail(id, fmt.Sprintf("oco monitor: take profit status query failed: %s", tp.Error))
				return
			}
			if tp.Status == exchange.StatusFilled {
				e.resolveOCO(ctx, id, symbol, "take_profit_filled", slID)
				return
			}

			sl := e.orders.Status(ctx, symbol, slID)
			if !sl.Success {
				utils.GetLogger().Printf("Strategy | OCO %s: stop loss status query failed: %s", id, sl.Error)
				e.fail(id, fmt.Sprintf("oco monitor: stop loss status query failed: %s", sl.Error))
				return
			}
			if sl.Status == exchange.StatusFilled {
				e.resolveOCO(ctx, id, symbol, "stop_loss_filled", tpID)
				return
			}

			if tp.Status == exchange.StatusCanceled && sl.Status == exchange.StatusCanceled {
				utils.GetLogger().Printf("Strategy | OCO %s: both legs cancelled externally", id)
				e.registry.Update(id, func(st *State) { st.Status = StatusCancelled })
				e.logEvent("strategy", "oco_both_cancelled", map[string]any{"strategy_id": id})
				return
			}
		}
	}
}

// resolveOCO cancels the losing leg after the other filled. Cancellation
// failures are swallowed: the loser may have filled or been cancelled
// concurrently between polls.
func (e *Engine) resolveOCO(ctx context.Context, id, symbol, reason string, loserID int64) {
	utils.GetLogger().Printf("Strategy | OCO %s: %s, cancelling order %d", id, reason, loserID)

	if res := e.orders.Cancel(ctx, symbol, loserID); !res.Success {
		utils.GetLogger().Printf("Strategy | OCO %s: cancel of %d failed (ignored): %s", id, loserID, res.Error)
	}

	e.metrics.IncFillDetected(string(KindOCO))
	e.registry.Update(id, func(st *State) { st.Status = StatusCompleted })
	e.logEvent("strategy", "oco_"+reason, map[string]any{"strategy_id": id, "cancelled_order_id": loserID})
	e.notify(fmt.Sprintf("OCO %s resolved: %s", id, reason))
}
