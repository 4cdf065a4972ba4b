// Package order
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/amirphl/futures-trader/internal/exchange"
	"github.com/amirphl/futures-trader/internal/metrics"
	"github.com/amirphl/futures-trader/internal/precision"
	"github.com/amirphl/futures-trader/internal/utils"
)

// Service places and queries single orders. Every placement normalizes
// quantities and prices against the symbol's filters before submission, and
// every outcome comes back as a Result. No retries: a failed placement is
// reported once and the caller decides.
type Service struct {
	ex       exchange.Exchange
	recorder Recorder
	metrics  *metrics.Metrics
}

// NewService builds the primitive order service. recorder and m may be nil.
func NewService(ex exchange.Exchange, recorder Recorder, m *metrics.Metrics) *Service {
	return &Service{ex: ex, recorder: recorder, metrics: m}
}

// Exchange returns the underlying gateway; the strategy engine reads market
// data through it.
func (s *Service) Exchange() exchange.Exchange {
	return s.ex
}

func validSide(side string) bool {
	return side == exchange.SideBuy || side == exchange.SideSell
}

// failure maps an error into a failed Result, preserving the exchange error
// code when the gateway reported a structured rejection.
func failure(err error) Result {
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) {
		return Result{Error: apiErr.Message, ErrorCode: apiErr.Code}
	}
	return Result{Error: err.Error()}
}

func failuref(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// PlaceMarket submits a market order.
func (s *Service) PlaceMarket(ctx context.Context, symbol, side string, qty decimal.Decimal) Result {
	if !validSide(side) {
		return failuref("side must be BUY or SELL, got %q", side)
	}

	filters, err := s.ex.SymbolFilters(ctx, symbol)
	if err != nil {
		s.metrics.IncOrderFailure()
		return failure(err)
	}
	normQty, err := precision.NormalizeQuantity(filters, qty)
	if err != nil {
		return failure(err)
	}

	utils.GetLogger().Printf("Order | Placing MARKET %s order: %s %s", side, normQty, symbol)

	created, err := s.ex.CreateOrder(ctx, exchange.OrderParams{
		Symbol:   symbol,
		Side:     side,
		Type:     exchange.TypeMarket,
		Quantity: normQty.String(),
	})
	if err != nil {
		s.metrics.IncOrderFailure()
		utils.GetLogger().Printf("Order | Market order failed: %v", err)
		return failure(err)
	}

	res := Result{
		Success:  true,
		OrderID:  created.OrderID,
		Symbol:   created.Symbol,
		Side:     created.Side,
		Type:     created.Type,
		Quantity: normQty,
		Status:   created.Status,
	}
	s.metrics.IncOrderPlaced(exchange.TypeMarket)
	s.record(ctx, res)
	return res
}

// PlaceLimit submits a limit order. An empty timeInForce defaults to GTC.
func (s *Service) PlaceLimit(ctx context.Context, symbol, side string, qty, price decimal.Decimal, timeInForce string) Result {
	if !validSide(side) {
		return failuref("side must be BUY or SELL, got %q", side)
	}
	if timeInForce == "" {
		timeInForce = exchange.TimeInForceGTC
	}

	filters, err := s.ex.SymbolFilters(ctx, symbol)
	if err != nil {
		s.metrics.IncOrderFailure()
		return failure(err)
	}
	normQty, err := precision.NormalizeQuantity(filters, qty)
	if err != nil {
		return failure(err)
	}
	normPrice, err := precision.NormalizePrice(filters, price)
	if err != nil {
		return failure(err)
	}

	utils.GetLogger().Printf("Order | Placing LIMIT %s order: %s %s @ %s", side, normQty, symbol, normPrice)

	created, err := s.ex.CreateOrder(ctx, exchange.OrderParams{
		Symbol:      symbol,
		Side:        side,
		Type:        exchange.TypeLimit,
		Quantity:    normQty.String(),
		Price:       normPrice.String(),
		TimeInForce: timeInForce,
	})
	if err != nil {
		s.metrics.IncOrderFailure()
		utils.GetLogger().Printf("Order | Limit order failed: %v", err)
		return failure(err)
	}

	res := Result{
		Success:  true,
		OrderID:  created.OrderID,
		Symbol:   created.Symbol,
		Side:     created.Side,
		Type:     created.Type,
		Quantity: normQty,
		Price:    normPrice,
		Status:   created.Status,
	}
	s.metrics.IncOrderPlaced(exchange.TypeLimit)
	s.record(ctx, res)
	return res
}

// PlaceStopLimit submits a stop-limit (STOP) order: limitPrice is the
// execution price once stopPrice triggers.
func (s *Service) PlaceStopLimit(ctx context.Context, symbol, side string, qty, stopPrice, limitPrice decimal.Decimal, timeInForce string) Result {
	if !validSide(side) {
		return failuref("side must be BUY or SELL, got %q", side)
	}
	if timeInForce == "" {
		timeInForce = exchange.TimeInForceGTC
	}

	filters, err := s.ex.SymbolFilters(ctx, symbol)
	if err != nil {
		s.metrics.IncOrderFailure()
		return failure(err)
	}
	normQty, err := precision.NormalizeQuantity(filters, qty)
	if err != nil {
		return failure(err)
	}
	normStop, err := precision.NormalizePrice(filters, stopPrice)
	if err != nil {
		return failure(err)
	}
	normLimit, err := precision.NormalizePrice(filters, limitPrice)
	if err != nil {
		return failure(err)
	}

	utils.GetLogger().Printf("Order | Placing STOP %s order: %s %s stop@%s limit@%s", side, normQty, symbol, normStop, normLimit)

	created, err := s.ex.CreateOrder(ctx, exchange.OrderParams{
		Symbol:      symbol,
		Side:        side,
		Type:        exchange.TypeStop,
		Quantity:    normQty.String(),
		Price:       normLimit.String(),
		StopPrice:   normStop.String(),
		TimeInForce: timeInForce,
	})
	if err != nil {
		s.metrics.IncOrderFailure()
		utils.GetLogger().Printf("Order | Stop-limit order failed: %v", err)
		return failure(err)
	}

	res := Result{
		Success:   true,
		OrderID:   created.OrderID,
		Symbol:    created.Symbol,
		Side:      created.Side,
		Type:      created.Type,
		Quantity:  normQty,
		Price:     normLimit,
		StopPrice: normStop,
		Status:    created.Status,
	}
	s.metrics.IncOrderPlaced(exchange.TypeStop)
	s.record(ctx, res)
	return res
}

// Cancel cancels an open order.
func (s *Service) Cancel(ctx context.Context, symbol string, orderID int64) Result {
	cancelled, err := s.ex.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		return failure(err)
	}

	s.metrics.IncOrderCancelled()
	return Result{
		Success: true,
		OrderID: cancelled.OrderID,
		Symbol:  cancelled.Symbol,
		Side:    cancelled.Side,
		Type:    cancelled.Type,
		Status:  cancelled.Status,
	}
}

// Status queries a single order's state.
func (s *Service) Status(ctx context.Context, symbol string, orderID int64) Result {
	o, err := s.ex.GetOrder(ctx, symbol, orderID)
	if err != nil {
		return failure(err)
	}
	return fromExchangeOrder(o)
}

// OpenOrders lists resting orders, optionally restricted to one symbol.
func (s *Service) OpenOrders(ctx context.Context, symbol string) OpenOrdersResult {
	orders, err := s.ex.OpenOrders(ctx, symbol)
	if err != nil {
		res := failure(err)
		return OpenOrdersResult{Error: res.Error, ErrorCode: res.ErrorCode}
	}

	out := make([]Result, 0, len(orders))
	for _, o := range orders {
		out = append(out, fromExchangeOrder(o))
	}
	return OpenOrdersResult{Success: true, Count: len(out), Orders: out}
}

// CurrentPrice returns the last traded price for symbol.
func (s *Service) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.ex.CurrentPrice(ctx, symbol)
}

func (s *Service) record(ctx context.Context, res Result) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordOrder(ctx, res); err != nil {
		utils.GetLogger().Printf("Order | Failed to record order %d: %v", res.OrderID, err)
	}
}

func fromExchangeOrder(o exchange.Order) Result {
	res := Result{
		Success: true,
		OrderID: o.OrderID,
		Symbol:  o.Symbol,
		Side:    o.Side,
		Type:    o.Type,
		Status:  o.Status,
	}
	// The gateway reports these as decimal strings; unset fields stay zero.
	if q, err := decimal.NewFromString(o.OrigQty); err == nil {
		res.Quantity = q
	}
	if p, err := decimal.NewFromString(o.Price); err == nil {
		res.Price = p
	}
	if sp, err := decimal.NewFromString(o.StopPrice); err == nil {
		res.StopPrice = sp
	}
	if eq, err := decimal.NewFromString(o.ExecutedQty); err == nil {
		res.ExecutedQty = eq
	}
	return res
}
