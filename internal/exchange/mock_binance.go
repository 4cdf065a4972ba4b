// Package exchange
package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amirphl/futures-trader/internal/utils"
)

// MockExchange is an in-memory exchange used by tests and paper mode. Orders
// are kept in a table so callers can flip them to FILLED and watch the
// strategy monitors react.
type MockExchange struct {
	mu           sync.Mutex
	orderCounter int64
	orders       map[int64]Order
	filters      map[string]SymbolFilters
	prices       map[string]decimal.Decimal

	// CreateHook, when set, runs before an order is accepted; returning an
	// error rejects the submission. Used to script failures.
	CreateHook func(params OrderParams) error

	// GetOrderHook, when set, runs before a status query; returning an error
	// fails the query. Used to script transport failures mid-monitor.
	GetOrderHook func(symbol string, orderID int64) error
}

func NewMockExchange() *MockExchange {
	return &MockExchange{
		orderCounter: 1000,
		orders:       make(map[int64]Order),
		filters:      make(map[string]SymbolFilters),
		prices:       make(map[string]decimal.Decimal),
	}
}

func (m *MockExchange) Name() string {
	return "mock-binance"
}

// SetFilters installs the symbol constraints returned by SymbolFilters.
func (m *MockExchange) SetFilters(f SymbolFilters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[f.Symbol] = f
}

// SetPrice installs the last price returned by CurrentPrice.
func (m *MockExchange) SetPrice(symbol string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// MarkFilled flips an order to FILLED as if the exchange matched it.
func (m *MockExchange) MarkFilled(orderID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return
	}
	o.Status = StatusFilled
	o.ExecutedQty = o.OrigQty
	o.UpdatedAt = time.Now().UTC()
	m.orders[orderID] = o
}

// Order returns a copy of the stored order and whether it exists.
func (m *MockExchange) Order(orderID int64) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	return o, ok
}

// Orders returns all submitted orders in submission order.
func (m *MockExchange) Orders() []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, 0, len(m.orders))
	for id := int64(1001); id <= m.orderCounter; id++ {
		if o, ok := m.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

func (m *MockExchange) CreateOrder(ctx context.Context, params OrderParams) (Order, error) {
	select {
	case <-ctx.Done():
		return Order{}, ctx.Err()
	default:
	}

	m.mu.Lock()
	hook := m.CreateHook
	m.mu.Unlock()
	if hook != nil {
		if err := hook(params); err != nil {
			return Order{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.orderCounter++
	status := StatusNew
	if params.Type == TypeMarket {
		// Market orders fill immediately in the mock.
		status = StatusFilled
	}

	order := Order{
		OrderID:   m.orderCounter,
		Symbol:    params.Symbol,
		Side:      params.Side,
		Type:      params.Type,
		Status:    status,
		Price:     params.Price,
		StopPrice: params.StopPrice,
		OrigQty:   params.Quantity,
		UpdatedAt: time.Now().UTC(),
	}
	if status == StatusFilled {
		order.ExecutedQty = params.Quantity
		if p, ok := m.prices[params.Symbol]; ok {
			order.AvgPrice = p.String()
		}
	}
	m.orders[order.OrderID] = order

	utils.GetLogger().Printf("MockExchange | Order accepted: id=%d %s %s %s qty=%s price=%s",
		order.OrderID, params.Symbol, params.Side, params.Type, params.Quantity, params.Price)

	return order, nil
}

func (m *MockExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) (Order, error) {
	select {
	case <-ctx.Done():
		return Order{}, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok || o.Symbol != symbol {
		return Order{}, &APIError{Code: -2011, Message: "Unknown order sent."}
	}
	if o.Status == StatusFilled || o.Status == StatusCanceled {
		// Binance rejects cancels of already-resolved orders.
		return Order{}, &APIError{Code: -2011, Message: "Unknown order sent."}
	}

	o.Status = StatusCanceled
	o.UpdatedAt = time.Now().UTC()
	m.orders[orderID] = o
	return o, nil
}

func (m *MockExchange) GetOrder(ctx context.Context, symbol string, orderID int64) (Order, error) {
	select {
	case <-ctx.Done():
		return Order{}, ctx.Err()
	default:
	}

	m.mu.Lock()
	hook := m.GetOrderHook
	m.mu.Unlock()
	if hook != nil {
		if err := hook(symbol, orderID); err != nil {
			return Order{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok || o.Symbol != symbol {
		return Order{}, &APIError{Code: -2013, Message: "Order does not exist."}
	}
	return o, nil
}

func (m *MockExchange) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var open []Order
	for id := int64(1001); id <= m.orderCounter; id++ {
		o, ok := m.orders[id]
		if !ok {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		if o.Status == StatusNew || o.Status == StatusPartiallyFilled {
			open = append(open, o)
		}
	}
	return open, nil
}

func (m *MockExchange) SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error) {
	select {
	case <-ctx.Done():
		return SymbolFilters{}, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.filters[symbol]
	if !ok {
		return SymbolFilters{}, fmt.Errorf("symbol %s not found", symbol)
	}
	return f, nil
}

func (m *MockExchange) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	select {
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price set for symbol %s", symbol)
	}
	return p, nil
}
