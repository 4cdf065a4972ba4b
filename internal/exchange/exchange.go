// Package exchange
package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order sides and types as the exchange understands them.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	TypeMarket     = "MARKET"
	TypeLimit      = "LIMIT"
	TypeStop       = "STOP" // stop-limit on USD-M futures
	TimeInForceGTC = "GTC"
)

// Order status values consumed by the strategy monitors. PARTIALLY_FILLED is
// deliberately treated as not-yet-FILLED everywhere.
const (
	StatusNew             = "NEW"
	StatusPartiallyFilled = "PARTIALLY_FILLED"
	StatusFilled          = "FILLED"
	StatusCanceled        = "CANCELED"
)

// SymbolFilters holds the per-symbol trading constraints derived from
// exchange metadata. Immutable once fetched.
type SymbolFilters struct {
	Symbol   string
	TickSize decimal.Decimal
	StepSize decimal.Decimal
	MinQty   decimal.Decimal
	MaxQty   decimal.Decimal
}

// OrderParams represents a new order to be submitted. Quantity and prices are
// already normalized decimal strings; optional fields stay empty.
type OrderParams struct {
	Symbol      string
	Side        string // BUY or SELL
	Type        string // MARKET, LIMIT or STOP
	Quantity    string
	Price       string
	StopPrice   string
	TimeInForce string
}

// Order is the exchange's view of an order.
type Order struct {
	OrderID     int64
	Symbol      string
	Side        string
	Type        string
	Status      string
	Price       string
	StopPrice   string
	OrigQty     string
	ExecutedQty string
	AvgPrice    string
	UpdatedAt   time.Time
}

// APIError is a structured trading error reported by the exchange
// (insufficient balance, filter violation, ...). Transport failures stay
// plain errors.
type APIError struct {
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange error code=%d msg=%s", e.Code, e.Message)
}

// Exchange is the interface for the exchange gateway.
type Exchange interface {
	Name() string
	CreateOrder(ctx context.Context, params OrderParams) (Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (Order, error)
	GetOrder(ctx context.Context, symbol string, orderID int64) (Order, error)
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)
	SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error)
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
