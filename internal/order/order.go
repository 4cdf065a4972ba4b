// Package order
package order

import (
	"context"

	"github.com/shopspring/decimal"
)

// Result is the outcome of a single exchange order operation. It is a
// discriminated result: on Success the order fields are set, otherwise Error
// (and ErrorCode for structured exchange rejections) describe the failure.
// Nothing ever panics or errors past this boundary.
type Result struct {
	Success bool

	OrderID     int64
	Symbol      string
	Side        string
	Type        string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	StopPrice   decimal.Decimal
	Status      string
	ExecutedQty decimal.Decimal

	Error     string
	ErrorCode int64
}

// OpenOrdersResult is the outcome of an open-orders query.
type OpenOrdersResult struct {
	Success   bool
	Count     int
	Orders    []Result
	Error     string
	ErrorCode int64
}

// Recorder persists accepted orders for audit/history. Implemented by the db
// package; recording is best-effort and never blocks trading.
type Recorder interface {
	RecordOrder(ctx context.Context, res Result) error
}
