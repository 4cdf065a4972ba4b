// Package db
package db

import (
	"context"
	"time"

	"github.com/amirphl/futures-trader/internal/journal"
	"github.com/amirphl/futures-trader/internal/order"
)

// Order is the persisted form of an order attempt, successful or not.
type Order struct {
	OrderID   int64
	Symbol    string
	Side      string
	Type      string
	Price     string
	Quantity  string
	StopPrice string
	Status    string
	FilledQty string
	Error     string
	Timestamp time.Time
}

// Storage is the interface for all persistent storage.
type Storage interface {
	order.Recorder
	journal.Journaler
	GetOrders(ctx context.Context, symbol string, start, end time.Time) ([]Order, error)
	DeleteEvents(ctx context.Context, eventType string, before time.Time) error
	Close() error
}
