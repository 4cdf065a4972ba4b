package db

import (
	"context"
	"sync"
	"time"

	"github.com/amirphl/futures-trader/internal/journal"
	"github.com/amirphl/futures-trader/internal/order"
)

// MemoryStorage keeps orders and events in process memory. It backs tests
// and dry runs where no database is configured.
type MemoryStorage struct {
	mu sync.RWMutex

	// Orders (append-only, insertion ordered)
	orders []Order

	// Events (append-only)
	events []journal.Event
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		orders: make([]Order, 0, 256),
		events: make([]journal.Event, 0, 1024),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) RecordOrder(ctx context.Context, res order.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, Order{
		OrderID:   res.OrderID,
		Symbol:    res.Symbol,
		Side:      res.Side,
		Type:      res.Type,
		Price:     res.Price.String(),
		Quantity:  res.Quantity.String(),
		StopPrice: res.StopPrice.String(),
		Status:    res.Status,
		FilledQty: res.ExecutedQty.String(),
		Error:     res.Error,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (m *MemoryStorage) GetOrders(ctx context.Context, symbol string, start, end time.Time) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Order
	for _, o := range m.orders {
		if o.Symbol != symbol {
			continue
		}
		if o.Timestamp.Before(start) || o.Timestamp.After(end) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *MemoryStorage) LogEvent(ctx context.Context, event journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.Time = event.Time.UTC()
	m.events = append(m.events, event)
	return nil
}

// DeleteEvents prunes events of a type older than the cutoff.
func (m *MemoryStorage) DeleteEvents(ctx context.Context, eventType string, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if e.Type == eventType && e.Time.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return nil
}

func (m *MemoryStorage) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []journal.Event
	for _, e := range m.events {
		if e.Type != eventType {
			continue
		}
		if e.Time.Before(start) || e.Time.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
