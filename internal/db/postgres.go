package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/amirphl/futures-trader/internal/journal"
	"github.com/amirphl/futures-trader/internal/order"
	"github.com/amirphl/futures-trader/internal/utils"
)

// Transaction context key
type txKey struct{}

// WithTransaction adds a transaction to the context
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTransaction retrieves a transaction from context, or returns nil if not present
func GetTransaction(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

type PostgresDB struct {
	db *sql.DB
}

// New opens a PostgreSQL connection pool and verifies it with a ping.
func New(connStr string, maxOpen, maxIdle int) (*PostgresDB, error) {
	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &PostgresDB{db: sqlDB}, nil
}

// NewWithDB wraps an existing database handle.
func NewWithDB(sqlDB *sql.DB) *PostgresDB {
	return &PostgresDB{db: sqlDB}
}

func (p *PostgresDB) GetDB() *sql.DB {
	return p.db
}

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// executeWithTransaction executes a function with proper transaction management.
// If a transaction exists in context, it uses that. Otherwise, it creates a new one.
func (p *PostgresDB) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if tx := GetTransaction(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}

	return nil
}

// queryWithTransaction executes a query using transaction from context if available
func (p *PostgresDB) queryWithTransaction(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if tx := GetTransaction(ctx); tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}
	return p.db.QueryContext(ctx, query, args...)
}

// RecordOrder persists an order result. Failed attempts are recorded with
// order_id 0 and the error text so rejections stay auditable.
func (p *PostgresDB) RecordOrder(ctx context.Context, res order.Result) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO orders (order_id, symbol, side, type, price, quantity, stop_price, status, filled_qty, error, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			res.OrderID, res.Symbol, res.Side, res.Type,
			res.Price.String(), res.Quantity.String(), res.StopPrice.String(),
			res.Status, res.ExecutedQty.String(), res.Error, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}
		return nil
	})
}

func (p *PostgresDB) GetOrders(ctx context.Context, symbol string, start, end time.Time) ([]Order, error) {
	rows, err := p.queryWithTransaction(ctx, `SELECT order_id, symbol, side, type, price, quantity, stop_price, status, filled_qty, error, created_at FROM orders WHERE symbol=$1 AND created_at >= $2 AND created_at <= $3 ORDER BY created_at ASC`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	if rows == nil {
		return nil, nil
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.OrderID, &o.Symbol, &o.Side, &o.Type, &o.Price, &o.Quantity, &o.StopPrice, &o.Status, &o.FilledQty, &o.Error, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Timestamp = o.Timestamp.UTC()
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (p *PostgresDB) LogEvent(ctx context.Context, event journal.Event) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data for %s: %w", event.Description, err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO events (time, type, description, data) VALUES ($1,$2,$3,$4)`,
			event.Time, event.Type, event.Description, data)
		if err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

func (p *PostgresDB) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	rows, err := p.queryWithTransaction(ctx, `SELECT time, type, description, data FROM events WHERE type=$1 AND time >= $2 AND time <= $3 ORDER BY time ASC`, eventType, start, end)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, nil
	}
	defer rows.Close()

	var events []journal.Event
	for rows.Next() {
		var e journal.Event
		var data []byte
		if err := rows.Scan(&e.Time, &e.Type, &e.Description, &data); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				// A corrupt row still yields the event, minus its data.
				utils.GetLogger().Printf("DB | Failed to decode event data for %s: %v", e.Description, err)
			}
		}
		e.Time = e.Time.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteEvents prunes events of a type older than the cutoff.
func (p *PostgresDB) DeleteEvents(ctx context.Context, eventType string, before time.Time) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM events WHERE type=$1 AND time < $2`, eventType, before)
		if err != nil {
			return fmt.Errorf("failed to delete events: %w", err)
		}
		return nil
	})
}
