// Package strategy
package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/futures-trader/internal/journal"
	"github.com/amirphl/futures-trader/internal/metrics"
	"github.com/amirphl/futures-trader/internal/notifier"
	"github.com/amirphl/futures-trader/internal/order"
	"github.com/amirphl/futures-trader/internal/utils"
)

// Config holds engine tuning. The poll intervals trade exchange rate-limit
// pressure against fill-detection latency.
type Config struct {
	OCOPollInterval  time.Duration
	GridPollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.OCOPollInterval <= 0 {
		c.OCOPollInterval = 2 * time.Second
	}
	if c.GridPollInterval <= 0 {
		c.GridPollInterval = 5 * time.Second
	}
	return c
}

// Engine orchestrates the composite strategies. Placement calls return as
// soon as the strategy is registered and its initial orders are submitted;
// all further work runs in a background task owned by the engine.
type Engine struct {
	orders   *order.Service
	registry Registry
	journal  journal.Journaler
	notifier notifier.Notifier
	metrics  *metrics.Metrics
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine builds the engine. journaler may be nil, n may be nil, m may be
// nil; only the order service and registry are required.
func NewEngine(orders *order.Service, registry Registry, journaler journal.Journaler, n notifier.Notifier, m *metrics.Metrics, cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	if n == nil {
		n = notifier.Noop{}
	}
	return &Engine{
		orders:   orders,
		registry: registry,
		journal:  journaler,
		notifier: n,
		metrics:  m,
		cfg:      cfg.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Close cancels every running strategy task and waits for them to exit.
// Registered strategies that were still active are marked stopped by their
// own task on the way out.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// StatusResult is the outcome of a status query.
type StatusResult struct {
	Success  bool
	Strategy State
	Error    string
}

// ListResult is the outcome of a list query.
type ListResult struct {
	Success    bool
	Strategies map[string]Summary
}

// Status returns a snapshot of one strategy.
func (e *Engine) Status(id string) StatusResult {
	st, ok := e.registry.Get(id)
	if !ok {
		return StatusResult{Error: fmt.Sprintf("strategy id %s not found", id)}
	}
	return StatusResult{Success: true, Strategy: st}
}

// List returns the summary projection of every strategy.
func (e *Engine) List() ListResult {
	return ListResult{Success: true, Strategies: e.registry.Summaries()}
}

// register assigns a kind-prefixed time-based id and inserts the state. Ids
// stay second-resolution like OCO_1700000000 but collide-proof: a numeric
// suffix is appended when two strategies are created within one second.
func (e *Engine) register(st *State) {
	unix := time.Now().Unix()
	st.ID = fmt.Sprintf("%s_%d", st.Kind, unix)
	for n := 1; !e.registry.Put(st); n++ {
		st.ID = fmt.Sprintf("%s_%d_%d", st.Kind, unix, n)
	}
}

// spawn runs task in the background with the engine's lifetime context. Any
// panic is recovered at the task boundary, logged, and flips the strategy to
// error status; a strategy task never takes the process down.
func (e *Engine) spawn(id string, task func(ctx context.Context)) {
	e.wg.Add(1)
	e.metrics.AddActiveStrategies(1)
	go func() {
		defer e.wg.Done()
		defer e.metrics.AddActiveStrategies(-1)
		defer func() {
			if r := recover(); r != nil {
				utils.GetLogger().Printf("Strategy | %s task panicked: %v", id, r)
				e.fail(id, fmt.Sprintf("task panicked: %v", r))
			}
		}()
		task(e.ctx)
	}()
}

// fail marks a strategy as errored and journals the reason.
func (e *Engine) fail(id, reason string) {
	e.registry.Update(id, func(st *State) { st.Status = StatusError })
	e.logEvent("error", reason, map[string]any{"strategy_id": id})
}

func (e *Engine) logEvent(eventType, description string, data map[string]any) {
	if e.journal == nil {
		return
	}
	err := e.journal.LogEvent(context.Background(), journal.Event{
		Time:        time.Now().UTC(),
		Type:        eventType,
		Description: description,
		Data:        data,
	})
	if err != nil {
		utils.GetLogger().Printf("Strategy | Failed to journal event %s: %v", description, err)
	}
}

func (e *Engine) notify(msg string) {
	if err := e.notifier.SendWithRetry(msg); err != nil {
		utils.GetLogger().Printf("Strategy | Notification failed: %v", err)
	}
}
