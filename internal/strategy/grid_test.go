package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/futures-trader/internal/exchange"
)

func TestStartGrid_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		params  GridParams
		wantErr string
	}{
		{
			name:    "lower above upper",
			params:  GridParams{Symbol: "BTCUSDT", LowerPrice: dec("95000"), UpperPrice: dec("90000"), NumGrids: 10, QuantityPerGrid: dec("0.01")},
			wantErr: "lower price must be less than upper price",
		},
		{
			name:    "single level",
			params:  GridParams{Symbol: "BTCUSDT", LowerPrice: dec("90000"), UpperPrice: dec("95000"), NumGrids: 1, QuantityPerGrid: dec("0.01")},
			wantErr: "number of grids must be at least 2",
		},
		{
			name:    "zero quantity",
			params:  GridParams{Symbol: "BTCUSDT", LowerPrice: dec("90000"), UpperPrice: dec("95000"), NumGrids: 10, QuantityPerGrid: decimal.Zero},
			wantErr: "quantity per grid must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, mock := newTestEngine(t)
			res := e.StartGrid(ctx, tt.params)
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.wantErr)
			assert.Empty(t, mock.Orders())
		})
	}
}

func TestStartGrid_SplitsLadderAroundCurrentPrice(t *testing.T) {
	ctx := context.Background()
	e, mock := newTestEngine(t)
	// Current price was set to 92250 by the test fixture.

	res := e.StartGrid(ctx, GridParams{
		Symbol:          "BTCUSDT",
		LowerPrice:      dec("90000"),
		UpperPrice:      dec("94500"),
		NumGrids:        10,
		QuantityPerGrid: dec("0.01"),
	})
	require.True(t, res.Success, res.Error)
	assert.True(t, res.Spacing.Equal(dec("500")), "got %s", res.Spacing)
	require.Len(t, res.Levels, 10)
	assert.True(t, res.Levels[0].Equal(dec("90000")))
	assert.True(t, res.Levels[9].Equal(dec("94500")))

	require.Len(t, res.Orders, 10)
	var buys, sells int
	for _, o := range res.Orders {
		switch o.Side {
		case exchange.SideBuy:
			buys++
			assert.True(t, o.Price.LessThan(dec("92250")), "BUY at %s is not below current price", o.Price)
		case exchange.SideSell:
			sells++
			assert.True(t, o.Price.GreaterThanOrEqual(dec("92250")), "SELL at %s is below current price", o.Price)
		}
	}
	assert.Equal(t, 5, buys)
	assert.Equal(t, 5, sells)

	for _, o := range mock.Orders() {
		assert.Equal(t, exchange.TypeLimit, o.Type)
		assert.Equal(t, exchange.StatusNew, o.Status)
	}

	st := e.Status(res.GridID)
	require.True(t, st.Success)
	assert.Equal(t, 10, st.Strategy.Grid.ActiveOrders)
	assert.Equal(t, 0, st.Strategy.Grid.TotalFills)
}

func TestStartGrid_LevelsFlooredToTick(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	res := e.StartGrid(ctx, GridParams{
		Symbol:          "BTCUSDT",
		LowerPrice:      dec("90000"),
		UpperPrice:      dec("95000"),
		NumGrids:        10,
		QuantityPerGrid: dec("0.01"),
	})
	require.True(t, res.Success, res.Error)

	// Spacing 5000/9 is not tick-aligned, each level floors to 0.10.
	require.Len(t, res.Levels, 10)
	assert.True(t, res.Levels[0].Equal(dec("90000")), "got %s", res.Levels[0])
	assert.True(t, res.Levels[1].Equal(dec("90555.5")), "got %s", res.Levels[1])
	assert.True(t, res.Levels[9].Equal(dec("95000")), "got %s", res.Levels[9])
	for _, level := range res.Levels {
		assert.True(t, level.Mod(dec("0.10")).IsZero(), "level %s is not tick aligned", level)
	}
}

func TestStartGrid_FailedLevelIsSkipped(t *testing.T) {
	ctx := context.Background()
	e, mock := newTestEngine(t)

	mock.CreateHook = func(params exchange.OrderParams) error {
		if params.Price == "92000" {
			return &exchange.APIError{Code: -2019, Message: "Margin is insufficient."}
		}
		return nil
	}

	res := e.StartGrid(ctx, GridParams{
		Symbol:          "BTCUSDT",
		LowerPrice:      dec("90000"),
		UpperPrice:      dec("94500"),
		NumGrids:        10,
		QuantityPerGrid: dec("0.01"),
	})
	require.True(t, res.Success, res.Error)
	assert.Len(t, res.Orders, 9, "the failed level is dropped, the rest of the ladder stands")
	for _, o := range res.Orders {
		assert.False(t, o.Price.Equal(dec("92000")))
	}
}

func TestGrid_FillSpawnsOppositeReplacement(t *testing.T) {
	ctx := context.Background()
	e, mock := newTestEngine(t)

	res := e.StartGrid(ctx, GridParams{
		Symbol:          "BTCUSDT",
		LowerPrice:      dec("90000"),
		UpperPrice:      dec("94500"),
		NumGrids:        10,
		QuantityPerGrid: dec("0.01"),
	})
	require.True(t, res.Success, res.Error)

	var filled GridOrder
	for _, o := range res.Orders {
		if o.Side == exchange.SideBuy {
			filled = o
			break
		}
	}
	require.NotZero(t, filled.OrderID)

	mock.MarkFilled(filled.OrderID)

	var st State
	require.Eventually(t, func() bool {
		s := e.Status(res.GridID)
		if !s.Success {
			return false
		}
		st = s.Strategy
		return st.Grid.TotalFills == 1 && len(st.Grid.Orders) == 11
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, StatusActive, st.Status)
	assert.Equal(t, 10, st.Grid.ActiveOrders)

	replacement := st.Grid.Orders[10]
	assert.Equal(t, exchange.SideSell, replacement.Side)
	assert.True(t, replacement.Price.Equal(filled.Price), "replacement at %s, fill was at %s", replacement.Price, filled.Price)
	assert.False(t, replacement.Checked)

	for _, o := range st.Grid.Orders[:10] {
		if o.OrderID == filled.OrderID {
			assert.True(t, o.Checked, "a processed fill must be marked checked")
		}
	}

	// A few more poll cycles must not double-process the same fill.
	time.Sleep(5 * e.cfg.GridPollInterval)
	s := e.Status(res.GridID)
	require.True(t, s.Success)
	assert.Equal(t, 1, s.Strategy.Grid.TotalFills)
	assert.Len(t, s.Strategy.Grid.Orders, 11)
}

func TestStopGrid(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels the whole ladder", func(t *testing.T) {
		e, mock := newTestEngine(t)

		res := e.StartGrid(ctx, GridParams{
			Symbol:          "BTCUSDT",
			LowerPrice:      dec("90000"),
			UpperPrice:      dec("94500"),
			NumGrids:        10,
			QuantityPerGrid: dec("0.01"),
		})
		require.True(t, res.Success, res.Error)

		stop := e.StopGrid(ctx, res.GridID)
		require.True(t, stop.Success, stop.Error)
		assert.Equal(t, 10, stop.OrdersCancelled)

		for _, o := range mock.Orders() {
			assert.Equal(t, exchange.StatusCanceled, o.Status)
		}

		st := e.Status(res.GridID)
		require.True(t, st.Success)
		assert.Equal(t, StatusStopped, st.Strategy.Status)
	})

	t.Run("second stop is a no-op", func(t *testing.T) {
		e, _ := newTestEngine(t)

		res := e.StartGrid(ctx, GridParams{
			Symbol:          "BTCUSDT",
			LowerPrice:      dec("90000"),
			UpperPrice:      dec("94500"),
			NumGrids:        10,
			QuantityPerGrid: dec("0.01"),
		})
		require.True(t, res.Success, res.Error)

		first := e.StopGrid(ctx, res.GridID)
		require.True(t, first.Success)
		assert.Equal(t, 10, first.OrdersCancelled)

		second := e.StopGrid(ctx, res.GridID)
		require.True(t, second.Success)
		assert.Equal(t, 0, second.OrdersCancelled)
	})

	t.Run("unknown id", func(t *testing.T) {
		e, _ := newTestEngine(t)
		res := e.StopGrid(ctx, "GRID_0")
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "not found")
	})

	t.Run("wrong kind", func(t *testing.T) {
		e, _ := newTestEngine(t)
		twap := e.PlaceTWAP(ctx, TWAPParams{
			Symbol:        "BTCUSDT",
			Side:          exchange.SideBuy,
			TotalQuantity: dec("0.1"),
			Duration:      time.Hour,
			NumOrders:     10,
		})
		require.True(t, twap.Success, twap.Error)

		res := e.StopGrid(ctx, twap.TWAPID)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "not a grid")
	})
}
