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

func TestPlaceTWAP_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		params  TWAPParams
		wantErr string
	}{
		{
			name:    "invalid side",
			params:  TWAPParams{Symbol: "BTCUSDT", Side: "HOLD", TotalQuantity: dec("0.1"), Duration: time.Minute, NumOrders: 5},
			wantErr: "side must be BUY or SELL",
		},
		{
			name:    "zero quantity",
			params:  TWAPParams{Symbol: "BTCUSDT", Side: exchange.SideBuy, TotalQuantity: decimal.Zero, Duration: time.Minute, NumOrders: 5},
			wantErr: "total quantity must be positive",
		},
		{
			name:    "zero duration",
			params:  TWAPParams{Symbol: "BTCUSDT", Side: exchange.SideBuy, TotalQuantity: dec("0.1"), NumOrders: 5},
			wantErr: "duration must be positive",
		},
		{
			name:    "zero orders",
			params:  TWAPParams{Symbol: "BTCUSDT", Side: exchange.SideBuy, TotalQuantity: dec("0.1"), Duration: time.Minute},
			wantErr: "number of orders must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			res := e.PlaceTWAP(ctx, tt.params)
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.wantErr)
		})
	}
}

func TestPlaceTWAP_SliceMath(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	res := e.PlaceTWAP(ctx, TWAPParams{
		Symbol:        "BTCUSDT",
		Side:          exchange.SideBuy,
		TotalQuantity: dec("0.1"),
		Duration:      30 * time.Minute,
		NumOrders:     10,
	})
	require.True(t, res.Success, res.Error)
	assert.True(t, res.SliceQuantity.Equal(dec("0.01")), "got %s", res.SliceQuantity)
	assert.Equal(t, 10, res.NumSlices)
	assert.Equal(t, 3*time.Minute, res.Interval)
}

func TestTWAP_RunsToCompletion(t *testing.T) {
	ctx := context.Background()
	e, mock := newTestEngine(t)

	res := e.PlaceTWAP(ctx, TWAPParams{
		Symbol:        "BTCUSDT",
		Side:          exchange.SideBuy,
		TotalQuantity: dec("0.05"),
		Duration:      50 * time.Millisecond,
		NumOrders:     5,
	})
	require.True(t, res.Success, res.Error)

	st := waitForStatus(t, e, res.TWAPID, StatusCompleted)
	assert.Equal(t, 5, st.TWAP.SlicesPlaced)
	require.Len(t, st.TWAP.Slices, 5)

	total := decimal.Zero
	for _, slice := range st.TWAP.Slices {
		assert.Empty(t, slice.Error)
		total = total.Add(slice.Quantity)
	}
	assert.True(t, total.Equal(dec("0.05")), "executed %s", total)

	orders := mock.Orders()
	require.Len(t, orders, 5)
	for _, o := range orders {
		assert.Equal(t, exchange.TypeMarket, o.Type)
		assert.Equal(t, exchange.StatusFilled, o.Status)
	}
}

func TestTWAP_FailedSliceDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	e, mock := newTestEngine(t)

	var calls int
	mock.CreateHook = func(params exchange.OrderParams) error {
		calls++
		if calls == 2 {
			return &exchange.APIError{Code: -2019, Message: "Margin is insufficient."}
		}
		return nil
	}

	res := e.PlaceTWAP(ctx, TWAPParams{
		Symbol:        "BTCUSDT",
		Side:          exchange.SideBuy,
		TotalQuantity: dec("0.05"),
		Duration:      50 * time.Millisecond,
		NumOrders:     5,
	})
	require.True(t, res.Success, res.Error)

	st := waitForStatus(t, e, res.TWAPID, StatusCompleted)
	assert.Equal(t, 4, st.TWAP.SlicesPlaced)
	require.Len(t, st.TWAP.Slices, 5)
	assert.Equal(t, "Margin is insufficient.", st.TWAP.Slices[1].Error)
	assert.LessOrEqual(t, st.TWAP.SlicesPlaced, st.TWAP.NumSlices)
}

func TestCancelTWAP(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel takes effect before the next slice", func(t *testing.T) {
		e, mock := newTestEngine(t)

		res := e.PlaceTWAP(ctx, TWAPParams{
			Symbol:        "BTCUSDT",
			Side:          exchange.SideBuy,
			TotalQuantity: dec("0.1"),
			Duration:      time.Hour,
			NumOrders:     10,
		})
		require.True(t, res.Success, res.Error)

		// The first slice goes out immediately, then the executor waits.
		require.Eventually(t, func() bool {
			st := e.Status(res.TWAPID)
			return st.Success && st.Strategy.TWAP.SlicesPlaced == 1
		}, 2*time.Second, 5*time.Millisecond)

		cancel := e.CancelTWAP(res.TWAPID)
		require.True(t, cancel.Success, cancel.Error)

		st := e.Status(res.TWAPID)
		require.True(t, st.Success)
		assert.Equal(t, StatusCancelled, st.Strategy.Status)
		assert.Equal(t, 1, st.Strategy.TWAP.SlicesPlaced)
		assert.Len(t, mock.Orders(), 1, "no further slice may be placed after cancellation")
	})

	t.Run("unknown id", func(t *testing.T) {
		e, _ := newTestEngine(t)
		res := e.CancelTWAP("TWAP_0")
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "not found")
	})

	t.Run("wrong kind", func(t *testing.T) {
		e, _ := newTestEngine(t)
		oco := e.PlaceOCO(ctx, OCOParams{
			Symbol:         "BTCUSDT",
			Side:           exchange.SideSell,
			Quantity:       dec("0.01"),
			Price:          dec("95000"),
			StopPrice:      dec("90000"),
			StopLimitPrice: dec("89950"),
		})
		require.True(t, oco.Success, oco.Error)

		res := e.CancelTWAP(oco.OCOID)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "not a TWAP")
	})
}
