package precision

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/futures-trader/internal/exchange"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func btcFilters() exchange.SymbolFilters {
	return exchange.SymbolFilters{
		Symbol:   "BTCUSDT",
		TickSize: dec("0.10"),
		StepSize: dec("0.001"),
		MinQty:   dec("0.001"),
		MaxQty:   dec("1000"),
	}
}

func TestFloorToStep(t *testing.T) {
	t.Run("floors down to step multiple", func(t *testing.T) {
		got := FloorToStep(dec("95043.37"), dec("0.10"))
		assert.True(t, got.Equal(dec("95043.30")), "got %s", got)
	})

	t.Run("exact multiple is unchanged", func(t *testing.T) {
		got := FloorToStep(dec("95043.30"), dec("0.10"))
		assert.True(t, got.Equal(dec("95043.30")), "got %s", got)
	})

	t.Run("zero step passes value through", func(t *testing.T) {
		got := FloorToStep(dec("123.456"), decimal.Zero)
		assert.True(t, got.Equal(dec("123.456")), "got %s", got)
	})

	t.Run("result is always a step multiple", func(t *testing.T) {
		step := dec("0.001")
		for _, raw := range []string{"0.0123456", "1.9999", "0.001", "742.10001"} {
			got := FloorToStep(dec(raw), step)
			assert.True(t, got.Mod(step).IsZero(), "%s -> %s is not a multiple of %s", raw, got, step)
			assert.True(t, got.LessThanOrEqual(dec(raw)), "%s rounded up to %s", raw, got)
		}
	})
}

func TestNearestStep(t *testing.T) {
	t.Run("rounds down below midpoint", func(t *testing.T) {
		got := NearestStep(dec("0.0123"), dec("0.001"))
		assert.True(t, got.Equal(dec("0.012")), "got %s", got)
	})

	t.Run("rounds up above midpoint", func(t *testing.T) {
		got := NearestStep(dec("0.0129"), dec("0.001"))
		assert.True(t, got.Equal(dec("0.013")), "got %s", got)
	})

	t.Run("even split stays exact", func(t *testing.T) {
		got := NearestStep(dec("0.1").Div(dec("10")), dec("0.001"))
		assert.True(t, got.Equal(dec("0.01")), "got %s", got)
	})
}

func TestNormalizeQuantity(t *testing.T) {
	filters := btcFilters()

	t.Run("floors to step size", func(t *testing.T) {
		got, err := NormalizeQuantity(filters, dec("0.0123456"))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("0.012")), "got %s", got)
	})

	t.Run("rejects zero and negative", func(t *testing.T) {
		_, err := NormalizeQuantity(filters, decimal.Zero)
		require.Error(t, err)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)

		_, err = NormalizeQuantity(filters, dec("-1"))
		assert.Error(t, err)
	})

	t.Run("rejects below minimum", func(t *testing.T) {
		_, err := NormalizeQuantity(filters, dec("0.0005"))
		assert.Error(t, err)
	})

	t.Run("rejects above maximum", func(t *testing.T) {
		_, err := NormalizeQuantity(filters, dec("1001"))
		assert.Error(t, err)
	})

	t.Run("zero maximum means unbounded", func(t *testing.T) {
		f := filters
		f.MaxQty = decimal.Zero
		got, err := NormalizeQuantity(f, dec("5000"))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("5000")), "got %s", got)
	})
}

func TestNormalizePrice(t *testing.T) {
	filters := btcFilters()

	t.Run("floors to tick size", func(t *testing.T) {
		got, err := NormalizePrice(filters, dec("95043.37"))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("95043.30")), "got %s", got)
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		_, err := NormalizePrice(filters, decimal.Zero)
		assert.Error(t, err)
		_, err = NormalizePrice(filters, dec("-95000"))
		assert.Error(t, err)
	})
}
