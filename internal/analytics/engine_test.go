package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
)

func series(values ...float64) []models.DailyPrice {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.DailyPrice, len(values))
	for i, v := range values {
		out[i] = models.DailyPrice{
			AssetID:       1,
			Date:          start.AddDate(0, 0, i),
			AdjClosePrice: decimal.NewFromFloat(v),
			Volume:        1000,
		}
	}
	return out
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

var golden = []float64{100, 101, 99, 102, 105, 103, 106, 108, 107, 110, 109, 111, 112, 110, 113, 115, 114, 116, 118, 120}

func TestEngineCompute(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	t.Run("golden series", func(t *testing.T) {
		res, err := engine.Compute(7, series(golden...))
		require.NoError(t, err)

		assert.Equal(t, 7, res.Signal.AssetID)
		assert.Equal(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), res.Signal.PriceDate)
		assert.True(t, decimal.RequireFromString("108.95").Equal(res.SMA), "sma was %s", res.SMA)
		assert.Equal(t, models.SignalBuy, res.Signal.SignalType)
		assert.Equal(t, "8.71", res.Signal.SharpeRatio.StringFixed(2))
		assert.Equal(t, 20, res.Observations)
		assert.Zero(t, res.Dropped)
		assert.InDelta(t, 0.2834, res.Volatility, 0.0001)
	})

	t.Run("golden series indicators", func(t *testing.T) {
		res, err := engine.Compute(7, series(golden...))
		require.NoError(t, err)

		inds := res.Indicators()
		require.Len(t, inds, 2)
		assert.Equal(t, "SMA_20", inds[0].IndicatorType)
		assert.Equal(t, "108.95", inds[0].Value.String())
		assert.Equal(t, models.IndicatorVolatility, inds[1].IndicatorType)
		assert.Equal(t, "0.2834", inds[1].Value.String())
		for _, ind := range inds {
			assert.Equal(t, 7, ind.AssetID)
			assert.Equal(t, res.Signal.PriceDate, ind.Date)
		}
	})

	t.Run("golden series is deterministic", func(t *testing.T) {
		first, err := engine.Compute(1, series(golden...))
		require.NoError(t, err)
		second, err := engine.Compute(1, series(golden...))
		require.NoError(t, err)
		assert.Equal(t, first.Signal, second.Signal)
	})

	t.Run("fewer than 20 observations is skipped", func(t *testing.T) {
		for _, n := range []int{1, 5, 19} {
			res, err := engine.Compute(1, series(ramp(n, 100, 1)...))
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrInsufficientHistory), "n=%d", n)
		}
	})

	t.Run("empty series is skipped", func(t *testing.T) {
		_, err := engine.Compute(1, nil)
		assert.ErrorIs(t, err, ErrInsufficientHistory)
	})

	t.Run("constant series holds with zero sharpe", func(t *testing.T) {
		for _, price := range []float64{50, 123.4567} {
			values := make([]float64, 30)
			for i := range values {
				values[i] = price
			}
			res, err := engine.Compute(1, series(values...))
			require.NoError(t, err)
			assert.Equal(t, models.SignalHold, res.Signal.SignalType)
			assert.True(t, res.Signal.SharpeRatio.IsZero())
			assert.True(t, res.LatestPrice.Equal(res.SMA))
		}
	})

	t.Run("increasing series is BUY", func(t *testing.T) {
		res, err := engine.Compute(1, series(ramp(25, 100, 1.5)...))
		require.NoError(t, err)
		assert.Equal(t, models.SignalBuy, res.Signal.SignalType)
		assert.True(t, res.Signal.SharpeRatio.IsPositive())
	})

	t.Run("decreasing series is HOLD", func(t *testing.T) {
		res, err := engine.Compute(1, series(ramp(25, 200, -2)...))
		require.NoError(t, err)
		assert.Equal(t, models.SignalHold, res.Signal.SignalType)
		assert.True(t, res.Signal.SharpeRatio.IsNegative())
	})

	t.Run("non-positive prices are excluded", func(t *testing.T) {
		rows := series(golden...)
		bad := series(0, -3)
		bad[0].Date = rows[4].Date.Add(time.Hour)
		bad[1].Date = rows[19].Date.AddDate(0, 0, 1)
		rows = append(rows[:5], append([]models.DailyPrice{bad[0]}, rows[5:]...)...)
		rows = append(rows, bad[1])

		res, err := engine.Compute(1, rows)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Dropped)
		assert.Equal(t, 20, res.Observations)
		assert.Equal(t, "8.71", res.Signal.SharpeRatio.StringFixed(2))
		assert.Equal(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), res.Signal.PriceDate)
	})

	t.Run("malformed rows count against the minimum", func(t *testing.T) {
		rows := series(ramp(20, 10, 1)...)
		rows[3].AdjClosePrice = decimal.Zero
		_, err := engine.Compute(1, rows)
		assert.ErrorIs(t, err, ErrInsufficientHistory)
	})
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(Config{Window: 10, MinObservations: 5})
	assert.Equal(t, 10, e.Config().Window)
	assert.Equal(t, 10, e.Config().MinObservations)
	assert.Equal(t, 252.0, e.Config().TradingDaysPerYear)

	e = NewEngine(Config{})
	assert.Equal(t, DefaultConfig(), e.Config())
}
