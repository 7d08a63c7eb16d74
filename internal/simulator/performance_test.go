package simulator

import (
	"math"
	"testing"
	"time"

	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformanceSummary(t *testing.T) {
	sim := newTestSimulator(t, crisisWeek(t))

	_, err := sim.Buy("000001", dec("10000"))
	require.NoError(t, err)
	require.NoError(t, advance(sim, 1)) // NAV 1.1, total 101000
	require.NoError(t, advance(sim, 1)) // NAV 0.9, total 99000
	_, err = sim.Sell("000001", SellRequest{Percentage: decPtr("1")})
	require.NoError(t, err)

	summary, err := sim.PerformanceSummary()
	require.NoError(t, err)

	assertDecimal(t, "99000", summary.FinalAssets)
	assert.InDelta(t, -0.01, summary.TotalReturn, 1e-12)
	// domestic index 2000 -> 1900 over the whole timeline
	assert.InDelta(t, -0.05, summary.BenchmarkReturn, 1e-12)
	assert.InDelta(t, 0.04, summary.Outperformance, 1e-12)
	assert.InDelta(t, 2000.0/101000.0, summary.MaxDrawdown, 1e-12)
	assert.Equal(t, 1, summary.BuyCount)
	assert.Equal(t, 1, summary.SellCount)
	assert.Equal(t, 2, summary.TradeCount)
	assert.Equal(t, 3, summary.SimulatedDays)
	assert.Equal(t, types.NewDate(2008, time.September, 11), summary.StartDate)
	assert.Equal(t, types.NewDate(2008, time.September, 15), summary.EndDate)
	assert.Greater(t, summary.Volatility, 0.0)
}

func TestVolatility(t *testing.T) {
	snap := func(day int, total string) models.NetWorthSnapshot {
		return models.NetWorthSnapshot{
			Date:        types.NewDate(2008, time.September, day),
			TotalAssets: decimal.RequireFromString(total),
		}
	}

	t.Run("flat history", func(t *testing.T) {
		history := []models.NetWorthSnapshot{snap(1, "100"), snap(2, "100"), snap(3, "100")}
		assert.Zero(t, Volatility(history))
	})

	t.Run("too short", func(t *testing.T) {
		assert.Zero(t, Volatility([]models.NetWorthSnapshot{snap(1, "100"), snap(2, "110")}))
	})

	t.Run("uses the last valuation of each date", func(t *testing.T) {
		history := []models.NetWorthSnapshot{
			snap(1, "100"), snap(1, "100"),
			snap(2, "999"), snap(2, "110"),
			snap(3, "99"),
		}
		// daily returns +10% and -10%
		mean := 0.0
		returns := []float64{0.1, -0.1}
		variance := 0.0
		for _, r := range returns {
			variance += (r - mean) * (r - mean)
		}
		want := math.Sqrt(variance/1) * math.Sqrt(TradingDaysPerYear)
		assert.InDelta(t, want, Volatility(history), 1e-9)
	})
}
