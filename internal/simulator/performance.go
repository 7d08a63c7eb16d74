package simulator

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/scenario-simulator/internal/errors"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
)

// TradingDaysPerYear annualizes daily volatility
const TradingDaysPerYear = 252

// PerformanceSummary aggregates the results of a simulation. Returns and drawdown are
// fractions (0.05 is 5%).
type PerformanceSummary struct {
	InitialCapital  decimal.Decimal `json:"initialCapital"`
	FinalAssets     decimal.Decimal `json:"finalAssets"`
	TotalReturn     float64         `json:"totalReturn"`
	BenchmarkReturn float64         `json:"benchmarkReturn"`
	Outperformance  float64         `json:"outperformance"`
	MaxDrawdown     float64         `json:"maxDrawdown"`
	Volatility      float64         `json:"volatility"`
	BuyCount        int             `json:"buyCount"`
	SellCount       int             `json:"sellCount"`
	TradeCount      int             `json:"tradeCount"`
	SimulatedDays   int             `json:"simulatedDays"`
	StartDate       types.Date      `json:"startDate"`
	EndDate         types.Date      `json:"endDate"`
}

// PerformanceSummary computes returns, drawdown, volatility and trade counts from the
// recorded valuations. The benchmark is the domestic index over the whole timeline.
func (s *Simulator) PerformanceSummary() (*PerformanceSummary, error) {
	if len(s.netWorth) == 0 {
		return nil, errors.NewNoDataError("no valuations recorded yet")
	}

	initial := s.cfg.InitialCapital
	final := s.netWorth[len(s.netWorth)-1].TotalAssets

	summary := &PerformanceSummary{
		InitialCapital:  initial,
		FinalAssets:     final,
		BenchmarkReturn: s.benchmarkReturn(),
		MaxDrawdown:     MaxDrawdown(s.netWorth),
		Volatility:      Volatility(s.netWorth),
		SimulatedDays:   countDistinctDates(s.netWorth),
		StartDate:       s.netWorth[0].Date,
		EndDate:         s.netWorth[len(s.netWorth)-1].Date,
	}
	if initial.IsPositive() {
		summary.TotalReturn = final.Sub(initial).Div(initial).InexactFloat64()
	}
	summary.Outperformance = summary.TotalReturn - summary.BenchmarkReturn

	for _, action := range s.actions {
		switch action.Kind {
		case types.ActionBuy:
			summary.BuyCount++
		case types.ActionSell:
			summary.SellCount++
		}
	}
	summary.TradeCount = summary.BuyCount + summary.SellCount

	return summary, nil
}

func (s *Simulator) benchmarkReturn() float64 {
	if s.tl.Len() < 2 {
		return 0
	}
	first, _ := s.tl.Day(0)
	last, _ := s.tl.Day(s.tl.Len() - 1)

	key := s.tl.DomesticIndex()
	start, ok1 := first.Indices[key]
	end, ok2 := last.Indices[key]
	if !ok1 || !ok2 || start.Close == 0 {
		return 0
	}
	return (end.Close - start.Close) / start.Close
}

// MaxDrawdown returns the largest fractional decline of total assets from a running peak
func MaxDrawdown(history []models.NetWorthSnapshot) float64 {
	peak := decimal.Zero
	maxDrawdown := decimal.Zero

	for _, snap := range history {
		if snap.TotalAssets.GreaterThan(peak) {
			peak = snap.TotalAssets
		}
		if !peak.IsPositive() {
			continue
		}
		drawdown := peak.Sub(snap.TotalAssets).Div(peak)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown.InexactFloat64()
}

// Volatility returns the annualized sample standard deviation of daily returns of
// total assets, using the last valuation of each date
func Volatility(history []models.NetWorthSnapshot) float64 {
	daily := closingValues(history)
	if len(daily) < 3 {
		return 0
	}

	returns := make(stats.Float64Data, 0, len(daily)-1)
	for i := 1; i < len(daily); i++ {
		if daily[i-1] == 0 {
			continue
		}
		returns = append(returns, daily[i]/daily[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	sd, err := stats.StandardDeviationSample(returns)
	if err != nil || math.IsNaN(sd) {
		return 0
	}
	return sd * math.Sqrt(TradingDaysPerYear)
}

// closingValues collapses the history to the last total of each date
func closingValues(history []models.NetWorthSnapshot) []float64 {
	values := make([]float64, 0, len(history))
	for i, snap := range history {
		v := snap.TotalAssets.InexactFloat64()
		if i > 0 && snap.Date.Equal(history[i-1].Date) {
			values[len(values)-1] = v
			continue
		}
		values = append(values, v)
	}
	return values
}

func countDistinctDates(history []models.NetWorthSnapshot) int {
	seen := make(map[types.Date]struct{}, len(history))
	for _, snap := range history {
		seen[snap.Date] = struct{}{}
	}
	return len(seen)
}
