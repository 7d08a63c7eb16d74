// Package report renders simulation results.
package report

import (
	"fmt"

	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/timeline"
	"github.com/scenario-simulator/internal/types"
	"github.com/vicanso/go-charts/v2"
)

// BenchmarkPoint is one close of the benchmark index
type BenchmarkPoint struct {
	Date  types.Date
	Close float64
}

// Series is a chart-ready net-worth curve with the benchmark rebased to the same capital
type Series struct {
	Labels    []string
	NetWorth  []float64
	Benchmark []float64
}

// BenchmarkFromTimeline extracts the closes of an index from the timeline
func BenchmarkFromTimeline(tl *timeline.Timeline, key string) []BenchmarkPoint {
	points := make([]BenchmarkPoint, 0, tl.Len())
	for _, day := range tl.Days() {
		if level, ok := day.Indices[key]; ok {
			points = append(points, BenchmarkPoint{Date: day.Date, Close: level.Close})
		}
	}
	return points
}

// BuildSeries takes the last valuation of each date and rebases the benchmark so its
// first value equals the initial capital. Dates without a benchmark close repeat the last one.
func BuildSeries(doc *models.HistoryDocument, benchmark []BenchmarkPoint) (*Series, error) {
	if doc == nil || doc.SimulationInfo == nil || len(doc.NetWorthHistory) == 0 {
		return nil, fmt.Errorf("history has no valuations")
	}

	closes := make(map[types.Date]float64, len(benchmark))
	for _, p := range benchmark {
		closes[p.Date] = p.Close
	}

	series := &Series{}
	var dates []types.Date
	for i, snap := range doc.NetWorthHistory {
		value := snap.TotalAssets.InexactFloat64()
		if i > 0 && doc.NetWorthHistory[i-1].Date.Equal(snap.Date) {
			series.NetWorth[len(series.NetWorth)-1] = value
			continue
		}
		dates = append(dates, snap.Date)
		series.Labels = append(series.Labels, snap.Date.String())
		series.NetWorth = append(series.NetWorth, value)
	}

	capital := doc.SimulationInfo.InitialCapital.InexactFloat64()
	var base, current float64
	for _, date := range dates {
		if c, ok := closes[date]; ok && c > 0 {
			if base == 0 {
				base = c
			}
			current = c
		}
		if base == 0 {
			series.Benchmark = append(series.Benchmark, capital)
			continue
		}
		series.Benchmark = append(series.Benchmark, capital*current/base)
	}

	return series, nil
}

// RenderNetWorth renders total assets against the rebased benchmark as a PNG
func RenderNetWorth(doc *models.HistoryDocument, benchmark []BenchmarkPoint, title string) ([]byte, error) {
	series, err := BuildSeries(doc, benchmark)
	if err != nil {
		return nil, err
	}

	yMin, yMax := bounds(series.NetWorth, series.Benchmark)
	padding := (yMax - yMin) * 0.05
	if padding == 0 {
		padding = yMax * 0.05
	}
	yMin -= padding
	yMax += padding

	splitNum := 6
	if len(series.Labels) <= 30 {
		splitNum = len(series.Labels) / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	info := doc.SimulationInfo
	subtitle := fmt.Sprintf("Return: %.2f%% | %s to %s", info.ReturnRate*100, info.StartDate, info.EndDate)

	p, err := charts.LineRender(
		[][]float64{series.NetWorth, series.Benchmark},
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        series.Labels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{Data: []string{"Total assets", "Benchmark"}}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

func bounds(series ...[]float64) (float64, float64) {
	first := true
	var lo, hi float64
	for _, values := range series {
		for _, v := range values {
			if first {
				lo, hi, first = v, v, false
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}
