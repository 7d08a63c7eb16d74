package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *models.HistoryDocument {
	d1 := types.NewDate(2008, time.September, 15)
	d2 := types.NewDate(2008, time.September, 16)
	d3 := types.NewDate(2008, time.September, 17)
	snap := func(d types.Date, total string) models.NetWorthSnapshot {
		return models.NetWorthSnapshot{Date: d, TotalAssets: decimal.RequireFromString(total)}
	}
	return &models.HistoryDocument{
		SimulationInfo: &models.SimulationInfo{
			StartDate:      d1,
			EndDate:        d3,
			InitialCapital: decimal.RequireFromString("100000"),
			FinalAssets:    decimal.RequireFromString("98000"),
			ReturnRate:     -0.02,
		},
		NetWorthHistory: []models.NetWorthSnapshot{
			snap(d1, "100000"),
			snap(d1, "99990"),
			snap(d2, "101000"),
			snap(d3, "98000"),
		},
	}
}

func TestBuildSeries(t *testing.T) {
	doc := sampleDocument()
	bench := []BenchmarkPoint{
		{Date: types.NewDate(2008, time.September, 15), Close: 2000},
		{Date: types.NewDate(2008, time.September, 17), Close: 1800},
	}

	series, err := BuildSeries(doc, bench)
	require.NoError(t, err)

	assert.Equal(t, []string{"2008-09-15", "2008-09-16", "2008-09-17"}, series.Labels)
	assert.Equal(t, []float64{99990, 101000, 98000}, series.NetWorth)
	assert.InDeltaSlice(t, []float64{100000, 100000, 90000}, series.Benchmark, 1e-9)
}

func TestBuildSeriesWithoutBenchmark(t *testing.T) {
	series, err := BuildSeries(sampleDocument(), nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{100000, 100000, 100000}, series.Benchmark)
}

func TestBuildSeriesEmptyHistory(t *testing.T) {
	_, err := BuildSeries(&models.HistoryDocument{SimulationInfo: &models.SimulationInfo{}}, nil)
	assert.Error(t, err)

	_, err = BuildSeries(nil, nil)
	assert.Error(t, err)
}

func TestRenderNetWorth(t *testing.T) {
	png, err := RenderNetWorth(sampleDocument(), []BenchmarkPoint{
		{Date: types.NewDate(2008, time.September, 15), Close: 2000},
		{Date: types.NewDate(2008, time.September, 16), Close: 1950},
	}, "Lehman 2008")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "expected PNG output")
}
