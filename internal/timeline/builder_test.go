package timeline

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scenario-simulator/internal/logging"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSource is an in-memory SeriesSource
type mockSource struct {
	funds      map[string][]models.RawFundNAV
	indices    []models.IndexInfo
	indexData  map[string][]models.RawIndexRow
	news       []models.RawNews
	scene      string
	sceneErr   error
	newsErr    error
	fundErrFor string
	listErr    error
}

func (m *mockSource) FundCodes(ctx context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	codes := make([]string, 0, len(m.funds))
	for code := range m.funds {
		codes = append(codes, code)
	}
	return codes, nil
}

func (m *mockSource) FundNAV(ctx context.Context, fundCode string) ([]models.RawFundNAV, error) {
	if fundCode == m.fundErrFor {
		return nil, errors.New("no such table: fund_nav")
	}
	return m.funds[fundCode], nil
}

func (m *mockSource) Indices(ctx context.Context) ([]models.IndexInfo, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.indices, nil
}

func (m *mockSource) IndexData(ctx context.Context, indexCode string) ([]models.RawIndexRow, error) {
	return m.indexData[indexCode], nil
}

func (m *mockSource) News(ctx context.Context) ([]models.RawNews, error) {
	return m.news, m.newsErr
}

func (m *mockSource) SceneDescription(ctx context.Context) (string, error) {
	return m.scene, m.sceneErr
}

func navRows(code string, rows ...[2]string) []models.RawFundNAV {
	out := make([]models.RawFundNAV, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.RawFundNAV{FundCode: code, Date: r[0], UnitNAV: r[1], AccNAV: r[1], DailyGrowth: "0.00%"})
	}
	return out
}

func indexRows(code string, rows ...[2]string) []models.RawIndexRow {
	out := make([]models.RawIndexRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.RawIndexRow{IndexCode: code, Date: r[0], Close: r[1], ChangePct: "-1.5%"})
	}
	return out
}

// newCrisisSource returns a week of September 2008 with a weekend news item
func newCrisisSource() *mockSource {
	return &mockSource{
		funds: map[string][]models.RawFundNAV{
			"000001": navRows("000001",
				[2]string{"2008-09-11", "1.02"},
				[2]string{"2008-09-12", "1.01"},
				[2]string{"2008-09-15", "0.98"},
				[2]string{"2008-09-16", "0.95"},
			),
			"110022": navRows("110022",
				[2]string{"2008-09-12", "2.10"},
				[2]string{"2008-09-15", "2.00"},
				[2]string{"2008-09-16", "1.96"},
			),
		},
		indices: []models.IndexInfo{
			{Code: "000001.SH", Name: "上证指数"},
			{Code: "DJI", Name: "道琼斯工业平均指数"},
			{Code: "HSI", Name: "恒生指数"},
		},
		indexData: map[string][]models.RawIndexRow{
			"000001.SH": indexRows("000001.SH",
				[2]string{"2008-09-11", "2079.67"},
				[2]string{"2008-09-12", "2079.67"},
				[2]string{"2008-09-15", "1986.64"},
				[2]string{"2008-09-16", "1986.64"},
			),
			"DJI": indexRows("DJI",
				[2]string{"2008-09-12", "11421.99"},
				[2]string{"2008-09-15", "10917.51"},
				[2]string{"2008-09-16", "11059.02"},
			),
			"HSI": indexRows("HSI",
				[2]string{"2008-09-12", "19352.90"},
			),
		},
		news: []models.RawNews{
			{Date: "2008-09-15", Content: "Lehman Brothers files for bankruptcy"},
			{Date: "2008-09-14", Content: "Weekend talks to rescue Lehman collapse"},
			{Date: "2008-09-15", Content: "Merrill Lynch agrees to sale"},
			{Date: "bad-date", Content: "ignored"},
		},
		scene: "September 2008: the global financial crisis.",
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestBuildTimelineStrictIntersection(t *testing.T) {
	ctx := testContext(t)
	builder := NewBuilder(newCrisisSource(), DefaultBuilderConfig(), logging.Discard())

	tl, err := builder.Build(ctx)
	require.NoError(t, err)

	// 09-11 precedes the foreign index, 09-14 is a weekend news date
	require.Equal(t, 3, tl.Len())
	assert.Equal(t, types.NewDate(2008, time.September, 12), tl.First())
	assert.Equal(t, types.NewDate(2008, time.September, 16), tl.Last())
	assert.Equal(t, types.NewDate(2008, time.September, 12), tl.Floor())
	assert.Equal(t, []string{"000001", "110022"}, tl.FundCodes())

	day, ok := tl.Day(1)
	require.True(t, ok)
	assert.Equal(t, types.NewDate(2008, time.September, 15), day.Date)
	assert.Equal(t, []string{"Lehman Brothers files for bankruptcy", "Merrill Lynch agrees to sale"}, day.News)
	assert.Equal(t, "0.98", day.Funds["000001"].NAV.String())
	assert.InDelta(t, 1986.64, day.Indices["sh_index"].Close, 1e-9)
	assert.InDelta(t, -1.5, day.Indices["dj_index"].ChangePct, 1e-9)

	// non-required indices appear only where they have data
	first, _ := tl.Day(0)
	assert.Contains(t, first.Indices, "HSI")
	assert.NotContains(t, day.Indices, "HSI")

	assert.Equal(t, "September 2008: the global financial crisis.", tl.Description())
}

func TestEarliestValidDate(t *testing.T) {
	ctx := testContext(t)

	t.Run("later of the two required index starts", func(t *testing.T) {
		builder := NewBuilder(newCrisisSource(), DefaultBuilderConfig(), logging.Discard())
		builder.LoadIndexSeries(ctx)
		assert.Equal(t, types.NewDate(2008, time.September, 12), builder.EarliestValidDate())
	})

	t.Run("zero when an index is missing", func(t *testing.T) {
		src := newCrisisSource()
		src.indices = src.indices[:1]
		builder := NewBuilder(src, DefaultBuilderConfig(), logging.Discard())
		builder.LoadIndexSeries(ctx)
		assert.True(t, builder.EarliestValidDate().IsZero())

		tl, err := builder.BuildTimeline(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, tl.Len())
	})
}

func TestLoadFundSeriesSkipsBadRows(t *testing.T) {
	ctx := testContext(t)
	src := newCrisisSource()
	src.funds["000001"] = append(src.funds["000001"],
		models.RawFundNAV{FundCode: "000001", Date: "2008-09-17", UnitNAV: "N/A", DailyGrowth: "1%"},
		models.RawFundNAV{FundCode: "000001", Date: "2008-09-18", UnitNAV: "0.97", DailyGrowth: "garbage"},
		models.RawFundNAV{FundCode: "000001", Date: "2008-09-15", UnitNAV: "0.50", DailyGrowth: "-2.65%"},
	)
	src.funds["519999"] = navRows("519999", [2]string{"2008-09-12", "oops"})

	builder := NewBuilder(src, DefaultBuilderConfig(), logging.Discard())
	funds := builder.LoadFundSeries(ctx)

	require.Contains(t, funds, "000001")
	assert.Len(t, funds["000001"], 4)
	// duplicates keep the first row
	assert.Equal(t, "0.98", funds["000001"][2].UnitNAV.String())
	assert.NotContains(t, funds, "519999")
}

func TestSkippedRowsAreLoggedAsLoadErrors(t *testing.T) {
	ctx := testContext(t)
	src := newCrisisSource()
	src.funds["000001"] = append(src.funds["000001"],
		models.RawFundNAV{FundCode: "000001", Date: "", UnitNAV: "0.97", DailyGrowth: "1%"},
	)
	src.news = append(src.news, models.RawNews{Date: "someday", Content: "Undated rumor"})

	var buf bytes.Buffer
	logger := logging.NewLogger(logging.LevelWarn, logging.FormatJSON)
	logger.SetOutput(&buf)

	builder := NewBuilder(src, DefaultBuilderConfig(), logger)
	builder.LoadFundSeries(ctx)
	builder.LoadNews(ctx)

	out := buf.String()
	assert.Contains(t, out, "Skipping fund row with invalid date")
	assert.Contains(t, out, "LOAD_ERROR: failed to load fund 000001")
	assert.Contains(t, out, "LOAD_ERROR: failed to load news")
}

func TestLoadFundSeriesSourceFailure(t *testing.T) {
	ctx := testContext(t)
	src := newCrisisSource()
	src.fundErrFor = "110022"

	builder := NewBuilder(src, DefaultBuilderConfig(), logging.Discard())
	tl, err := builder.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001"}, tl.FundCodes())
	assert.Equal(t, 3, tl.Len())
}

func TestBuildWithUnreadableSource(t *testing.T) {
	ctx := testContext(t)
	src := newCrisisSource()
	src.listErr = errors.New("database is locked")
	src.newsErr = errors.New("no such table: news")
	src.sceneErr = errors.New("no such table: scenario")

	builder := NewBuilder(src, DefaultBuilderConfig(), logging.Discard())
	tl, err := builder.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, tl.Len())
	assert.Equal(t, DefaultPlaceholderScene, tl.Description())
}

func TestLoadNewsSorted(t *testing.T) {
	ctx := testContext(t)
	builder := NewBuilder(newCrisisSource(), DefaultBuilderConfig(), logging.Discard())

	news := builder.LoadNews(ctx)
	require.Len(t, news, 3)
	for i := 1; i < len(news); i++ {
		assert.False(t, news[i].Date.Before(news[i-1].Date))
	}
	assert.Equal(t, types.NewDate(2008, time.September, 14), news[0].Date)
}

func TestLoadSceneDescriptionPlaceholder(t *testing.T) {
	ctx := testContext(t)
	src := newCrisisSource()
	src.scene = "   "

	cfg := DefaultBuilderConfig()
	cfg.PlaceholderScene = "Scene unavailable"
	builder := NewBuilder(src, cfg, logging.Discard())
	assert.Equal(t, "Scene unavailable", builder.LoadSceneDescription(ctx))
}

func TestBuildHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	builder := NewBuilder(newCrisisSource(), DefaultBuilderConfig(), logging.Discard())
	_, err := builder.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
