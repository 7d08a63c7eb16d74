package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scenario-simulator/internal/logging"
	"github.com/scenario-simulator/internal/timeline"
	"github.com/scenario-simulator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var crisisSeed = []string{
	`INSERT INTO funds VALUES ('000001', 'Growth Fund'), ('000002', 'Bond Fund')`,
	`INSERT INTO fund_nav VALUES
		('000001', '2008-09-16', 0.9123, 1.5, -2.65, '开放申购', '开放赎回'),
		('000001', '2008-09-15', 0.9371, NULL, NULL, NULL, NULL)`,
	`INSERT INTO indices VALUES ('SH000001', '上证指数'), ('DJI', '道琼斯工业平均指数')`,
	`INSERT INTO index_data VALUES
		('SH000001', '2008-09-16', 1986.64, 2000.5, 2010, 1980, '1,234', '-4.47%'),
		('DJI', '2008-09-15', 10917.51, 11416.37, 11416.37, 10914.94, NULL, '--')`,
	`INSERT INTO news VALUES ('2008-09-15', 'Lehman Brothers files for bankruptcy')`,
	`INSERT INTO scenario VALUES ('lehman-2008', 'The 2008 financial crisis')`,
}

func TestOpenSQLiteSeriesSourceMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	_, err := OpenSQLiteSeriesSource(path, "x", SideFiles{})
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSQLiteSeriesSource(t *testing.T) {
	src, err := OpenSQLiteSeriesSource(createScenarioDB(t, crisisSeed...), "lehman-2008", SideFiles{})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()
	ctx := testContext(t)

	codes, err := src.FundCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001", "000002"}, codes)

	navs, err := src.FundNAV(ctx, "000001")
	require.NoError(t, err)
	require.Len(t, navs, 2)
	assert.Equal(t, "2008-09-15", navs[0].Date)
	assert.Equal(t, "0.9371", navs[0].UnitNAV)
	assert.Equal(t, "", navs[0].AccNAV)
	assert.Equal(t, "", navs[0].DailyGrowth)
	assert.Equal(t, "0.9123", navs[1].UnitNAV)
	assert.Equal(t, "-2.65", navs[1].DailyGrowth)
	assert.Equal(t, "开放申购", navs[1].StatusPurchase)

	empty, err := src.FundNAV(ctx, "000002")
	require.NoError(t, err)
	assert.Empty(t, empty)

	indices, err := src.Indices(ctx)
	require.NoError(t, err)
	require.Len(t, indices, 2)
	assert.Equal(t, "DJI", indices[0].Code)
	assert.Equal(t, "上证指数", indices[1].Name)

	rows, err := src.IndexData(ctx, "SH000001")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1986.64", rows[0].Close)
	assert.Equal(t, "2000.5", rows[0].Open)
	assert.Equal(t, "1,234", rows[0].Volume)
	assert.Equal(t, "-4.47%", rows[0].ChangePct)

	dj, err := src.IndexData(ctx, "DJI")
	require.NoError(t, err)
	require.Len(t, dj, 1)
	assert.Equal(t, "", dj[0].Volume)
	assert.Equal(t, "--", dj[0].ChangePct)

	news, err := src.News(ctx)
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "Lehman Brothers files for bankruptcy", news[0].Content)

	desc, err := src.SceneDescription(ctx)
	require.NoError(t, err)
	assert.Equal(t, "The 2008 financial crisis", desc)
}

func TestSQLiteSeriesSourceUnknownScenario(t *testing.T) {
	src, err := OpenSQLiteSeriesSource(createScenarioDB(t, crisisSeed...), "unknown", SideFiles{})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	desc, err := src.SceneDescription(testContext(t))
	require.NoError(t, err)
	assert.Empty(t, desc)
}

func TestSQLiteSeriesSourceMissingTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE unrelated (id INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := OpenSQLiteSeriesSource(path, "x", SideFiles{})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()
	ctx := testContext(t)

	_, err = src.FundCodes(ctx)
	assert.Error(t, err)
	_, err = src.Indices(ctx)
	assert.Error(t, err)
	_, err = src.News(ctx)
	assert.Error(t, err)
	_, err = src.SceneDescription(ctx)
	assert.Error(t, err)
}

func TestSQLiteSeriesSourceSideFiles(t *testing.T) {
	dir := t.TempDir()
	newsPath := filepath.Join(dir, "news.json")
	descPath := filepath.Join(dir, "description.json")
	require.NoError(t, os.WriteFile(newsPath, []byte(`[
		{"date": "2008-09-16", "content": "AIG rescued"},
		{"date": "2008-09-17"}
	]`), 0o600))
	require.NoError(t, os.WriteFile(descPath, []byte(`["Line one", "Line two"]`), 0o600))

	src, err := OpenSQLiteSeriesSource(createScenarioDB(t, crisisSeed...), "lehman-2008",
		SideFiles{NewsPath: newsPath, DescriptionPath: descPath})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()
	ctx := testContext(t)

	news, err := src.News(ctx)
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "AIG rescued", news[0].Content)

	desc, err := src.SceneDescription(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Line one\nLine two", desc)
}

func TestSQLiteSeriesSourceNullDatesAndContent(t *testing.T) {
	path := createScenarioDB(t,
		`INSERT INTO funds VALUES ('000001', 'Growth Fund')`,
		`INSERT INTO fund_nav VALUES
			('000001', '2008-09-16', 0.9123, 1.5, -2.65, NULL, NULL),
			('000001', NULL, 0.95, NULL, NULL, NULL, NULL)`,
		`INSERT INTO indices VALUES ('SH000001', '上证指数')`,
		`INSERT INTO index_data VALUES
			('SH000001', '2008-09-16', 1986.64, NULL, NULL, NULL, NULL, '-4.47%'),
			('SH000001', NULL, 2000, NULL, NULL, NULL, NULL, NULL)`,
		`INSERT INTO news VALUES ('2008-09-15', 'Lehman Brothers files for bankruptcy'), ('2008-09-16', NULL), (NULL, 'Undated')`,
	)
	src, err := OpenSQLiteSeriesSource(path, "lehman-2008", SideFiles{})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()
	ctx := testContext(t)

	navs, err := src.FundNAV(ctx, "000001")
	require.NoError(t, err)
	require.Len(t, navs, 2)
	assert.Equal(t, "", navs[0].Date)
	assert.Equal(t, "2008-09-16", navs[1].Date)

	rows, err := src.IndexData(ctx, "SH000001")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0].Date)

	news, err := src.News(ctx)
	require.NoError(t, err)
	require.Len(t, news, 3)

	b := timeline.NewBuilder(src, timeline.DefaultBuilderConfig(), logging.Discard())
	funds := b.LoadFundSeries(ctx)
	require.Len(t, funds["000001"], 1)
	assert.Equal(t, types.NewDate(2008, time.September, 16), funds["000001"][0].Date)

	indices := b.LoadIndexSeries(ctx)
	require.Len(t, indices["sh_index"], 1)

	events := b.LoadNews(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, "Lehman Brothers files for bankruptcy", events[0].Content)
}
