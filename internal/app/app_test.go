package app

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/scenario-simulator/internal/config"
	"github.com/scenario-simulator/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schema = `
CREATE TABLE funds (fund_code TEXT PRIMARY KEY, fund_name TEXT);
CREATE TABLE fund_nav (fund_code TEXT, date TEXT, unit_nav REAL, acc_nav REAL, daily_growth REAL, status_purchase TEXT, status_redeem TEXT);
CREATE TABLE indices (index_code TEXT PRIMARY KEY, index_name TEXT);
CREATE TABLE index_data (index_code TEXT, date TEXT, close REAL, open REAL, high REAL, low REAL, volume TEXT, change_pct TEXT);
CREATE TABLE news (date TEXT, content TEXT);
CREATE TABLE scenario (name TEXT PRIMARY KEY, description TEXT);
INSERT INTO funds VALUES ('000001', 'Growth Fund');
INSERT INTO fund_nav VALUES ('000001', '2020-03-09', 1.0, NULL, NULL, NULL, NULL), ('000001', '2020-03-10', 1.05, NULL, 5, NULL, NULL);
INSERT INTO indices VALUES ('HOME', 'Home Composite'), ('AWAY', 'Away Industrial');
INSERT INTO index_data VALUES
	('HOME', '2020-03-09', 3000, NULL, NULL, NULL, NULL, NULL), ('HOME', '2020-03-10', 3100, NULL, NULL, NULL, NULL, NULL),
	('AWAY', '2020-03-09', 24000, NULL, NULL, NULL, NULL, NULL), ('AWAY', '2020-03-10', 25000, NULL, NULL, NULL, NULL, NULL);
INSERT INTO scenario VALUES ('covid-2020', 'Markets fall as the pandemic spreads');
`

const definition = `
name: covid-2020
domestic_index: home
foreign_index: away
index_rules:
  - contains: Home
    key: home
  - contains: Away
    key: away
initial_capital: "50000"
`

func writeScenario(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "scenario.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	defPath := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(defPath, []byte(definition), 0o600))

	return &config.Config{
		Scenario: config.ScenarioConfig{
			Name:           "default",
			Source:         config.SourceSQLite,
			SQLitePath:     dbPath,
			DefinitionPath: defPath,
		},
		Simulation: config.SimulationConfig{InitialCapital: "100000", MaxSessions: 5},
	}
}

func TestBuilderConfig(t *testing.T) {
	cfg := BuilderConfig(nil)
	assert.Equal(t, "sh_index", cfg.DomesticIndex)

	cfg = BuilderConfig(&config.ScenarioDefinition{
		DomesticIndex:          "home",
		IndexRules:             []config.IndexRule{{Contains: "Home", Key: "home"}},
		PlaceholderDescription: "n/a",
	})
	assert.Equal(t, "home", cfg.DomesticIndex)
	assert.Equal(t, "dj_index", cfg.ForeignIndex)
	require.Len(t, cfg.IndexRules, 1)
	assert.Equal(t, "home", cfg.IndexRules[0].Key)
	assert.Equal(t, "n/a", cfg.PlaceholderScene)
}

func TestNewFromSQLite(t *testing.T) {
	t.Setenv("SIMULATION_INITIAL_CAPITAL", "")
	cfg := writeScenario(t)

	a, err := New(context.Background(), cfg, Options{}, logging.Discard())
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	assert.Equal(t, "covid-2020", cfg.Scenario.Name)
	assert.Equal(t, 2, a.Timeline.Len())
	assert.Equal(t, "home", a.Timeline.DomesticIndex())
	assert.Equal(t, "Markets fall as the pandemic spreads", a.Timeline.Description())

	info, err := a.Sessions.Create(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "50000", info.InitialCapital.String())
}

func TestNewUsesTimelineCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := writeScenario(t)
	cfg.Cache = config.CacheConfig{Enabled: true, KeyPrefix: "test"}
	cfg.Database.Redis = config.RedisConfig{Host: mr.Host(), Port: mr.Port(), MaxConnections: 2}

	a, err := New(context.Background(), cfg, Options{}, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Close())
	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "test:timeline:covid-2020:"), keys[0])

	// a cached timeline survives the loss of the source database
	require.NoError(t, os.Remove(cfg.Scenario.SQLitePath))
	db, err := sql.Open("sqlite3", cfg.Scenario.SQLitePath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE unused (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	b, err := New(context.Background(), cfg, Options{}, logging.Discard())
	require.NoError(t, err)
	defer func() { _ = b.Close() }()
	assert.Equal(t, 2, b.Timeline.Len())
}

func TestTimelineCacheKeyFollowsBuilderSettings(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := writeScenario(t)
	cfg.Cache = config.CacheConfig{Enabled: true, KeyPrefix: "test"}
	cfg.Database.Redis = config.RedisConfig{Host: mr.Host(), Port: mr.Port(), MaxConnections: 2}

	a, err := New(context.Background(), cfg, Options{}, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.Equal(t, "home", a.Timeline.DomesticIndex())

	swapped := strings.NewReplacer("domestic_index: home", "domestic_index: away", "foreign_index: away", "foreign_index: home").Replace(definition)
	require.NoError(t, os.WriteFile(cfg.Scenario.DefinitionPath, []byte(swapped), 0o600))

	b, err := New(context.Background(), cfg, Options{}, logging.Discard())
	require.NoError(t, err)
	defer func() { _ = b.Close() }()
	assert.Equal(t, "away", b.Timeline.DomesticIndex(), "a changed index setting must not reuse the cached timeline")
	assert.Len(t, mr.Keys(), 2)
}

func TestTimelineFingerprint(t *testing.T) {
	cfg := writeScenario(t)
	base, err := TimelineFingerprint(cfg, BuilderConfig(nil))
	require.NoError(t, err)

	other := *cfg
	other.Scenario.SQLitePath = filepath.Join(t.TempDir(), "other.db")
	moved, err := TimelineFingerprint(&other, BuilderConfig(nil))
	require.NoError(t, err)
	assert.NotEqual(t, base, moved)

	renamed, err := TimelineFingerprint(cfg, BuilderConfig(&config.ScenarioDefinition{DomesticIndex: "home"}))
	require.NoError(t, err)
	assert.NotEqual(t, base, renamed)

	same, err := TimelineFingerprint(cfg, BuilderConfig(nil))
	require.NoError(t, err)
	assert.Equal(t, base, same)
}

func TestNewErrors(t *testing.T) {
	t.Run("missing database", func(t *testing.T) {
		cfg := writeScenario(t)
		cfg.Scenario.SQLitePath = filepath.Join(t.TempDir(), "missing.db")
		_, err := New(context.Background(), cfg, Options{}, logging.Discard())
		assert.Error(t, err)
	})

	t.Run("unknown source", func(t *testing.T) {
		cfg := writeScenario(t)
		cfg.Scenario.Source = "mongo"
		_, err := New(context.Background(), cfg, Options{}, logging.Discard())
		assert.Error(t, err)
	})

	t.Run("bad capital", func(t *testing.T) {
		t.Setenv("SIMULATION_INITIAL_CAPITAL", "set")
		cfg := writeScenario(t)
		cfg.Simulation.InitialCapital = "lots"
		_, err := New(context.Background(), cfg, Options{}, logging.Discard())
		assert.Error(t, err)
	})
}
