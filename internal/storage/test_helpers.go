package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

const sqliteScenarioSchema = `
CREATE TABLE funds (fund_code TEXT PRIMARY KEY, fund_name TEXT);
CREATE TABLE fund_nav (
	fund_code TEXT, date TEXT, unit_nav REAL, acc_nav REAL, daily_growth REAL,
	status_purchase TEXT, status_redeem TEXT,
	PRIMARY KEY (fund_code, date)
);
CREATE TABLE indices (index_code TEXT PRIMARY KEY, index_name TEXT);
CREATE TABLE index_data (
	index_code TEXT, date TEXT, close REAL, open REAL, high REAL, low REAL,
	volume TEXT, change_pct TEXT,
	PRIMARY KEY (index_code, date)
);
CREATE TABLE news (date TEXT, content TEXT);
CREATE TABLE scenario (name TEXT PRIMARY KEY, description TEXT);
`

// createScenarioDB writes a SQLite scenario database with the given seed statements
func createScenarioDB(t *testing.T, seed ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec(sqliteScenarioSchema)
	require.NoError(t, err)
	for _, stmt := range seed {
		_, err = db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}
