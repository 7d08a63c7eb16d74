package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/scenario-simulator/internal/config"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/types"
)

// ClickHouseDB wraps the ClickHouse connection
type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(cfg *config.ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     10,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying ClickHouse connection
func (db *ClickHouseDB) Conn() driver.Conn {
	return db.conn
}

// Ping checks if the database is reachable
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.conn.Ping(ctx)
}

// Exec executes a query without returning rows
func (db *ClickHouseDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	return db.conn.Exec(ctx, query, args...)
}

// RunArchive appends exported simulation runs to ClickHouse for later analysis
type RunArchive struct {
	db *ClickHouseDB
}

// NewRunArchive creates a run archive
func NewRunArchive(db *ClickHouseDB) *RunArchive {
	return &RunArchive{db: db}
}

// SaveRun archives the net-worth history, the action log and then the run summary.
// The summary row is written last so a run listed by RecentRuns is always complete.
func (a *RunArchive) SaveRun(ctx context.Context, runID, sessionID string, doc *models.HistoryDocument) error {
	if doc == nil || doc.SimulationInfo == nil {
		return fmt.Errorf("run %s has no simulation info", runID)
	}
	info := doc.SimulationInfo

	if err := a.saveNetWorth(ctx, runID, doc.NetWorthHistory); err != nil {
		return err
	}
	if err := a.saveActions(ctx, runID, doc.Actions); err != nil {
		return err
	}

	if err := a.db.conn.Exec(ctx, `
		INSERT INTO simulation_runs (
			run_id, session_id, start_date, end_date, initial_capital,
			final_assets, return_rate, action_count, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, sessionID, info.StartDate.Time, info.EndDate.Time, info.InitialCapital,
		info.FinalAssets, info.ReturnRate, uint32(len(doc.Actions)), time.Now().UTC()); err != nil { // #nosec G115 - action logs are far below 2^32
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (a *RunArchive) saveNetWorth(ctx context.Context, runID string, history []models.NetWorthSnapshot) error {
	if len(history) == 0 {
		return nil
	}

	batch, err := a.db.conn.PrepareBatch(ctx, `
		INSERT INTO simulation_net_worth (run_id, seq, date, cash, holdings_value, total_assets)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for i, s := range history {
		if err := batch.Append(runID, uint32(i), s.Date.Time, s.Cash, s.HoldingsValue, s.TotalAssets); err != nil { // #nosec G115
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (a *RunArchive) saveActions(ctx context.Context, runID string, actions []models.ActionRecord) error {
	if len(actions) == 0 {
		return nil
	}

	batch, err := a.db.conn.PrepareBatch(ctx, `
		INSERT INTO simulation_actions (
			run_id, seq, action_id, date, action_type, fund_code, amount, nav, shares, cash_after
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for i, act := range actions {
		if err := batch.Append(runID, uint32(i), act.ID, act.Date.Time, string(act.Kind), act.Details.FundCode, // #nosec G115
			act.Details.Amount, act.Details.NAV, act.Details.Shares, act.CashAfter); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// RecentRuns returns the most recently archived runs, newest first
func (a *RunArchive) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.conn.Query(ctx, `
		SELECT run_id, session_id, start_date, end_date, initial_capital,
		       final_assets, return_rate, action_count, archived_at
		FROM simulation_runs
		ORDER BY archived_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.RunSummary
	for rows.Next() {
		var (
			r          models.RunSummary
			start, end time.Time
			count      uint32
		)
		if err := rows.Scan(&r.RunID, &r.SessionID, &start, &end, &r.InitialCapital,
			&r.FinalAssets, &r.ReturnRate, &count, &r.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartDate = types.DateOf(start)
		r.EndDate = types.DateOf(end)
		r.ActionCount = int(count)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
