package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/scenario-simulator/internal/models"
)

// SQLiteSeriesSource reads scenario series from a SQLite scenario database
type SQLiteSeriesSource struct {
	db       *sql.DB
	scenario string
	files    SideFiles
}

// OpenSQLiteSeriesSource opens the scenario database at path.
// A missing file is an error rather than an empty database.
func OpenSQLiteSeriesSource(path, scenario string, files SideFiles) (*SQLiteSeriesSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("scenario database %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping scenario database: %w", err)
	}

	return NewSQLiteSeriesSource(db, scenario, files), nil
}

// NewSQLiteSeriesSource wraps an open database handle
func NewSQLiteSeriesSource(db *sql.DB, scenario string, files SideFiles) *SQLiteSeriesSource {
	return &SQLiteSeriesSource{db: db, scenario: scenario, files: files}
}

// Close closes the database handle
func (s *SQLiteSeriesSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// FundCodes lists the stored funds
func (s *SQLiteSeriesSource) FundCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fund_code FROM funds ORDER BY fund_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan fund code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// FundNAV returns the stored NAV rows of one fund, ascending by date
func (s *SQLiteSeriesSource) FundNAV(ctx context.Context, fundCode string) ([]models.RawFundNAV, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fund_code, date,
		       CAST(unit_nav AS TEXT), CAST(acc_nav AS TEXT), CAST(daily_growth AS TEXT),
		       status_purchase, status_redeem
		FROM fund_nav
		WHERE fund_code = ?
		ORDER BY date`, fundCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query fund_nav for %s: %w", fundCode, err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.RawFundNAV
	for rows.Next() {
		var (
			code                         string
			date, unitNAV, accNAV        sql.NullString
			growth                       sql.NullString
			statusPurchase, statusRedeem sql.NullString
		)
		if err := rows.Scan(&code, &date, &unitNAV, &accNAV, &growth, &statusPurchase, &statusRedeem); err != nil {
			return nil, fmt.Errorf("failed to scan fund_nav row: %w", err)
		}
		out = append(out, models.RawFundNAV{
			FundCode:       code,
			Date:           date.String,
			UnitNAV:        unitNAV.String,
			AccNAV:         accNAV.String,
			DailyGrowth:    growth.String,
			StatusPurchase: statusPurchase.String,
			StatusRedeem:   statusRedeem.String,
		})
	}
	return out, rows.Err()
}

// Indices lists the stored index series
func (s *SQLiteSeriesSource) Indices(ctx context.Context) ([]models.IndexInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT index_code, index_name FROM indices ORDER BY index_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query indices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.IndexInfo
	for rows.Next() {
		var code string
		var name sql.NullString
		if err := rows.Scan(&code, &name); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		out = append(out, models.IndexInfo{Code: code, Name: name.String})
	}
	return out, rows.Err()
}

// IndexData returns the stored rows of one index, ascending by date
func (s *SQLiteSeriesSource) IndexData(ctx context.Context, indexCode string) ([]models.RawIndexRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT index_code, date,
		       CAST(close AS TEXT), CAST(open AS TEXT), CAST(high AS TEXT), CAST(low AS TEXT),
		       CAST(volume AS TEXT), CAST(change_pct AS TEXT)
		FROM index_data
		WHERE index_code = ?
		ORDER BY date`, indexCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query index_data for %s: %w", indexCode, err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.RawIndexRow
	for rows.Next() {
		var code string
		var date, closeV, openV, high, low, volume, change sql.NullString
		if err := rows.Scan(&code, &date, &closeV, &openV, &high, &low, &volume, &change); err != nil {
			return nil, fmt.Errorf("failed to scan index_data row: %w", err)
		}
		out = append(out, models.RawIndexRow{
			IndexCode: code,
			Date:      date.String,
			Close:     closeV.String,
			Open:      openV.String,
			High:      high.String,
			Low:       low.String,
			Volume:    volume.String,
			ChangePct: change.String,
		})
	}
	return out, rows.Err()
}

// News returns the news feed. A configured news file takes precedence over the news table.
func (s *SQLiteSeriesSource) News(ctx context.Context) ([]models.RawNews, error) {
	if news, ok, err := s.files.news(); ok {
		return news, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT date, content FROM news ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.RawNews
	for rows.Next() {
		var date, content sql.NullString
		if err := rows.Scan(&date, &content); err != nil {
			return nil, fmt.Errorf("failed to scan news row: %w", err)
		}
		out = append(out, models.RawNews{Date: date.String, Content: content.String})
	}
	return out, rows.Err()
}

// SceneDescription returns the scenario narrative. A configured description file
// takes precedence over the scenario table.
func (s *SQLiteSeriesSource) SceneDescription(ctx context.Context) (string, error) {
	if desc, ok, err := s.files.description(); ok {
		return desc, err
	}

	var desc sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT description FROM scenario WHERE name = ?`, s.scenario).Scan(&desc)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query scenario description: %w", err)
	}
	return desc.String, nil
}
