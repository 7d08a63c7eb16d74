package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/scenario-simulator/internal/models"
)

// PostgresSeriesSource reads scenario series from the Postgres series tables.
// Numeric columns are read back as text so normalization sees the stored digits.
type PostgresSeriesSource struct {
	db       *PostgresDB
	scenario string
	files    SideFiles
}

// NewPostgresSeriesSource creates a series source over an open pool
func NewPostgresSeriesSource(db *PostgresDB, scenario string, files SideFiles) *PostgresSeriesSource {
	return &PostgresSeriesSource{db: db, scenario: scenario, files: files}
}

// FundCodes lists the stored funds
func (s *PostgresSeriesSource) FundCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.Pool().Query(ctx, `SELECT fund_code FROM funds ORDER BY fund_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan funds: %w", err)
	}
	return codes, nil
}

// FundNAV returns the stored NAV rows of one fund, ascending by date
func (s *PostgresSeriesSource) FundNAV(ctx context.Context, fundCode string) ([]models.RawFundNAV, error) {
	query := `
		SELECT fund_code,
		       to_char(date, 'YYYY-MM-DD'),
		       COALESCE(unit_nav::text, ''),
		       COALESCE(acc_nav::text, ''),
		       COALESCE(daily_growth, ''),
		       COALESCE(status_purchase, ''),
		       COALESCE(status_redeem, '')
		FROM fund_nav
		WHERE fund_code = $1
		ORDER BY date
	`

	rows, err := s.db.Pool().Query(ctx, query, fundCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query fund_nav for %s: %w", fundCode, err)
	}
	defer rows.Close()

	var out []models.RawFundNAV
	for rows.Next() {
		var r models.RawFundNAV
		if err := rows.Scan(&r.FundCode, &r.Date, &r.UnitNAV, &r.AccNAV, &r.DailyGrowth, &r.StatusPurchase, &r.StatusRedeem); err != nil {
			return nil, fmt.Errorf("failed to scan fund_nav row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Indices lists the stored index series
func (s *PostgresSeriesSource) Indices(ctx context.Context) ([]models.IndexInfo, error) {
	rows, err := s.db.Pool().Query(ctx, `SELECT index_code, COALESCE(index_name, '') FROM indices ORDER BY index_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query indices: %w", err)
	}
	defer rows.Close()

	var out []models.IndexInfo
	for rows.Next() {
		var info models.IndexInfo
		if err := rows.Scan(&info.Code, &info.Name); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// IndexData returns the stored rows of one index, ascending by date
func (s *PostgresSeriesSource) IndexData(ctx context.Context, indexCode string) ([]models.RawIndexRow, error) {
	query := `
		SELECT index_code,
		       to_char(date, 'YYYY-MM-DD'),
		       COALESCE(close::text, ''),
		       COALESCE(open::text, ''),
		       COALESCE(high::text, ''),
		       COALESCE(low::text, ''),
		       COALESCE(volume, ''),
		       COALESCE(change_pct, '')
		FROM index_data
		WHERE index_code = $1
		ORDER BY date
	`

	rows, err := s.db.Pool().Query(ctx, query, indexCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query index_data for %s: %w", indexCode, err)
	}
	defer rows.Close()

	var out []models.RawIndexRow
	for rows.Next() {
		var r models.RawIndexRow
		if err := rows.Scan(&r.IndexCode, &r.Date, &r.Close, &r.Open, &r.High, &r.Low, &r.Volume, &r.ChangePct); err != nil {
			return nil, fmt.Errorf("failed to scan index_data row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// News returns the news feed. A configured news file takes precedence over the news table.
func (s *PostgresSeriesSource) News(ctx context.Context) ([]models.RawNews, error) {
	if news, ok, err := s.files.news(); ok {
		return news, err
	}

	rows, err := s.db.Pool().Query(ctx, `SELECT to_char(date, 'YYYY-MM-DD'), content FROM news ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}
	defer rows.Close()

	var out []models.RawNews
	for rows.Next() {
		var item models.RawNews
		if err := rows.Scan(&item.Date, &item.Content); err != nil {
			return nil, fmt.Errorf("failed to scan news row: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// SceneDescription returns the scenario narrative. A configured description file
// takes precedence over the scenario table.
func (s *PostgresSeriesSource) SceneDescription(ctx context.Context) (string, error) {
	if desc, ok, err := s.files.description(); ok {
		return desc, err
	}

	var desc string
	err := s.db.Pool().QueryRow(ctx, `SELECT description FROM scenario WHERE name = $1`, s.scenario).Scan(&desc)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query scenario description: %w", err)
	}
	return desc, nil
}
