package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trogers1052/alphastream-pipeline/internal/models"
)

// GetDashboardRows joins each asset with its most recent signal, best Sharpe ratio first
func (db *DB) GetDashboardRows(ctx context.Context) ([]models.DashboardRow, error) {
	query := `
		SELECT ticker, company_name, price_date, signal_type, sharpe_ratio
		FROM (
			SELECT DISTINCT ON (a.asset_id)
				a.ticker, a.company_name, s.price_date, s.signal_type, s.sharpe_ratio
			FROM assets a
			JOIN signals s ON a.asset_id = s.asset_id
			ORDER BY a.asset_id, s.price_date DESC
		) latest
		ORDER BY sharpe_ratio DESC NULLS LAST, ticker ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard rows: %w", err)
	}
	defer rows.Close()

	result := []models.DashboardRow{}
	for rows.Next() {
		var r models.DashboardRow
		var name, sharpe sql.NullString
		var signalType string
		if err := rows.Scan(&r.Ticker, &name, &r.PriceDate, &signalType, &sharpe); err != nil {
			return nil, fmt.Errorf("failed to scan dashboard row: %w", err)
		}
		r.CompanyName = name.String
		r.PriceDate = models.TradeDate(r.PriceDate)
		r.SignalType = models.SignalType(signalType)
		if sharpe.Valid {
			if err := r.SharpeRatio.Scan(sharpe.String); err != nil {
				return nil, fmt.Errorf("failed to parse sharpe ratio: %w", err)
			}
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dashboard rows: %w", err)
	}
	return result, nil
}
