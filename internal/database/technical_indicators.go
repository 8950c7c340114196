package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trogers1052/alphastream-pipeline/internal/models"
)

const upsertIndicator = `
	INSERT INTO technical_indicators (asset_id, price_date, indicator_type, value)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (asset_id, price_date, indicator_type) DO UPDATE SET
		value = EXCLUDED.value
`

// UpsertIndicators writes indicator values in one transaction, replacing any value already
// stored for the same (asset, date, type)
func (db *DB) UpsertIndicators(ctx context.Context, indicators []models.TechnicalIndicator) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		return upsertIndicators(ctx, tx, indicators)
	})
}

// SaveAnalysis stores a signal and the indicators behind it atomically
func (db *DB) SaveAnalysis(ctx context.Context, s *models.Signal, indicators []models.TechnicalIndicator) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := db.UpsertSignalTx(ctx, tx, s); err != nil {
			return err
		}
		return upsertIndicators(ctx, tx, indicators)
	})
}

func upsertIndicators(ctx context.Context, q querier, indicators []models.TechnicalIndicator) error {
	if len(indicators) == 0 {
		return nil
	}
	stmt, err := q.PrepareContext(ctx, upsertIndicator)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, ind := range indicators {
		_, err := stmt.ExecContext(ctx, ind.AssetID, models.TradeDate(ind.Date), ind.IndicatorType, ind.Value.Round(4))
		if err != nil {
			return fmt.Errorf("failed to upsert %s for asset %d: %w", ind.IndicatorType, ind.AssetID, err)
		}
	}
	return nil
}

// GetLatestIndicators retrieves every indicator stored for the asset's most recent date
func (db *DB) GetLatestIndicators(ctx context.Context, assetID int) ([]models.TechnicalIndicator, error) {
	query := `
		SELECT indicator_id, asset_id, price_date, indicator_type, value
		FROM technical_indicators
		WHERE asset_id = $1
		AND price_date = (SELECT MAX(price_date) FROM technical_indicators WHERE asset_id = $1)
		ORDER BY indicator_type
	`
	return scanIndicators(db.conn.QueryContext(ctx, query, assetID))
}

// GetIndicatorHistory retrieves one indicator for an asset, newest first
func (db *DB) GetIndicatorHistory(ctx context.Context, assetID int, indicatorType string, limit int) ([]models.TechnicalIndicator, error) {
	query := `
		SELECT indicator_id, asset_id, price_date, indicator_type, value
		FROM technical_indicators
		WHERE asset_id = $1 AND indicator_type = $2
		ORDER BY price_date DESC
		LIMIT $3
	`
	return scanIndicators(db.conn.QueryContext(ctx, query, assetID, indicatorType, limit))
}

func scanIndicators(rows *sql.Rows, err error) ([]models.TechnicalIndicator, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to get indicators: %w", err)
	}
	defer rows.Close()

	var indicators []models.TechnicalIndicator
	for rows.Next() {
		var ind models.TechnicalIndicator
		if err := rows.Scan(&ind.ID, &ind.AssetID, &ind.Date, &ind.IndicatorType, &ind.Value); err != nil {
			return nil, fmt.Errorf("failed to scan indicator: %w", err)
		}
		ind.Date = models.TradeDate(ind.Date)
		indicators = append(indicators, ind)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate indicators: %w", err)
	}
	return indicators, nil
}
