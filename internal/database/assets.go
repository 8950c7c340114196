package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trogers1052/alphastream-pipeline/internal/models"
)

// EnsureAsset creates the asset on first sight of a ticker and returns the stored row.
// An existing asset is left as is except that a missing company name is backfilled.
func (db *DB) EnsureAsset(ctx context.Context, ticker, companyName string) (*models.Asset, error) {
	return ensureAsset(ctx, db.conn, ticker, companyName)
}

func ensureAsset(ctx context.Context, q querier, ticker, companyName string) (*models.Asset, error) {
	if ticker == "" {
		return nil, fmt.Errorf("failed to ensure asset: ticker is required")
	}
	query := `
		INSERT INTO assets (ticker, company_name)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (ticker) DO UPDATE SET
			company_name = COALESCE(assets.company_name, EXCLUDED.company_name)
		RETURNING asset_id, ticker, company_name
	`
	var a models.Asset
	var name sql.NullString
	err := q.QueryRowContext(ctx, query, ticker, companyName).Scan(&a.ID, &a.Ticker, &name)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure asset %s: %w", ticker, err)
	}
	a.CompanyName = name.String
	return &a, nil
}

// GetAssetByTicker retrieves an asset by ticker
func (db *DB) GetAssetByTicker(ctx context.Context, ticker string) (*models.Asset, error) {
	query := `SELECT asset_id, ticker, company_name FROM assets WHERE ticker = $1`
	var a models.Asset
	var name sql.NullString

	err := db.conn.QueryRowContext(ctx, query, ticker).Scan(&a.ID, &a.Ticker, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	a.CompanyName = name.String
	return &a, nil
}

// GetAllAssets retrieves every tracked asset ordered by id
func (db *DB) GetAllAssets(ctx context.Context) ([]*models.Asset, error) {
	query := `SELECT asset_id, ticker, company_name FROM assets ORDER BY asset_id ASC`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		var a models.Asset
		var name sql.NullString
		if err := rows.Scan(&a.ID, &a.Ticker, &name); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.CompanyName = name.String
		assets = append(assets, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assets: %w", err)
	}
	return assets, nil
}
