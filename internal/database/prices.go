package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
)

const insertPriceIfAbsent = `
	INSERT INTO daily_prices (asset_id, price_date, adj_close_price, volume)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (asset_id, price_date) DO NOTHING
`

// InsertPricesIfAbsent stores prices for an asset in one transaction.
// Rows whose (asset, date) already exists are left untouched. Returns the number inserted.
func (db *DB) InsertPricesIfAbsent(ctx context.Context, assetID int, prices []models.DailyPrice) (int64, error) {
	var inserted int64
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := insertPricesIfAbsent(ctx, tx, assetID, prices)
		inserted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// MergeTickerPrices ensures the asset exists and inserts its new prices, all in one transaction
func (db *DB) MergeTickerPrices(ctx context.Context, ticker, companyName string, prices []models.DailyPrice) (*models.Asset, int64, error) {
	var asset *models.Asset
	var inserted int64
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		a, err := ensureAsset(ctx, tx, ticker, companyName)
		if err != nil {
			return err
		}
		n, err := insertPricesIfAbsent(ctx, tx, a.ID, prices)
		if err != nil {
			return err
		}
		asset, inserted = a, n
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return asset, inserted, nil
}

func insertPricesIfAbsent(ctx context.Context, q querier, assetID int, prices []models.DailyPrice) (int64, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	stmt, err := q.PrepareContext(ctx, insertPriceIfAbsent)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, p := range prices {
		result, err := stmt.ExecContext(ctx, assetID, models.TradeDate(p.Date), p.AdjClosePrice, p.Volume)
		if err != nil {
			return 0, fmt.Errorf("failed to insert price for asset %d on %s: %w", assetID, p.Date.Format("2006-01-02"), err)
		}
		n, _ := result.RowsAffected()
		inserted += n
	}
	return inserted, nil
}

// GetPriceHistory retrieves the full price series for an asset, ordered by date ascending
func (db *DB) GetPriceHistory(ctx context.Context, assetID int) ([]models.DailyPrice, error) {
	query := `
		SELECT price_id, asset_id, price_date, adj_close_price, volume
		FROM daily_prices
		WHERE asset_id = $1
		ORDER BY price_date ASC
	`
	return scanPrices(db.conn.QueryContext(ctx, query, assetID))
}

// GetRecentPrices retrieves the latest prices for an asset, ordered by date descending
func (db *DB) GetRecentPrices(ctx context.Context, assetID int, limit int) ([]models.DailyPrice, error) {
	query := `
		SELECT price_id, asset_id, price_date, adj_close_price, volume
		FROM daily_prices
		WHERE asset_id = $1
		ORDER BY price_date DESC
		LIMIT $2
	`
	return scanPrices(db.conn.QueryContext(ctx, query, assetID, limit))
}

// GetPriceByDate retrieves the price for an asset on a specific date
func (db *DB) GetPriceByDate(ctx context.Context, assetID int, date time.Time) (*models.DailyPrice, error) {
	query := `
		SELECT price_id, asset_id, price_date, adj_close_price, volume
		FROM daily_prices
		WHERE asset_id = $1 AND price_date = $2
	`
	p, err := scanPrice(db.conn.QueryRowContext(ctx, query, assetID, models.TradeDate(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("price for asset %d on %s: %w", assetID, date.Format("2006-01-02"), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price: %w", err)
	}
	return &p, nil
}

// CountPrices returns the number of stored prices for an asset
func (db *DB) CountPrices(ctx context.Context, assetID int) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_prices WHERE asset_id = $1`, assetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return n, nil
}

func scanPrices(rows *sql.Rows, err error) ([]models.DailyPrice, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}
	defer rows.Close()

	var prices []models.DailyPrice
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prices: %w", err)
	}
	return prices, nil
}

// scanPrice reads one price row. A NULL price reads as zero, which the engine excludes as
// non-positive, and a NULL volume reads as zero.
func scanPrice(row rowScanner) (models.DailyPrice, error) {
	var p models.DailyPrice
	var price decimal.NullDecimal
	var volume sql.NullInt64
	if err := row.Scan(&p.ID, &p.AssetID, &p.Date, &price, &volume); err != nil {
		return models.DailyPrice{}, err
	}
	p.Date = models.TradeDate(p.Date)
	if price.Valid {
		p.AdjClosePrice = price.Decimal
	}
	p.Volume = volume.Int64
	return p, nil
}
