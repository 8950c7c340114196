package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/alphastream-pipeline/internal/models"
)

const upsertSignal = `
	INSERT INTO signals (asset_id, price_date, signal_type, sharpe_ratio)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (asset_id, price_date) DO UPDATE SET
		signal_type = EXCLUDED.signal_type,
		sharpe_ratio = EXCLUDED.sharpe_ratio
	RETURNING signal_id
`

// UpsertSignal writes the signal for (asset, date). An existing row has its type and Sharpe
// ratio overwritten; every other column, including max_drawdown, is left untouched.
func (db *DB) UpsertSignal(ctx context.Context, s *models.Signal) error {
	return upsertSignalWith(ctx, db.conn, s)
}

// UpsertSignalTx is UpsertSignal inside a caller-owned transaction
func (db *DB) UpsertSignalTx(ctx context.Context, tx *sql.Tx, s *models.Signal) error {
	return upsertSignalWith(ctx, tx, s)
}

func upsertSignalWith(ctx context.Context, q querier, s *models.Signal) error {
	if !s.SignalType.Valid() {
		return fmt.Errorf("failed to upsert signal: invalid signal type %q", s.SignalType)
	}
	s.PriceDate = models.TradeDate(s.PriceDate)
	err := q.QueryRowContext(ctx, upsertSignal,
		s.AssetID, s.PriceDate, string(s.SignalType), s.SharpeRatio.Round(2),
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert signal for asset %d: %w", s.AssetID, err)
	}
	return nil
}

// GetSignal retrieves the signal for an asset on a date
func (db *DB) GetSignal(ctx context.Context, assetID int, date time.Time) (*models.Signal, error) {
	query := `
		SELECT signal_id, asset_id, price_date, signal_type, sharpe_ratio, max_drawdown
		FROM signals
		WHERE asset_id = $1 AND price_date = $2
	`
	s, err := scanSignal(db.conn.QueryRowContext(ctx, query, assetID, models.TradeDate(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("signal for asset %d on %s: %w", assetID, date.Format("2006-01-02"), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}
	return s, nil
}

// GetLatestSignal retrieves the most recent signal for an asset
func (db *DB) GetLatestSignal(ctx context.Context, assetID int) (*models.Signal, error) {
	query := `
		SELECT signal_id, asset_id, price_date, signal_type, sharpe_ratio, max_drawdown
		FROM signals
		WHERE asset_id = $1
		ORDER BY price_date DESC
		LIMIT 1
	`
	s, err := scanSignal(db.conn.QueryRowContext(ctx, query, assetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("signal for asset %d: %w", assetID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest signal: %w", err)
	}
	return s, nil
}

// GetSignalsByAsset retrieves signal history for an asset, newest first
func (db *DB) GetSignalsByAsset(ctx context.Context, assetID int, limit int) ([]*models.Signal, error) {
	query := `
		SELECT signal_id, asset_id, price_date, signal_type, sharpe_ratio, max_drawdown
		FROM signals
		WHERE asset_id = $1
		ORDER BY price_date DESC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get signals: %w", err)
	}
	defer rows.Close()

	var signals []*models.Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate signals: %w", err)
	}
	return signals, nil
}

// CountSignals returns how many signal rows exist for (asset, date)
func (db *DB) CountSignals(ctx context.Context, assetID int, date time.Time) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM signals WHERE asset_id = $1 AND price_date = $2`,
		assetID, models.TradeDate(date),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count signals: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (*models.Signal, error) {
	var s models.Signal
	var signalType string
	var sharpe, drawdown sql.NullString

	if err := row.Scan(&s.ID, &s.AssetID, &s.PriceDate, &signalType, &sharpe, &drawdown); err != nil {
		return nil, err
	}
	s.PriceDate = models.TradeDate(s.PriceDate)
	s.SignalType = models.SignalType(signalType)
	if sharpe.Valid {
		if err := s.SharpeRatio.Scan(sharpe.String); err != nil {
			return nil, err
		}
	}
	if err := s.MaxDrawdown.Scan(nullableString(drawdown)); err != nil {
		return nil, err
	}
	return &s, nil
}

func nullableString(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}
