package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType is the trend-following decision for an asset on a date
type SignalType string

// Signal type constants
const (
	SignalBuy  SignalType = "BUY"
	SignalHold SignalType = "HOLD"
)

// Valid reports whether s is one of the known signal types
func (s SignalType) Valid() bool {
	return s == SignalBuy || s == SignalHold
}

// Signal represents the derived metrics for an asset on its latest trade date
type Signal struct {
	ID          int64               `json:"signal_id"`
	AssetID     int                 `json:"asset_id"`
	PriceDate   time.Time           `json:"price_date"`
	SignalType  SignalType          `json:"signal_type"`
	SharpeRatio decimal.Decimal     `json:"sharpe_ratio"`
	MaxDrawdown decimal.NullDecimal `json:"max_drawdown"`
}
