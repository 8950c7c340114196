package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IndicatorVolatility is the annualized standard deviation of daily returns
const IndicatorVolatility = "VOLATILITY_ANN"

// IndicatorSMA names the simple moving average over window days, e.g. SMA_20
func IndicatorSMA(window int) string {
	return fmt.Sprintf("SMA_%d", window)
}

// TechnicalIndicator is a value computed alongside an asset's signal for a trade date
type TechnicalIndicator struct {
	ID            int64           `json:"indicator_id"`
	AssetID       int             `json:"asset_id"`
	Date          time.Time       `json:"price_date"`
	IndicatorType string          `json:"indicator_type"`
	Value         decimal.Decimal `json:"value"`
}
