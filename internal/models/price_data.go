package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyPrice represents one adjusted daily close for an asset
type DailyPrice struct {
	ID            int64           `json:"price_id"`
	AssetID       int             `json:"asset_id"`
	Date          time.Time       `json:"price_date"`
	AdjClosePrice decimal.Decimal `json:"adj_close_price"`
	Volume        int64           `json:"volume"`
}

// TradeDate truncates t to a calendar date in UTC
func TradeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
