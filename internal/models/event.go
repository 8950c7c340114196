package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pipeline event type constants
const (
	EventPricesIngested = "PRICES_INGESTED"
	EventSignalUpdated  = "SIGNAL_UPDATED"
)

// PipelineEvent represents a Kafka event emitted by the ingest and analysis runners
type PipelineEvent struct {
	EventType    string           `json:"event_type"`
	Ticker       string           `json:"ticker"`
	AssetID      int              `json:"asset_id"`
	PriceDate    *time.Time       `json:"price_date,omitempty"`
	SignalType   SignalType       `json:"signal_type,omitempty"`
	SharpeRatio  *decimal.Decimal `json:"sharpe_ratio,omitempty"`
	RowsInserted int64            `json:"rows_inserted,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}
