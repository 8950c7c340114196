package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardRow is one asset's latest signal as shown on the dashboard
type DashboardRow struct {
	Ticker      string          `json:"ticker"`
	CompanyName string          `json:"company_name,omitempty"`
	PriceDate   time.Time       `json:"price_date"`
	SignalType  SignalType      `json:"signal_type"`
	SharpeRatio decimal.Decimal `json:"sharpe_ratio"`
}

// DashboardSummary holds the at-a-glance figures above the signal table
type DashboardSummary struct {
	AssetsTracked    int    `json:"assets_tracked"`
	TopSharpeTicker  string `json:"top_sharpe_ticker,omitempty"`
	ActiveBuySignals int    `json:"active_buy_signals"`
}

// Dashboard is the full payload served to dashboard clients
type Dashboard struct {
	Summary     DashboardSummary `json:"summary"`
	Rows        []DashboardRow   `json:"rows"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// NewDashboard builds the summary for rows already ordered by Sharpe ratio descending.
func NewDashboard(rows []DashboardRow, now time.Time) *Dashboard {
	if rows == nil {
		rows = []DashboardRow{}
	}
	summary := DashboardSummary{AssetsTracked: len(rows)}
	if len(rows) > 0 {
		summary.TopSharpeTicker = rows[0].Ticker
	}
	for _, r := range rows {
		if r.SignalType == SignalBuy {
			summary.ActiveBuySignals++
		}
	}
	return &Dashboard{Summary: summary, Rows: rows, GeneratedAt: now}
}
