// Package analytics derives trend and risk signals from an asset's daily price series.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
)

// ErrInsufficientHistory is returned when a series is too short for the moving-average window.
var ErrInsufficientHistory = errors.New("insufficient price history")

// Config holds the engine parameters
type Config struct {
	Window             int
	MinObservations    int
	TradingDaysPerYear float64
}

// DefaultConfig returns the 20-day window over 252 trading days
func DefaultConfig() Config {
	return Config{
		Window:             20,
		MinObservations:    20,
		TradingDaysPerYear: 252,
	}
}

// Result is the engine output for one asset
type Result struct {
	Signal      models.Signal
	LatestPrice decimal.Decimal
	SMA         decimal.Decimal
	Window      int
	// Volatility is the annualized sample standard deviation of daily returns
	Volatility   float64
	Observations int
	Dropped      int
}

// Indicators returns the values behind the signal as storable indicator rows
func (r *Result) Indicators() []models.TechnicalIndicator {
	date := r.Signal.PriceDate
	return []models.TechnicalIndicator{
		{AssetID: r.Signal.AssetID, Date: date, IndicatorType: models.IndicatorSMA(r.Window), Value: r.SMA.Round(4)},
		{AssetID: r.Signal.AssetID, Date: date, IndicatorType: models.IndicatorVolatility, Value: decimal.NewFromFloat(r.Volatility).Round(4)},
	}
}

// Engine computes signals for one price series at a time. It holds no per-asset state.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine, filling zero fields from DefaultConfig.
// MinObservations is never allowed below Window so the latest SMA is always defined.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MinObservations < cfg.Window {
		cfg.MinObservations = cfg.Window
	}
	if cfg.TradingDaysPerYear <= 0 {
		cfg.TradingDaysPerYear = def.TradingDaysPerYear
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective engine parameters
func (e *Engine) Config() Config {
	return e.cfg
}

// Compute derives the signal for the latest date in series. The series must be sorted by
// date ascending. Rows with a non-positive price are excluded before any computation.
func (e *Engine) Compute(assetID int, series []models.DailyPrice) (*Result, error) {
	prices := make([]decimal.Decimal, 0, len(series))
	var latestDate time.Time
	for _, p := range series {
		if !p.AdjClosePrice.IsPositive() {
			continue
		}
		prices = append(prices, p.AdjClosePrice)
		latestDate = p.Date
	}
	dropped := len(series) - len(prices)

	if len(prices) < e.cfg.MinObservations {
		return nil, fmt.Errorf("%w: %d observations, need %d", ErrInsufficientHistory, len(prices), e.cfg.MinObservations)
	}

	sma := SimpleMovingAverage(prices, e.cfg.Window)
	latest := prices[len(prices)-1]
	latestSMA := sma[len(sma)-1].Decimal

	signalType := models.SignalHold
	if latest.GreaterThan(latestSMA) {
		signalType = models.SignalBuy
	}

	floats := make([]float64, len(prices))
	for i, p := range prices {
		floats[i] = p.InexactFloat64()
	}
	returns := DailyReturns(floats)
	sharpe := AnnualizedSharpe(returns, e.cfg.TradingDaysPerYear)
	volatility := SampleStdDev(returns) * math.Sqrt(e.cfg.TradingDaysPerYear)
	if math.IsNaN(volatility) || math.IsInf(volatility, 0) {
		volatility = 0
	}

	return &Result{
		Signal: models.Signal{
			AssetID:     assetID,
			PriceDate:   models.TradeDate(latestDate),
			SignalType:  signalType,
			SharpeRatio: decimal.NewFromFloat(sharpe).Round(2),
		},
		LatestPrice:  latest,
		SMA:          latestSMA,
		Window:       e.cfg.Window,
		Volatility:   volatility,
		Observations: len(prices),
		Dropped:      dropped,
	}, nil
}
