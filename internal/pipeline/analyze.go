package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/alphastream-pipeline/internal/analytics"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
	"go.uber.org/zap"
)

// SignalStore is the persistence the Analyzer reads from and writes to
type SignalStore interface {
	GetAllAssets(ctx context.Context) ([]*models.Asset, error)
	GetAssetByTicker(ctx context.Context, ticker string) (*models.Asset, error)
	GetPriceHistory(ctx context.Context, assetID int) ([]models.DailyPrice, error)
	SaveAnalysis(ctx context.Context, s *models.Signal, indicators []models.TechnicalIndicator) error
}

// AnalysisReport summarizes one pass over all assets
type AnalysisReport struct {
	Analyzed int
	Buy      int
	Hold     int
	Skipped  int
	Failed   int
}

// Analyzer computes and stores the latest signal for each asset
type Analyzer struct {
	store  SignalStore
	engine *analytics.Engine
	runtime
}

// NewAnalyzer creates an Analyzer
func NewAnalyzer(store SignalStore, engine *analytics.Engine, opts ...Option) *Analyzer {
	return &Analyzer{
		store:   store,
		engine:  engine,
		runtime: newRuntime(opts),
	}
}

// Run analyzes every stored asset in turn. One asset failing does not stop the others;
// only a failure to list assets or a cancelled context aborts the run.
func (a *Analyzer) Run(ctx context.Context) (*AnalysisReport, error) {
	start := time.Now()
	defer a.metrics.ObserveDuration("analyze_run", start)

	assets, err := a.store.GetAllAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	report := &AnalysisReport{}
	// Signals already written stay visible even if the run is cut short.
	defer a.invalidateCache(context.WithoutCancel(ctx))

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := a.AnalyzeAsset(ctx, asset)
		switch {
		case errors.Is(err, analytics.ErrInsufficientHistory):
			report.Skipped++
			a.log.Warn("skipping asset", zap.String("ticker", asset.Ticker), zap.Error(err))
		case err != nil:
			report.Failed++
			a.log.Error("failed to analyze asset", zap.String("ticker", asset.Ticker), zap.Error(err))
		default:
			report.Analyzed++
			if res.Signal.SignalType == models.SignalBuy {
				report.Buy++
			} else {
				report.Hold++
			}
		}
	}

	a.log.Info("analysis complete",
		zap.Int("assets", len(assets)),
		zap.Int("analyzed", report.Analyzed),
		zap.Int("buy", report.Buy),
		zap.Int("hold", report.Hold),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// AnalyzeAsset loads the asset's history, computes its signal and upserts it together with
// the indicators it was derived from.
// Returns analytics.ErrInsufficientHistory (wrapped) when there are too few prices.
func (a *Analyzer) AnalyzeAsset(ctx context.Context, asset *models.Asset) (*analytics.Result, error) {
	start := time.Now()
	defer a.metrics.ObserveDuration("analyze_asset", start)

	history, err := a.store.GetPriceHistory(ctx, asset.ID)
	if err != nil {
		a.metrics.RecordError("load_history")
		return nil, fmt.Errorf("failed to load price history for %s: %w", asset.Ticker, err)
	}

	res, err := a.engine.Compute(asset.ID, history)
	if err != nil {
		if errors.Is(err, analytics.ErrInsufficientHistory) {
			a.metrics.RecordSkipped()
		}
		return nil, fmt.Errorf("%s: %w", asset.Ticker, err)
	}
	if res.Dropped > 0 {
		a.log.Warn("excluded non-positive prices",
			zap.String("ticker", asset.Ticker),
			zap.Int("dropped", res.Dropped))
	}

	signal := res.Signal
	indicators := res.Indicators()
	err = a.retry(ctx, "upsert_signal", func() error {
		return a.store.SaveAnalysis(ctx, &signal, indicators)
	})
	if err != nil {
		a.metrics.RecordError("upsert_signal")
		return nil, fmt.Errorf("failed to store signal for %s: %w", asset.Ticker, err)
	}
	res.Signal = signal
	a.metrics.RecordSignal(string(signal.SignalType))

	a.log.Info("signal updated",
		zap.String("ticker", asset.Ticker),
		zap.Time("price_date", signal.PriceDate),
		zap.String("signal", string(signal.SignalType)),
		zap.String("sharpe_ratio", signal.SharpeRatio.StringFixed(2)),
		zap.String("latest_price", res.LatestPrice.String()),
		zap.String("sma", res.SMA.StringFixed(4)))

	if a.publisher != nil {
		if err := a.publisher.PublishSignalUpdated(ctx, asset.Ticker, &signal); err != nil {
			a.metrics.RecordError("publish")
			a.log.Warn("failed to publish signal event", zap.String("ticker", asset.Ticker), zap.Error(err))
		}
	}
	return res, nil
}

// AnalyzeTicker re-analyzes a single ticker, e.g. after its prices were ingested.
// Too little history is logged and not treated as an error.
func (a *Analyzer) AnalyzeTicker(ctx context.Context, ticker string) error {
	asset, err := a.store.GetAssetByTicker(ctx, ticker)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", ticker, err)
	}

	_, err = a.AnalyzeAsset(ctx, asset)
	if errors.Is(err, analytics.ErrInsufficientHistory) {
		a.log.Warn("skipping asset", zap.String("ticker", ticker), zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	a.invalidateCache(ctx)
	return nil
}
