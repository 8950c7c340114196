package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trogers1052/alphastream-pipeline/internal/models"
	"github.com/trogers1052/alphastream-pipeline/internal/provider"
	"go.uber.org/zap"
)

// PriceFetcher pulls daily history for a ticker from the market-data provider
type PriceFetcher interface {
	FetchDaily(ctx context.Context, ticker string, from, to time.Time) (*provider.History, error)
}

// PriceStore merges fetched prices into the store
type PriceStore interface {
	MergeTickerPrices(ctx context.Context, ticker, companyName string, prices []models.DailyPrice) (*models.Asset, int64, error)
}

// IngestReport summarizes one ingestion pass over the watchlist
type IngestReport struct {
	Tickers      int
	Loaded       int
	Empty        int
	Failed       int
	RowsInserted int64
}

// Ingestor loads daily prices for a watchlist
type Ingestor struct {
	fetcher  PriceFetcher
	store    PriceStore
	lookback time.Duration
	now      func() time.Time
	runtime
}

// NewIngestor creates an Ingestor fetching the trailing lookback window.
// A non-positive lookback selects provider.DefaultLookback.
func NewIngestor(fetcher PriceFetcher, store PriceStore, lookback time.Duration, opts ...Option) *Ingestor {
	if lookback <= 0 {
		lookback = provider.DefaultLookback
	}
	return &Ingestor{
		fetcher:  fetcher,
		store:    store,
		lookback: lookback,
		now:      time.Now,
		runtime:  newRuntime(opts),
	}
}

// Run ingests each ticker in order. A ticker that fails is counted and the run moves on.
func (i *Ingestor) Run(ctx context.Context, tickers []string) (*IngestReport, error) {
	start := time.Now()
	defer i.metrics.ObserveDuration("ingest_run", start)

	report := &IngestReport{}
	for _, raw := range tickers {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ticker := strings.ToUpper(strings.TrimSpace(raw))
		if ticker == "" {
			continue
		}
		report.Tickers++

		res, err := i.IngestTicker(ctx, ticker)
		switch {
		case err != nil:
			report.Failed++
			i.log.Error("failed to ingest ticker", zap.String("ticker", ticker), zap.Error(err))
		case res.Empty:
			report.Empty++
		default:
			report.Loaded++
			report.RowsInserted += res.Inserted
		}
	}

	i.log.Info("ingestion complete",
		zap.Int("tickers", report.Tickers),
		zap.Int("loaded", report.Loaded),
		zap.Int("empty", report.Empty),
		zap.Int("failed", report.Failed),
		zap.Int64("rows_inserted", report.RowsInserted),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// TickerResult is the outcome of ingesting one ticker
type TickerResult struct {
	Inserted int64
	// Empty is set when the provider had no data and nothing was stored
	Empty bool
}

// IngestTicker fetches and stores one ticker's history. Prices already stored for a date are
// kept as they are.
func (i *Ingestor) IngestTicker(ctx context.Context, ticker string) (TickerResult, error) {
	start := time.Now()
	defer i.metrics.ObserveDuration("ingest_ticker", start)

	to := i.now().UTC()
	history, err := i.fetcher.FetchDaily(ctx, ticker, to.Add(-i.lookback), to)
	if err != nil {
		i.metrics.RecordError("fetch")
		return TickerResult{}, fmt.Errorf("failed to fetch %s: %w", ticker, err)
	}
	if history.Rejected > 0 {
		i.log.Warn("provider rows rejected", zap.String("ticker", ticker), zap.Int("rejected", history.Rejected))
	}
	if len(history.Bars) == 0 {
		i.log.Warn("no data found, skipping", zap.String("ticker", ticker))
		return TickerResult{Empty: true}, nil
	}

	prices := history.Prices()
	var asset *models.Asset
	var inserted int64
	err = i.retry(ctx, "merge_prices", func() error {
		var err error
		asset, inserted, err = i.store.MergeTickerPrices(ctx, ticker, history.CompanyName, prices)
		return err
	})
	if err != nil {
		i.metrics.RecordError("merge_prices")
		return TickerResult{}, fmt.Errorf("failed to store prices for %s: %w", ticker, err)
	}
	i.metrics.RecordPricesIngested(ticker, inserted)

	i.log.Info("prices loaded",
		zap.String("ticker", ticker),
		zap.Int("asset_id", asset.ID),
		zap.Int("fetched", len(prices)),
		zap.Int64("inserted", inserted))

	if i.publisher != nil {
		if err := i.publisher.PublishPricesIngested(ctx, asset, inserted); err != nil {
			i.metrics.RecordError("publish")
			i.log.Warn("failed to publish ingest event", zap.String("ticker", ticker), zap.Error(err))
		}
	}
	return TickerResult{Inserted: inserted}, nil
}
