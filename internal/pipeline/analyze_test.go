package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/alphastream-pipeline/internal/analytics"
	"github.com/trogers1052/alphastream-pipeline/internal/database"
	"github.com/trogers1052/alphastream-pipeline/internal/metrics"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
)

func newTestAnalyzer(store *MockStore, opts ...Option) *Analyzer {
	opts = append([]Option{WithRetry(2, time.Millisecond)}, opts...)
	return NewAnalyzer(store, analytics.NewEngine(analytics.DefaultConfig()), opts...)
}

func TestAnalyzerRun_MixedAssets(t *testing.T) {
	store := NewMockStore()
	up := store.addAsset("NVDA", ramp(100, 1, 30)...)
	down := store.addAsset("TSLA", ramp(200, -1, 30)...)
	store.addAsset("NEW", ramp(50, 1, 5)...)

	pub := &MockPublisher{}
	cache := &MockCache{}
	a := newTestAnalyzer(store, WithPublisher(pub), WithCache(cache))

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &AnalysisReport{Analyzed: 2, Buy: 1, Hold: 1, Skipped: 1}, report)

	latest := baseDate.AddDate(0, 0, 29)
	require.Contains(t, store.signals[up.ID], latest)
	assert.Equal(t, models.SignalBuy, store.signals[up.ID][latest].SignalType)
	assert.Equal(t, models.SignalHold, store.signals[down.ID][latest].SignalType)
	assert.Len(t, store.signals, 2, "short history must not produce a signal")

	require.Len(t, store.indicators[up.ID], 2)
	assert.Equal(t, "SMA_20", store.indicators[up.ID][0].IndicatorType)
	assert.Equal(t, latest, store.indicators[up.ID][0].Date)
	assert.Equal(t, models.IndicatorVolatility, store.indicators[up.ID][1].IndicatorType)

	assert.Equal(t, []string{"NVDA:BUY", "TSLA:HOLD"}, pub.Signals)
	assert.Equal(t, 1, cache.Invalidations)
}

func TestAnalyzerRun_Idempotent(t *testing.T) {
	store := NewMockStore()
	asset := store.addAsset("AAPL", ramp(150, 0.5, 40)...)
	a := newTestAnalyzer(store)

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	first := make(map[time.Time]models.Signal)
	for d, s := range store.signals[asset.ID] {
		first[d] = s
	}

	_, err = a.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.signals[asset.ID], 1)
	assert.Equal(t, first, store.signals[asset.ID])
}

func TestAnalyzerRun_FailureDoesNotStopOthers(t *testing.T) {
	store := NewMockStore()
	bad := store.addAsset("BAD", ramp(10, 1, 25)...)
	good := store.addAsset("GOOD", ramp(10, 1, 25)...)
	store.historyErr[bad.ID] = errors.New("connection reset")

	report, err := newTestAnalyzer(store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Analyzed)
	assert.Len(t, store.signals[good.ID], 1)
}

func TestAnalyzerRun_ListFailureAborts(t *testing.T) {
	store := NewMockStore()
	store.listErr = errors.New("db down")
	cache := &MockCache{}

	report, err := newTestAnalyzer(store, WithCache(cache)).Run(context.Background())
	assert.Error(t, err)
	assert.Nil(t, report)
	assert.Zero(t, cache.Invalidations)
}

func TestAnalyzerRun_CancelledContext(t *testing.T) {
	store := NewMockStore()
	store.addAsset("AAPL", ramp(100, 1, 25)...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestAnalyzer(store).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, report.Analyzed)
	assert.Zero(t, store.UpsertCalls)
}

func TestAnalyzeAsset_RetriesTransientUpsertErrors(t *testing.T) {
	store := NewMockStore()
	asset := store.addAsset("AAPL", ramp(100, 1, 25)...)
	deadlock := &pq.Error{Code: "40P01", Message: "deadlock detected"}
	store.upsertErrs = []error{deadlock, fmt.Errorf("failed to upsert signal: %w", deadlock)}

	res, err := newTestAnalyzer(store).AnalyzeAsset(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, 3, store.UpsertCalls)
	assert.Equal(t, models.SignalBuy, res.Signal.SignalType)
	assert.NotZero(t, res.Signal.ID)
}

func TestAnalyzeAsset_GivesUpAfterMaxRetries(t *testing.T) {
	store := NewMockStore()
	asset := store.addAsset("AAPL", ramp(100, 1, 25)...)
	boom := &pq.Error{Code: "53100", Message: "could not extend file: No space left on device"}
	store.upsertErrs = []error{boom, boom, boom, boom}
	rec := metrics.New()

	_, err := newTestAnalyzer(store, WithMetrics(rec)).AnalyzeAsset(context.Background(), asset)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, store.UpsertCalls)
	assert.Empty(t, store.signals)
}

func TestAnalyzeAsset_ConstraintViolationNotRetried(t *testing.T) {
	store := NewMockStore()
	asset := store.addAsset("AAPL", ramp(100, 1, 25)...)
	fk := &pq.Error{Code: "23503", Message: "insert or update on table \"signals\" violates foreign key constraint"}
	store.upsertErrs = []error{fmt.Errorf("failed to upsert signal: %w", fk)}

	_, err := newTestAnalyzer(store).AnalyzeAsset(context.Background(), asset)
	var pqErr *pq.Error
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, pq.ErrorCode("23503"), pqErr.Code)
	assert.Equal(t, 1, store.UpsertCalls)
	assert.Empty(t, store.signals)
}

func TestAnalyzeAsset_InsufficientHistory(t *testing.T) {
	store := NewMockStore()
	asset := store.addAsset("IPO", ramp(10, 1, 19)...)

	_, err := newTestAnalyzer(store).AnalyzeAsset(context.Background(), asset)
	assert.ErrorIs(t, err, analytics.ErrInsufficientHistory)
	assert.Zero(t, store.UpsertCalls)
}

func TestAnalyzeAsset_PublishFailureIsNotFatal(t *testing.T) {
	store := NewMockStore()
	asset := store.addAsset("AAPL", ramp(100, 1, 25)...)
	pub := &MockPublisher{err: errors.New("broker down")}

	_, err := newTestAnalyzer(store, WithPublisher(pub)).AnalyzeAsset(context.Background(), asset)
	require.NoError(t, err)
	assert.Len(t, store.signals[asset.ID], 1)
}

func TestAnalyzeTicker(t *testing.T) {
	store := NewMockStore()
	store.addAsset("NVDA", ramp(100, 1, 25)...)
	store.addAsset("IPO", ramp(100, 1, 3)...)
	cache := &MockCache{err: errors.New("redis down")}
	a := newTestAnalyzer(store, WithCache(cache))

	require.NoError(t, a.AnalyzeTicker(context.Background(), "NVDA"))
	assert.Equal(t, 1, cache.Invalidations)

	require.NoError(t, a.AnalyzeTicker(context.Background(), "IPO"), "short history is skipped, not failed")

	err := a.AnalyzeTicker(context.Background(), "MISSING")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAnalyzerRun_MissingPriceRowsAreExcluded(t *testing.T) {
	store := NewMockStore()
	asset := store.addAsset("BTC-USD", ramp(100, 1, 22)...)
	store.prices[asset.ID][5].AdjClosePrice = decimal.Zero
	store.prices[asset.ID][21].AdjClosePrice = decimal.Zero

	report, err := newTestAnalyzer(store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &AnalysisReport{Analyzed: 1, Buy: 1}, report)

	latestUsable := baseDate.AddDate(0, 0, 20)
	require.Contains(t, store.signals[asset.ID], latestUsable)
	assert.Len(t, store.signals[asset.ID], 1)
}
