package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/alphastream-pipeline/internal/database"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
	"github.com/trogers1052/alphastream-pipeline/internal/provider"
)

// MockStore is an in-memory SignalStore and PriceStore
type MockStore struct {
	mu         sync.Mutex
	assets     []*models.Asset
	prices     map[int][]models.DailyPrice
	signals    map[int]map[time.Time]models.Signal
	indicators map[int][]models.TechnicalIndicator

	historyErr  map[int]error
	upsertErrs  []error // consumed one per SaveAnalysis call
	mergeErr    error
	listErr     error
	UpsertCalls int
	MergeCalls  int
}

func NewMockStore() *MockStore {
	return &MockStore{
		prices:     make(map[int][]models.DailyPrice),
		signals:    make(map[int]map[time.Time]models.Signal),
		indicators: make(map[int][]models.TechnicalIndicator),
		historyErr: make(map[int]error),
	}
}

func (m *MockStore) addAsset(ticker string, prices ...float64) *models.Asset {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &models.Asset{ID: len(m.assets) + 1, Ticker: ticker}
	m.assets = append(m.assets, a)
	m.prices[a.ID] = series(a.ID, prices...)
	return a
}

func (m *MockStore) GetAllAssets(_ context.Context) ([]*models.Asset, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.assets, nil
}

func (m *MockStore) GetAssetByTicker(_ context.Context, ticker string) (*models.Asset, error) {
	for _, a := range m.assets {
		if a.Ticker == ticker {
			return a, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *MockStore) GetPriceHistory(_ context.Context, assetID int) ([]models.DailyPrice, error) {
	if err := m.historyErr[assetID]; err != nil {
		return nil, err
	}
	return m.prices[assetID], nil
}

func (m *MockStore) SaveAnalysis(_ context.Context, s *models.Signal, indicators []models.TechnicalIndicator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if len(m.upsertErrs) > 0 {
		err := m.upsertErrs[0]
		m.upsertErrs = m.upsertErrs[1:]
		if err != nil {
			return err
		}
	}
	if m.signals[s.AssetID] == nil {
		m.signals[s.AssetID] = make(map[time.Time]models.Signal)
	}
	existing, ok := m.signals[s.AssetID][s.PriceDate]
	if ok {
		s.ID = existing.ID
	} else {
		s.ID = int64(m.countSignals() + 1)
	}
	m.signals[s.AssetID][s.PriceDate] = *s
	m.indicators[s.AssetID] = indicators
	return nil
}

func (m *MockStore) countSignals() int {
	n := 0
	for _, byDate := range m.signals {
		n += len(byDate)
	}
	return n
}

func (m *MockStore) MergeTickerPrices(_ context.Context, ticker, companyName string, prices []models.DailyPrice) (*models.Asset, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MergeCalls++
	if m.mergeErr != nil {
		return nil, 0, m.mergeErr
	}

	var asset *models.Asset
	for _, a := range m.assets {
		if a.Ticker == ticker {
			asset = a
		}
	}
	if asset == nil {
		asset = &models.Asset{ID: len(m.assets) + 1, Ticker: ticker, CompanyName: companyName}
		m.assets = append(m.assets, asset)
	}

	have := make(map[time.Time]bool)
	for _, p := range m.prices[asset.ID] {
		have[p.Date] = true
	}
	var inserted int64
	for _, p := range prices {
		if have[p.Date] {
			continue
		}
		p.AssetID = asset.ID
		m.prices[asset.ID] = append(m.prices[asset.ID], p)
		have[p.Date] = true
		inserted++
	}
	return asset, inserted, nil
}

// MockPublisher records published events
type MockPublisher struct {
	mu      sync.Mutex
	Signals []string
	Ingests map[string]int64
	err     error
}

func (p *MockPublisher) PublishPricesIngested(_ context.Context, asset *models.Asset, inserted int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Ingests == nil {
		p.Ingests = make(map[string]int64)
	}
	p.Ingests[asset.Ticker] = inserted
	return p.err
}

func (p *MockPublisher) PublishSignalUpdated(_ context.Context, ticker string, s *models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Signals = append(p.Signals, fmt.Sprintf("%s:%s", ticker, s.SignalType))
	return p.err
}

// MockCache counts invalidations
type MockCache struct {
	Invalidations int
	err           error
}

func (c *MockCache) Invalidate(_ context.Context) error {
	c.Invalidations++
	return c.err
}

// MockFetcher serves canned provider histories
type MockFetcher struct {
	histories map[string]*provider.History
	errs      map[string]error
	Calls     []string
	LastFrom  time.Time
	LastTo    time.Time
}

func (f *MockFetcher) FetchDaily(_ context.Context, ticker string, from, to time.Time) (*provider.History, error) {
	f.Calls = append(f.Calls, ticker)
	f.LastFrom, f.LastTo = from, to
	if err := f.errs[ticker]; err != nil {
		return nil, err
	}
	if h, ok := f.histories[ticker]; ok {
		return h, nil
	}
	return &provider.History{Ticker: ticker}, nil
}

var baseDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func series(assetID int, prices ...float64) []models.DailyPrice {
	out := make([]models.DailyPrice, len(prices))
	for i, p := range prices {
		out[i] = models.DailyPrice{
			AssetID:       assetID,
			Date:          baseDate.AddDate(0, 0, i),
			AdjClosePrice: decimal.NewFromFloat(p),
			Volume:        1000,
		}
	}
	return out
}

func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func bars(prices ...float64) []provider.Bar {
	out := make([]provider.Bar, len(prices))
	for i, p := range prices {
		out[i] = provider.Bar{Date: baseDate.AddDate(0, 0, i), AdjClose: p, Volume: 500}
	}
	return out
}
