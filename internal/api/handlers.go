package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/trogers1052/alphastream-pipeline/internal/cache"
	"github.com/trogers1052/alphastream-pipeline/internal/database"
	"github.com/trogers1052/alphastream-pipeline/internal/metrics"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
	"go.uber.org/zap"
)

const (
	defaultSignalLimit = 30
	defaultPriceLimit  = 60
	maxLimit           = 1000
)

// Store is the read side of the database used by the dashboard
type Store interface {
	Ping(ctx context.Context) error
	GetDashboardRows(ctx context.Context) ([]models.DashboardRow, error)
	GetAllAssets(ctx context.Context) ([]*models.Asset, error)
	GetAssetByTicker(ctx context.Context, ticker string) (*models.Asset, error)
	GetSignalsByAsset(ctx context.Context, assetID int, limit int) ([]*models.Signal, error)
	GetRecentPrices(ctx context.Context, assetID int, limit int) ([]models.DailyPrice, error)
	GetLatestIndicators(ctx context.Context, assetID int) ([]models.TechnicalIndicator, error)
}

// DashboardCache holds the last dashboard payload between signal updates
type DashboardCache interface {
	Get(ctx context.Context) (*models.Dashboard, error)
	Set(ctx context.Context, d *models.Dashboard) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store   Store
	cache   DashboardCache
	metrics *metrics.Recorder
	log     *zap.Logger
	now     func() time.Time
}

// NewHandler creates a new Handler. cache and rec may be nil.
func NewHandler(store Store, cache DashboardCache, rec *metrics.Recorder, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:   store,
		cache:   cache,
		metrics: rec,
		log:     log,
		now:     time.Now,
	}
}

// GetDashboard handles GET /api/v1/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard(r.Context())
	if err != nil {
		h.log.Error("failed to load dashboard", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	respondJSON(w, http.StatusOK, d)
}

// dashboard serves from the cache when it can and falls back to the database
func (h *Handler) dashboard(ctx context.Context) (*models.Dashboard, error) {
	if h.cache != nil {
		d, err := h.cache.Get(ctx)
		switch {
		case err == nil:
			h.metrics.RecordCache("hit")
			return d, nil
		case errors.Is(err, cache.ErrCacheMiss):
			h.metrics.RecordCache("miss")
		default:
			h.metrics.RecordCache("error")
			h.log.Warn("dashboard cache unavailable", zap.Error(err))
		}
	}

	rows, err := h.store.GetDashboardRows(ctx)
	if err != nil {
		return nil, err
	}
	d := models.NewDashboard(rows, h.now().UTC())

	if h.cache != nil {
		if err := h.cache.Set(ctx, d); err != nil {
			h.log.Warn("failed to cache dashboard", zap.Error(err))
		}
	}
	return d, nil
}

// GetAllAssets handles GET /api/v1/assets
func (h *Handler) GetAllAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.store.GetAllAssets(r.Context())
	if err != nil {
		h.log.Error("failed to list assets", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}
	if assets == nil {
		assets = []*models.Asset{}
	}

	respondJSON(w, http.StatusOK, assets)
}

// GetAssetSignals handles GET /api/v1/assets/{ticker}/signals
func (h *Handler) GetAssetSignals(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.lookupAsset(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r, defaultSignalLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	signals, err := h.store.GetSignalsByAsset(r.Context(), asset.ID, limit)
	if err != nil {
		h.log.Error("failed to get signals", zap.String("ticker", asset.Ticker), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get signals")
		return
	}
	if signals == nil {
		signals = []*models.Signal{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"asset":   asset,
		"signals": signals,
	})
}

// GetAssetPrices handles GET /api/v1/assets/{ticker}/prices
func (h *Handler) GetAssetPrices(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.lookupAsset(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r, defaultPriceLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	prices, err := h.store.GetRecentPrices(r.Context(), asset.ID, limit)
	if err != nil {
		h.log.Error("failed to get prices", zap.String("ticker", asset.Ticker), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get prices")
		return
	}
	if prices == nil {
		prices = []models.DailyPrice{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"asset":  asset,
		"prices": prices,
	})
}

// GetAssetIndicators handles GET /api/v1/assets/{ticker}/indicators
func (h *Handler) GetAssetIndicators(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.lookupAsset(w, r)
	if !ok {
		return
	}

	indicators, err := h.store.GetLatestIndicators(r.Context(), asset.ID)
	if err != nil {
		h.log.Error("failed to get indicators", zap.String("ticker", asset.Ticker), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get indicators")
		return
	}
	if indicators == nil {
		indicators = []models.TechnicalIndicator{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"asset":      asset,
		"indicators": indicators,
	})
}

func (h *Handler) lookupAsset(w http.ResponseWriter, r *http.Request) (*models.Asset, bool) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	asset, err := h.store.GetAssetByTicker(r.Context(), ticker)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "asset not found: "+ticker)
		return nil, false
	}
	if err != nil {
		h.log.Error("failed to get asset", zap.String("ticker", ticker), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get asset")
		return nil, false
	}
	return asset, true
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
