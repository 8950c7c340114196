package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/trogers1052/alphastream-pipeline/internal/analytics"
	"github.com/trogers1052/alphastream-pipeline/internal/api"
	"github.com/trogers1052/alphastream-pipeline/internal/cache"
	"github.com/trogers1052/alphastream-pipeline/internal/config"
	"github.com/trogers1052/alphastream-pipeline/internal/database"
	"github.com/trogers1052/alphastream-pipeline/internal/kafka"
	"github.com/trogers1052/alphastream-pipeline/internal/logger"
	"github.com/trogers1052/alphastream-pipeline/internal/metrics"
	"github.com/trogers1052/alphastream-pipeline/internal/pipeline"
	"github.com/trogers1052/alphastream-pipeline/internal/provider"
	"go.uber.org/zap"
)

const usage = `usage: alphastream <command> [flags]

commands:
  migrate   apply database migrations
  ingest    load daily prices for the watchlist
  analyze   compute and store the latest signal for every asset
  run       ingest then analyze
  serve     serve the dashboard and API
  consume   re-analyze assets as PRICES_INGESTED events arrive
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	log, err := logger.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	app := &app{cfg: cfg, log: log, metrics: metrics.New()}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "migrate":
		err = app.migrate()
	case "ingest":
		err = app.ingest(ctx, args)
	case "analyze":
		err = app.analyze(ctx)
	case "run":
		if err = app.ingest(ctx, args); err == nil {
			err = app.analyze(ctx)
		}
	case "serve":
		err = app.serve(ctx)
	case "consume":
		err = app.consume(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	app.close()
	if err != nil {
		log.Error("command failed", zap.String("command", cmd), zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Recorder

	db       *database.DB
	producer *kafka.Producer
	cache    *cache.DashboardCache
}

func (a *app) database() (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.New(a.cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	a.log.Info("database connection established", zap.String("host", a.cfg.Database.Host))
	a.db = db
	return db, nil
}

// pipelineOptions wires the optional Kafka producer and Redis cache
func (a *app) pipelineOptions() []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithLogger(a.log),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithRetry(a.cfg.Analysis.UpsertRetries, 200*time.Millisecond),
	}
	if a.cfg.Kafka.Enabled {
		if a.producer == nil {
			a.producer = kafka.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
		}
		opts = append(opts, pipeline.WithPublisher(a.producer))
	}
	if c := a.dashboardCache(); c != nil {
		opts = append(opts, pipeline.WithCache(c))
	}
	return opts
}

func (a *app) dashboardCache() *cache.DashboardCache {
	if !a.cfg.Redis.Enabled {
		return nil
	}
	if a.cache == nil {
		a.cache = cache.NewDashboardCache(cache.RedisConfig{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			TTL:      a.cfg.Redis.TTL,
		})
	}
	return a.cache
}

func (a *app) migrate() error {
	db, err := a.database()
	if err != nil {
		return err
	}
	if err := db.Migrate(a.cfg.Database.MigrationsPath); err != nil {
		return err
	}
	version, dirty, err := db.MigrationVersion(a.cfg.Database.MigrationsPath)
	if err != nil {
		return err
	}
	a.log.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func (a *app) ingest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	tickers := fs.String("tickers", "", "comma-separated tickers (default: WATCHLIST)")
	lookback := fs.Duration("lookback", a.cfg.Provider.Lookback, "history window to fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	watchlist := a.cfg.Watchlist
	if *tickers != "" {
		watchlist = strings.Split(*tickers, ",")
	}

	db, err := a.database()
	if err != nil {
		return err
	}
	client := provider.NewClient(a.cfg.Provider.BaseURL, a.cfg.Provider.Timeout)
	ingestor := pipeline.NewIngestor(client, db, *lookback, a.pipelineOptions()...)

	a.log.Info("starting ingestion", zap.Strings("tickers", watchlist))
	report, err := ingestor.Run(ctx, watchlist)
	if err != nil {
		return err
	}
	if report.Failed > 0 && report.Loaded == 0 {
		return fmt.Errorf("all %d tickers failed to ingest", report.Failed)
	}
	return nil
}

func (a *app) newAnalyzer() (*pipeline.Analyzer, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	engine := analytics.NewEngine(analytics.Config{
		Window:             a.cfg.Analysis.Window,
		MinObservations:    a.cfg.Analysis.MinObservations,
		TradingDaysPerYear: a.cfg.Analysis.TradingDaysPerYear,
	})
	return pipeline.NewAnalyzer(db, engine, a.pipelineOptions()...), nil
}

func (a *app) analyze(ctx context.Context) error {
	analyzer, err := a.newAnalyzer()
	if err != nil {
		return err
	}
	_, err = analyzer.Run(ctx)
	return err
}

func (a *app) consume(ctx context.Context) error {
	if !a.cfg.Kafka.Enabled {
		return errors.New("consume requires KAFKA_ENABLED=true")
	}
	analyzer, err := a.newAnalyzer()
	if err != nil {
		return err
	}
	consumer := kafka.NewConsumer(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic, a.cfg.Kafka.GroupID, analyzer, a.log)
	return consumer.Start(ctx)
}

func (a *app) serve(ctx context.Context) error {
	db, err := a.database()
	if err != nil {
		return err
	}

	var dashCache api.DashboardCache
	if c := a.dashboardCache(); c != nil {
		if err := c.Ping(ctx); err != nil {
			a.log.Warn("redis unavailable, dashboard served from database", zap.Error(err))
		}
		dashCache = c
	}

	handler := api.NewHandler(db, dashCache, a.metrics, a.log)
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           api.SetupRoutes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *app) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("failed to close kafka producer", zap.Error(err))
		}
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
