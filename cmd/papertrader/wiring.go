package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/newthinker/papertrader/internal/app"
	"github.com/newthinker/papertrader/internal/config"
	"github.com/newthinker/papertrader/internal/journal"
	"github.com/newthinker/papertrader/internal/llm/factory"
	"github.com/newthinker/papertrader/internal/logger"
	"github.com/newthinker/papertrader/internal/marketdata"
	"github.com/newthinker/papertrader/internal/marketdata/eastmoney"
	"github.com/newthinker/papertrader/internal/metrics"
	"github.com/newthinker/papertrader/internal/review"
	"github.com/newthinker/papertrader/internal/storage/blob"
	chstore "github.com/newthinker/papertrader/internal/storage/clickhouse"
	"github.com/newthinker/papertrader/internal/storage/migrations"
	"github.com/newthinker/papertrader/internal/storage/postgres"
	"github.com/newthinker/papertrader/internal/storage/session"
)

// runtime is the assembled application and what must be released with it.
type runtime struct {
	cfg     *config.Config
	log     *zap.Logger
	app     *app.App
	metrics *metrics.Registry
	closers []func()
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.log.Sync()
}

// loadConfig reads the config file, or falls back to defaults.
func loadConfig() (*config.Config, bool, error) {
	if cfgFile == "" {
		return config.Defaults(), false, nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, true, nil
}

// newRuntime loads and validates config, then builds every component it
// selects.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, fromFile, err := loadConfig()
	if err != nil {
		return nil, err
	}

	mode := cfg.Server.Mode
	if debug {
		mode = "debug"
	}
	log := logger.Must(logger.ForMode(mode))
	if !fromFile {
		log.Debug("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	rt := &runtime{cfg: cfg, log: log}
	if err := rt.build(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) build(ctx context.Context) error {
	cfg := rt.cfg

	if cfg.Metrics.Enabled {
		rt.metrics = metrics.NewRegistry()
	}

	blobs, err := rt.openBlob()
	if err != nil {
		return err
	}

	sessions, err := rt.openSessions(ctx, blobs)
	if err != nil {
		return err
	}

	barStore, err := rt.openBars(ctx)
	if err != nil {
		return err
	}

	var opts []marketdata.CacheOption
	if rt.metrics != nil {
		opts = append(opts, marketdata.WithObserver(rt.metrics.RecordMarketData))
	}
	upstream := eastmoney.New(eastmoneyOptions(cfg.MarketData)...)
	bars := marketdata.NewCachedProvider(upstream, barStore, rt.log.Named("marketdata"), opts...)

	var reviewer *review.Reviewer
	if cfg.LLM.Provider != "" {
		provider, err := factory.New(ctx, cfg.LLM)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}
		reviewer = review.New(provider, rt.log.Named("review"), review.Config{Timeout: cfg.LLM.Timeout})
	}

	var j *journal.Journal
	if blobs != nil {
		j = journal.New(journal.NewBlobStore(blobs),
			journal.WithLotSize(cfg.Journal.LotSize),
			journal.WithLogger(rt.log.Named("journal")),
		)
	}

	rt.app = app.New(cfg.Simulation, app.Deps{
		Sessions: sessions,
		Bars:     bars,
		Reviewer: reviewer,
		Journal:  j,
		Metrics:  rt.metrics,
		Logger:   rt.log.Named("app"),
	})
	return nil
}

func eastmoneyOptions(cfg config.MarketDataConfig) []eastmoney.Option {
	var opts []eastmoney.Option
	if cfg.BaseURL != "" {
		opts = append(opts, eastmoney.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, eastmoney.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return opts
}

func (rt *runtime) openBlob() (blob.Storage, error) {
	c := rt.cfg.Storage.Blob
	switch c.Type {
	case "":
		return nil, nil
	case "localfs":
		s, err := blob.NewLocalFS(c.Path)
		if err != nil {
			return nil, fmt.Errorf("opening local blob store: %w", err)
		}
		return s, nil
	case "s3":
		s, err := blob.NewS3(blob.S3Config{
			Bucket:    c.S3.Bucket,
			Endpoint:  c.S3.Endpoint,
			Region:    c.S3.Region,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
			Prefix:    c.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("opening s3 blob store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown blob storage type: %s", c.Type)
	}
}

func (rt *runtime) openSessions(ctx context.Context, blobs blob.Storage) (session.Store, error) {
	c := rt.cfg.Storage.Sessions
	switch c.Type {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "blob":
		if blobs == nil {
			return nil, fmt.Errorf("blob session store needs storage.blob configured")
		}
		return session.NewBlobStore(blobs, rt.log.Named("sessions")), nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		if rt.cfg.Storage.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return nil, err
			}
			rt.log.Info("postgres migrations applied")
		}
		return postgres.NewSessionStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown session storage type: %s", c.Type)
	}
}

// openBars returns the bar cache; nil disables caching.
func (rt *runtime) openBars(ctx context.Context) (marketdata.BarStore, error) {
	c := rt.cfg.Storage.Bars
	switch c.Type {
	case "none":
		return nil, nil
	case "", "memory":
		return marketdata.NewMemoryBarStore(), nil
	case "clickhouse":
		conn, err := chstore.NewConn(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { conn.Close() })
		if rt.cfg.Storage.Migrate {
			if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
				return nil, err
			}
			rt.log.Info("clickhouse migrations applied")
		}
		return chstore.NewBarStore(conn), nil
	default:
		return nil, fmt.Errorf("unknown bar storage type: %s", c.Type)
	}
}
