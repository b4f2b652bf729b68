package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"altcoin-screener/config"
	"altcoin-screener/internal/api"
	"altcoin-screener/internal/binance"
	"altcoin-screener/internal/cache"
	"altcoin-screener/internal/collector"
	"altcoin-screener/internal/database"
	"altcoin-screener/internal/events"
	"altcoin-screener/internal/marketdata"
	"altcoin-screener/internal/monitor"
	"altcoin-screener/internal/notification"
	"altcoin-screener/internal/screener"
	"altcoin-screener/internal/simtrading"
	"altcoin-screener/internal/strategy"
	"altcoin-screener/internal/tsdb"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("configuration load failed")
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Msg("altcoin screener starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDB(ctx, cfg.DatabaseConfig.URL, cfg.DatabaseConfig.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Pool.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	store, err := tsdb.NewStore(ctx, cfg.TimescaleConfig.URL, cfg.TimescaleConfig.MaxConns, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("candle store connection failed")
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		logger.Fatal().Err(err).Msg("candle store init failed")
	}

	var hotCache *cache.Service
	if cfg.RedisConfig.Enabled {
		hotCache, err = cache.NewService(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis cache unavailable, continuing without it")
			hotCache = nil
		} else {
			defer hotCache.Close()
		}
	}

	client := binance.NewClient(cfg.BinanceConfig.APIKey, cfg.BinanceConfig.SecretKey, cfg.BinanceConfig.BaseURL)
	provider := marketdata.NewProvider(client, store, logger)
	repo := database.NewRepository(db)
	bus := events.NewBus()

	scr := screener.New(client, provider, repo, cfg.ScreenerConfig, logger)

	evaluator, err := strategy.NewEvaluator(cfg.SimTradingConfig.EntryPolicy,
		cfg.SimTradingConfig.OperatorTimezone, cfg.SimTradingConfig.EnableTimeWindows)
	if err != nil {
		logger.Fatal().Err(err).Msg("entry evaluator setup failed")
	}

	engine := simtrading.NewEngine(db, repo, client, evaluator, bus, cfg.SimTradingConfig, logger)

	gate, err := notification.NewGate(cfg.SimTradingConfig.OperatorTimezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("notification gate setup failed")
	}
	notifier := notification.NewManager(cfg.NotificationConfig, logger)

	col := collector.New(client, store, bus, cfg.CollectorConfig, logger)
	if cfg.CollectorConfig.Enabled {
		col.Start(ctx)
	}

	mon := monitor.New(scr, engine, repo, store, gate, notifier, hotCache, bus, cfg.MonitorConfig, logger)
	if cfg.MonitorConfig.Enabled {
		mon.Start(ctx)
	}

	server := api.NewServer(cfg.ServerConfig, client, provider, store, db, repo, scr, engine, hotCache, bus, logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	cancel()
	if cfg.MonitorConfig.Enabled {
		mon.Stop()
	}
	if cfg.CollectorConfig.Enabled {
		col.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}

	logger.Info().Msg("altcoin screener stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
