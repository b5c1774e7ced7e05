package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signal-trade-bot-go/internal/analyst"
	"signal-trade-bot-go/internal/binance"
	"signal-trade-bot-go/internal/bybit"
	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/database"
	"signal-trade-bot-go/internal/exchange"
	"signal-trade-bot-go/internal/logger"
	"signal-trade-bot-go/internal/notify"
	"signal-trade-bot-go/internal/trader"

	"go.uber.org/zap"
)

func runBot(parent context.Context, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("could not initialize logger: %w", err)
	}
	defer log.Sync()
	log.Info("Configuration loaded", zap.Strings("symbols", cfg.Symbols), zap.String("exchange", cfg.Exchange.Name))

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	repo := database.NewRepository(db)
	log.Info("Database connection successful and schema migrated.")

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigchan:
			log.Info("Shutdown signal received, gracefully shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	venue, err := newExchange(&cfg.Exchange, log)
	if err != nil {
		log.Fatal("Unsupported exchange", zap.Error(err))
	}
	testConnection(ctx, venue, &cfg, log)

	var market exchange.MarketData = venue
	if cfg.Trading.Demo {
		market = exchange.NewDemo(venue, cfg.Exchange.QuoteCurrency)
		log.Warn("Demo mode: paper balance, no orders will be placed", zap.Float64("balance", exchange.DemoBalance))
	} else if cfg.Trading.DryRun {
		log.Warn("Dry run enabled. No real trade will be executed.")
	}

	source, err := analyst.NewLLMSource(ctx, cfg.AI, repo, log)
	if err != nil {
		log.Fatal("Failed to initialize signal source", zap.Error(err))
	}

	notifier, err := newNotifier(ctx, &cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize notifications", zap.Error(err))
	}

	engine := trader.NewEngine(&cfg, venue.Name(), trader.Deps{
		Market:   market,
		Gateway:  venue,
		Source:   source,
		Repo:     repo,
		Notifier: notifier,
		Logger:   log,
	})
	if err := engine.Initialize(ctx); err != nil {
		log.Fatal("Failed to initialize engine", zap.Error(err))
	}

	if opts.once {
		log.Info("Running a single cycle")
		engine.RunOnce(context.WithoutCancel(ctx))
		log.Info("Single cycle complete")
		return nil
	}

	notifier.NotifyStartup(ctx, engine.Summary())

	api := trader.NewAPIServer(engine, cfg.API.Port, log)
	api.Start()

	scheduler := trader.NewScheduler(log)
	if err := engine.Schedule(scheduler); err != nil {
		log.Fatal("Invalid schedule", zap.Error(err))
	}

	log.Info("Running initial analysis")
	engine.RunOnce(context.WithoutCancel(ctx))

	scheduler.Run(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := api.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	notifier.NotifyShutdown(shutdownCtx)
	log.Info("Bot has been shut down.")
	return nil
}

func newExchange(cfg *config.Exchange, log *zap.Logger) (exchange.Exchange, error) {
	switch cfg.Name {
	case "", "binance":
		return binance.NewRestClient(cfg, log), nil
	case "bybit":
		return bybit.NewClient(cfg, log), nil
	}
	return nil, fmt.Errorf("unknown exchange %q", cfg.Name)
}

// testConnection is fatal in live mode. Demo mode only needs public endpoints,
// so a failed authenticated ping is a warning there.
func testConnection(ctx context.Context, venue exchange.Exchange, cfg *config.Config, log *zap.Logger) {
	err := venue.Ping(ctx)
	switch {
	case err == nil:
		log.Info("Successfully connected to exchange API.", zap.String("exchange", venue.Name()))
	case cfg.Trading.Demo:
		log.Warn("Exchange ping failed, continuing in demo mode", zap.Error(err))
	default:
		log.Fatal("Failed to connect to exchange API", zap.Error(err))
	}
}

func newNotifier(ctx context.Context, cfg *config.Config, log *zap.Logger) (notify.Multi, error) {
	sinks := notify.Multi{notify.NewConsole(os.Stdout, log)}
	if tg := notify.NewTelegram(cfg.Telegram, log); tg != nil {
		sinks = append(sinks, tg)
	}
	push, err := notify.NewFCM(ctx, cfg.FCM, log)
	if err != nil {
		return nil, err
	}
	if push != nil {
		sinks = append(sinks, push)
	}
	return sinks, nil
}
