package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rewired-gh/polytrend/internal/config"
	"github.com/rewired-gh/polytrend/internal/execution"
	"github.com/rewired-gh/polytrend/internal/indicator"
	"github.com/rewired-gh/polytrend/internal/logger"
	"github.com/rewired-gh/polytrend/internal/market"
	"github.com/rewired-gh/polytrend/internal/metrics"
	"github.com/rewired-gh/polytrend/internal/models"
	"github.com/rewired-gh/polytrend/internal/monitor"
	"github.com/rewired-gh/polytrend/internal/polymarket"
	"github.com/rewired-gh/polytrend/internal/storage"
	"github.com/rewired-gh/polytrend/internal/strategy"
	"github.com/rewired-gh/polytrend/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	liveMode   = flag.Bool("live", false, "Forward decisions to the order executor instead of only logging them")
)

// rotateEvery is how many cycles pass between decision journal rotations.
const rotateEvery = 1000

// dispatchFunc adapts a plain function to monitor.Dispatcher.
type dispatchFunc func(ctx context.Context, d models.Decision) error

func (f dispatchFunc) Dispatch(ctx context.Context, d models.Decision) error { return f(ctx, d) }

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	mode := execution.Simulation
	if *liveMode {
		mode = execution.Live
	}

	logger.Info("🚀 Starting Polymarket trending index bot (mode: %s, gamma: %s, clob: %s, interval: %v)",
		mode, cfg.Polymarket.GammaAPIURL, cfg.Polymarket.ClobAPIURL, cfg.CheckInterval())

	var store *storage.Storage
	if cfg.Storage.Enabled {
		store, err = storage.New(cfg.Storage.MaxDecisions, cfg.Storage.DBPath)
		if err != nil {
			logger.Fatal("Failed to initialize storage: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
	} else {
		logger.Debug("Decision journal disabled")
	}

	if cfg.Metrics.Enabled {
		srv := metrics.Serve(cfg.Metrics.Addr)
		defer srv.Close()
		logger.Info("Serving metrics on %s/metrics", cfg.Metrics.Addr)
	}

	polyClient := polymarket.NewClient(
		cfg.Polymarket.GammaAPIURL,
		cfg.Polymarket.ClobAPIURL,
		cfg.Polymarket.Timeout,
		polymarket.ClientConfig{
			MaxRetries:          cfg.Polymarket.MaxRetries,
			RetryDelayBase:      cfg.Polymarket.RetryDelayBase,
			MaxIdleConns:        cfg.Polymarket.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.Polymarket.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.Polymarket.IdleConnTimeout,
		},
	)

	assets := make([]market.Asset, 0, len(cfg.Trading.Markets))
	for _, m := range cfg.Trading.Markets {
		assets = append(assets, market.Asset{
			Name:         m.Name,
			SlugPrefixes: m.SlugPrefixes,
			Enabled:      m.Enabled,
			DummySlug:    m.DummySlug,
		})
	}

	snapshotter := market.NewSnapshotter(polyClient, assets,
		market.WithDiscoveryHook(func(asset string, m *models.Market, period int64) {
			if store == nil || m.IsDummy() {
				return
			}
			if err := store.RecordMarket(asset, m, period, time.Now()); err != nil {
				logger.Warn("Failed to record %s market %s: %v", asset, m.Slug, err)
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("🔍 Discovering current 15m up/down markets for %s", strings.Join(cfg.EnabledMarkets(), ", "))
	if err := snapshotter.DiscoverAll(ctx); err != nil {
		logger.Fatal("Could not find markets: %v", err)
	}
	logger.Info("✅ Markets discovered:")
	for _, a := range assets {
		m := snapshotter.Market(a.Name)
		if m.IsDummy() {
			logger.Info("   %-7s: %s", a.Name, m.Slug)
			continue
		}
		logger.Info("   %-7s: %s (%s)", a.Name, m.Slug, m.ConditionID)
	}

	indexType := cfg.IndexType()
	signalPeriod := 0
	if indexType == models.IndexMACDSignal {
		signalPeriod = cfg.TrendingIndex.MACDSignalPeriod
		logger.Warn("macd_signal mode compares the MACD line against the threshold; the signal line is only logged")
	}

	mon := monitor.New(monitor.Config{
		Assets: cfg.EnabledMarkets(),
		Strategy: strategy.Context{
			Lookback:             cfg.TrendingIndex.Lookback,
			TrendThreshold:       cfg.TrendingIndex.Threshold,
			MomentumThresholdPct: strategy.DefaultMomentumThresholdPct,
			PositionSize:         cfg.Trading.PositionSize,
			IndexType:            indexType,
		},
		Indicators: indicator.Config{
			Lookback:     cfg.TrendingIndex.Lookback,
			FastPeriod:   cfg.TrendingIndex.MACDFastPeriod,
			SlowPeriod:   cfg.TrendingIndex.MACDSlowPeriod,
			SignalPeriod: signalPeriod,
		},
		MaxHistory: cfg.Trading.MaxHistory,
	})

	logger.Info("Strategy cfg  : index=%s | threshold=%.2f | mom_thresh=%.2f",
		indexType, cfg.TrendingIndex.Threshold, strategy.DefaultMomentumThresholdPct)

	// No order executor is bundled; live mode logs and reports each decision as unexecuted.
	dispatchers := []monitor.Dispatcher{execution.NewDispatcher(mode, nil)}
	if mode == execution.Live {
		logger.Warn("⚠️ Live mode requested but no order executor is configured; decisions will not be executed")
	}
	if store != nil {
		dispatchers = append(dispatchers, dispatchFunc(func(_ context.Context, d models.Decision) error {
			return store.AddDecision(&d)
		}))
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		telegramClient.SetStatusSource(string(mode), mon.Status)
		telegramClient.ListenForCommands(ctx)
		dispatchers = append(dispatchers, telegramClient)
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	loop := monitor.NewLoop(snapshotter.Snapshot, mon, cfg.CheckInterval(), dispatchers...)

	consecutiveFailures := 0
	cycles := 0
	loop.OnCycle = func(r monitor.CycleResult) {
		cycles++
		if store != nil && cycles%rotateEvery == 0 {
			if err := store.RotateDecisions(); err != nil {
				logger.Warn("Failed to rotate decisions: %v", err)
			}
		}

		if r.Err != nil {
			consecutiveFailures++
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(r.Err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	if mode == execution.Live {
		logger.Info("🚀 Running in LIVE TRADING MODE")
	} else {
		logger.Info("🎮 Running in SIMULATION MODE (logs and calculations only)")
	}
	logger.Info("   Markets       : %v", mon.Assets())
	logger.Info("   Check interval: %d ms", cfg.Trading.CheckIntervalMS)

	loop.Run(ctx)
	logger.Info("Service stopped")
}
