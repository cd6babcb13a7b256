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
	_ "time/tzdata"

	"github.com/hamidbarzin/cryptobarzin/internal/alerts"
	"github.com/hamidbarzin/cryptobarzin/internal/analysis"
	"github.com/hamidbarzin/cryptobarzin/internal/api"
	"github.com/hamidbarzin/cryptobarzin/internal/cache"
	"github.com/hamidbarzin/cryptobarzin/internal/config"
	"github.com/hamidbarzin/cryptobarzin/internal/logger"
	"github.com/hamidbarzin/cryptobarzin/internal/maintenance"
	"github.com/hamidbarzin/cryptobarzin/internal/market"
	"github.com/hamidbarzin/cryptobarzin/internal/metrics"
	"github.com/hamidbarzin/cryptobarzin/internal/news"
	"github.com/hamidbarzin/cryptobarzin/internal/reports"
	"github.com/hamidbarzin/cryptobarzin/internal/scheduler"
	"github.com/hamidbarzin/cryptobarzin/internal/storage"
	"github.com/hamidbarzin/cryptobarzin/internal/telegram"
)

var version = "dev"

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.LoggerOptions())
	logger.Info("Crypto Barzin %s starting, configuration loaded from %s", version, *configPath)

	alertLoc, err := time.LoadLocation(cfg.Alerts.Timezone)
	if err != nil {
		logger.Fatal("Failed to load alert timezone: %v", err)
	}
	schedLoc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatal("Failed to load scheduler timezone: %v", err)
	}

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	m := metrics.New()

	priceCache := cache.New("price", cfg.Cache.PriceTTL, cache.WithMetrics(m))
	newsCache := cache.New("news", cfg.Cache.NewsTTL, cache.WithMetrics(m))
	technicalCache := cache.New("technical", cfg.Cache.TechnicalTTL, cache.WithMetrics(m))
	caches := []*cache.Manager{priceCache, newsCache, technicalCache}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceOpts := []market.ServiceOption{
		market.WithServiceMetrics(m),
		market.WithQuoteCurrency(cfg.Market.QuoteCurrency),
	}
	if cfg.Redis.Enabled {
		mirror, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("Redis unavailable, continuing without shared price cache: %v", err)
		} else {
			defer func() { _ = mirror.Close() }()
			serviceOpts = append(serviceOpts, market.WithMirror(mirror))
			logger.Info("Redis price mirror connected at %s", cfg.Redis.Addr)
		}
	}

	binance := market.NewBinance(cfg.Market.BinanceBaseURL, cfg.Market.RequestTimeout, cfg.Market.RateLimit)
	providers := buildProviders(cfg, binance)
	prices := market.NewService(providers, priceCache, serviceOpts...)

	var sender telegram.Sender = telegram.NopSender{}
	var tgClient *telegram.Client
	switch {
	case cfg.Telegram.Configured():
		tgClient, err = telegram.NewClient(telegram.Options{
			BotToken:       cfg.Telegram.BotToken,
			ChatID:         cfg.Telegram.ChatID,
			MaxRetries:     cfg.Telegram.MaxRetries,
			RetryDelayBase: cfg.Telegram.RetryDelayBase,
			Metrics:        m,
		})
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		sender = tgClient
		logger.Info("Telegram client initialized successfully")
	case cfg.Telegram.Enabled:
		logger.Warn("Telegram bot_token or chat_id missing, messages will be dropped")
	default:
		logger.Warn("Telegram notifications disabled, messages will be dropped")
	}

	registry := alerts.New(prices, sender,
		alerts.WithRecorder(store),
		alerts.WithMetrics(m),
		alerts.WithLocation(alertLoc),
		alerts.WithQuoteCurrency(cfg.Market.QuoteCurrency),
		alerts.WithHysteresis(cfg.Alerts.Hysteresis),
	)
	seeded := registry.Seed(cfg.DefaultAlerts())
	logger.Info("Registered %d default price alerts", seeded)

	analyzer := analysis.NewAnalyzer(binance, technicalCache, cfg.Analysis.KlineInterval, cfg.Analysis.KlineLimit, cfg.Market.QuoteCurrency)

	reportOpts := []reports.Option{
		reports.WithAnalyzer(analyzer),
		reports.WithAlerts(registry),
		reports.WithCaches(caches...),
	}
	if cfg.News.Enabled {
		reportOpts = append(reportOpts, reports.WithNews(news.NewClient(cfg.News.URL, cfg.News.APIKey, cfg.Market.RequestTimeout, newsCache)))
	}
	publisher := reports.New(reports.Config{
		Coins:     cfg.Scheduler.Coins,
		NewsLimit: cfg.News.Limit,
		Location:  schedLoc,
		Version:   version,
	}, sender, prices, reportOpts...)

	sched, err := scheduler.New(scheduler.Config{
		Settings:    cfg.SchedulerSettings(),
		Intervals:   cfg.Scheduler.Intervals,
		Coins:       cfg.Scheduler.Coins,
		Location:    schedLoc,
		StopTimeout: cfg.Scheduler.StopTimeout,
		TaskTimeout: cfg.Scheduler.TaskTimeout,
		SendStartup: cfg.Scheduler.SendStartup,
	}, publisher, registry,
		scheduler.WithMetrics(m),
		scheduler.WithSettingsStore(store),
	)
	if err != nil {
		logger.Fatal("Failed to initialize scheduler: %v", err)
	}

	jobs := maintenance.NewRunner()
	if err := jobs.Add("cache_cleanup", cfg.Cache.CleanupSchedule, maintenance.CacheCleanup(caches...)); err != nil {
		logger.Fatal("Failed to schedule cache cleanup: %v", err)
	}
	if err := jobs.Add("event_prune", cfg.Storage.PruneSchedule, maintenance.PruneEvents(store, cfg.Storage.EventRetention)); err != nil {
		logger.Fatal("Failed to schedule event pruning: %v", err)
	}
	jobs.Start()

	if tgClient != nil && cfg.Telegram.Commands {
		registerCommands(tgClient, prices, registry, sched)
		tgClient.ListenForCommands(ctx)
	}

	var server *api.Server
	if cfg.Server.Enabled {
		server = api.NewServer(cfg.Server.Addr, api.Deps{
			Scheduler: sched,
			Alerts:    registry,
			Prices:    prices,
			Events:    store,
			Caches:    caches,
			Metrics:   m,
			Jobs:      jobs,
			Version:   version,
		})
		go func() {
			if err := server.ListenAndServe(); err != nil {
				logger.Error("API server failed: %v", err)
				cancel()
			}
		}()
	}

	if sched.AutoStart() {
		if err := sched.Start(); err != nil {
			logger.Error("Failed to start scheduler: %v", err)
		}
	} else {
		logger.Info("Scheduler auto start disabled, waiting for a start request")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, cleaning up...")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Scheduler.StopTimeout+5*time.Second)
	defer shutdownCancel()

	if sched.Running() {
		if err := sched.Stop(); err != nil {
			logger.Warn("Failed to stop scheduler: %v", err)
		}
	}
	jobs.Stop(shutdownCtx)
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("%v", err)
		}
	}
	logger.Info("Service stopped")
}

func buildProviders(cfg *config.Config, binance *market.Binance) []market.Provider {
	mc := cfg.Market
	var providers []market.Provider
	for _, name := range mc.Providers {
		switch strings.ToLower(name) {
		case "coingecko":
			providers = append(providers, market.NewCoinGecko(mc.CoinGeckoURL, market.DefaultCoinIDs, mc.RequestTimeout, mc.RateLimit, mc.MaxRetries))
		case "cryptocompare":
			providers = append(providers, market.NewCryptoCompare(mc.CryptoCompareURL, mc.CryptoCompareAPIKey, mc.RequestTimeout, mc.RateLimit, mc.MaxRetries))
		case "binance":
			providers = append(providers, binance)
		}
	}
	logger.Info("Price providers: %v", mc.Providers)
	return providers
}
