package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborstack/channelwatch/internal/api"
	"github.com/harborstack/channelwatch/internal/cache"
	"github.com/harborstack/channelwatch/internal/config"
	"github.com/harborstack/channelwatch/internal/engine"
	"github.com/harborstack/channelwatch/internal/interpret"
	"github.com/harborstack/channelwatch/internal/metrics"
	"github.com/harborstack/channelwatch/internal/repo"
	"github.com/harborstack/channelwatch/internal/services"
	"github.com/harborstack/channelwatch/internal/utils"
	memcache "github.com/harborstack/channelwatch/pkg/cache"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting channelwatch", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = memcache.NewMemory()
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	vocab := buildVocabulary(cfg.Channels)

	var store *repo.SeriesStore
	if cfg.Loader.SQLite.Path != "" {
		store, err = repo.OpenSeriesStore(cfg.Loader.SQLite.Path)
		if err != nil {
			logger.Error("failed to open series store", slog.Any("error", err))
			os.Exit(1)
		}
		defer store.Close()
	}

	var loader engine.SeriesLoader
	switch cfg.Loader.Source {
	case "api":
		loader = repo.NewTrafficAPIClient(
			cfg.Loader.API.BaseURL,
			cfg.Loader.API.AppID,
			cfg.Loader.API.SecretKey,
			cfg.Loader.API.Client,
			metricCodes(cfg.Channels),
			cfg.Loader.API.Timeout,
			cacheProvider,
			cfg.Loader.API.SeriesTTL,
		)
	default:
		if store == nil {
			logger.Error("sqlite loader selected but no database path configured")
			os.Exit(1)
		}
		loader = store
	}

	var weather engine.WeatherProvider
	if cfg.Providers.Weather.BaseURL != "" {
		weather = repo.NewWeatherAPIClient(
			cfg.Providers.Weather.BaseURL,
			cfg.Providers.Weather.APIKey,
			cfg.Providers.Weather.Timeout,
			cfg.Providers.Weather.RateEvery,
			cacheProvider,
			cfg.Providers.Weather.EvidenceTTL,
		)
	}

	var news engine.NewsProvider
	if len(cfg.Providers.News.Feeds) > 0 {
		feeds := make([]repo.NewsFeed, 0, len(cfg.Providers.News.Feeds))
		for _, feed := range cfg.Providers.News.Feeds {
			feeds = append(feeds, repo.NewsFeed{Name: feed.Name, URL: feed.URL})
		}
		news = repo.NewNewsRSSClient(feeds, newsKeywords(cfg.Channels), cfg.Providers.News.Timeout, logger)
	}

	advisories, err := engine.NewAdvisoryEngine(cfg.Advisory.Path, logger)
	if err != nil {
		logger.Error("failed to load advisory rules", slog.Any("error", err))
		os.Exit(1)
	}

	var findingStore engine.FindingStore
	var historyRepo services.HistoryRepo
	if store != nil {
		findingStore = store
		historyRepo = store
	}

	eng := engine.New(
		logger,
		engine.Config{
			LookbackDays:       cfg.Detection.LookbackDays,
			MinSegmentSize:     cfg.Detection.MinSegmentSize,
			Penalty:            cfg.Detection.Penalty,
			RelativeThreshold:  cfg.Detection.RelativeThreshold,
			MinDurationDays:    cfg.Detection.MinDurationDays,
			EvidenceMarginDays: cfg.Detection.EvidenceMarginDays,
			EvidenceCap:        cfg.Detection.EvidenceCap,
			LoaderTimeout:      cfg.Loader.Timeout,
		},
		loader,
		weather,
		news,
		findingStore,
		vocab,
		advisories,
	)

	service := services.NewDetectionService(logger, eng, historyRepo)
	handler := api.RequestLogger(logger, api.NewHandler(logger, service))

	server, err := api.NewServer(cfg.Server, handler)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("channelwatch stopped")
}

func buildVocabulary(channels []config.ChannelConfig) interpret.Vocabulary {
	vocab := make(interpret.Vocabulary, 0, len(channels))
	for _, ch := range channels {
		vocab = append(vocab, interpret.Channel{
			ID:      ch.ID,
			Name:    ch.Name,
			Aliases: append([]string(nil), ch.Aliases...),
		})
	}
	return vocab
}

func metricCodes(channels []config.ChannelConfig) map[string]string {
	codes := make(map[string]string, len(channels))
	for _, ch := range channels {
		if ch.MetricCode != "" {
			codes[ch.ID] = ch.MetricCode
		}
	}
	return codes
}

// newsKeywords derives headline match terms from each channel's name and
// aliases. ASCII terms shorter than four characters are skipped to avoid
// false positives on unrelated headlines.
func newsKeywords(channels []config.ChannelConfig) map[string][]string {
	keywords := make(map[string][]string, len(channels))
	for _, ch := range channels {
		terms := make([]string, 0, len(ch.Aliases)+1)
		if ch.Name != "" {
			terms = append(terms, ch.Name)
		}
		for _, alias := range ch.Aliases {
			if isASCII(alias) && len(alias) < 4 {
				continue
			}
			terms = append(terms, alias)
		}
		keywords[ch.ID] = terms
	}
	return keywords
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}
