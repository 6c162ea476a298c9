package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the channelwatch engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Loader    LoaderConfig    `yaml:"loader"`
	Providers ProvidersConfig `yaml:"providers"`
	Detection DetectionConfig `yaml:"detection"`
	Channels  []ChannelConfig `yaml:"channels"`
	Logging   LoggingConfig   `yaml:"logging"`
	Advisory  AdvisoryConfig  `yaml:"advisory"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoaderConfig selects and configures the vessel-count series source.
type LoaderConfig struct {
	// Source is "sqlite" or "api".
	Source  string           `yaml:"source"`
	SQLite  SQLiteConfig     `yaml:"sqlite"`
	API     TrafficAPIConfig `yaml:"api"`
	Timeout time.Duration    `yaml:"timeout"`
}

// SQLiteConfig configures the local series database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// TrafficAPIConfig configures the signed upstream vessel-count API.
type TrafficAPIConfig struct {
	BaseURL   string        `yaml:"baseURL"`
	AppID     string        `yaml:"appID"`
	SecretKey string        `yaml:"secretKey"`
	Client    string        `yaml:"client"`
	Timeout   time.Duration `yaml:"timeout"`
	SeriesTTL time.Duration `yaml:"seriesTTL"`
}

// ProvidersConfig groups the evidence collaborators.
type ProvidersConfig struct {
	Weather WeatherConfig `yaml:"weather"`
	News    NewsConfig    `yaml:"news"`
}

// WeatherConfig configures the marine weather observation API.
type WeatherConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	APIKey      string        `yaml:"apiKey"`
	Timeout     time.Duration `yaml:"timeout"`
	RateEvery   time.Duration `yaml:"rateEvery"`
	EvidenceTTL time.Duration `yaml:"evidenceTTL"`
}

// NewsFeed names one RSS/Atom feed polled for shipping news.
type NewsFeed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// NewsConfig configures the RSS news provider.
type NewsConfig struct {
	Feeds   []NewsFeed    `yaml:"feeds"`
	Timeout time.Duration `yaml:"timeout"`
}

// DetectionConfig holds the segmentation and classification knobs.
type DetectionConfig struct {
	LookbackDays       int     `yaml:"lookbackDays"`
	MinSegmentSize     int     `yaml:"minSegmentSize"`
	Penalty            float64 `yaml:"penalty"`
	RelativeThreshold  float64 `yaml:"relativeThreshold"`
	MinDurationDays    int     `yaml:"minDurationDays"`
	EvidenceMarginDays int     `yaml:"evidenceMarginDays"`
	EvidenceCap        int     `yaml:"evidenceCap"`
}

// ChannelConfig declares one supported shipping channel.
type ChannelConfig struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Aliases    []string `yaml:"aliases"`
	MetricCode string   `yaml:"metricCode"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// AdvisoryConfig controls advisory rule-pack loading.
type AdvisoryConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls Redis-backed caching of expensive lookups.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CHANNELWATCH_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if len(cfg.Channels) == 0 {
		cfg.Channels = defaultChannels()
	}

	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8085",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Loader: LoaderConfig{
			Source:  "sqlite",
			SQLite:  SQLiteConfig{Path: "data/channelwatch.db"},
			API:     TrafficAPIConfig{Timeout: 10 * time.Second, SeriesTTL: 30 * time.Minute},
			Timeout: 5 * time.Second,
		},
		Providers: ProvidersConfig{
			Weather: WeatherConfig{
				Timeout:     10 * time.Second,
				RateEvery:   750 * time.Millisecond,
				EvidenceTTL: 15 * time.Minute,
			},
			News: NewsConfig{Timeout: 10 * time.Second},
		},
		Detection: DetectionConfig{
			LookbackDays:       90,
			MinSegmentSize:     3,
			Penalty:            0,
			RelativeThreshold:  1.5,
			MinDurationDays:    7,
			EvidenceMarginDays: 3,
			EvidenceCap:        5,
		},
		Logging:  LoggingConfig{Level: "info", JSON: false},
		Advisory: AdvisoryConfig{Path: "configs/advisories/default.yaml"},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
	}
}

func defaultChannels() []ChannelConfig {
	return []ChannelConfig{
		{
			ID:         "malacca-strait",
			Name:       "Malacca Strait",
			Aliases:    []string{"malacca", "strait of malacca", "马六甲海峡", "马六甲"},
			MetricCode: "101-0003",
		},
		{
			ID:         "mandeb-strait",
			Name:       "Bab-el-Mandeb Strait",
			Aliases:    []string{"mandeb", "bab el mandeb", "bab-el-mandeb", "曼德海峡"},
			MetricCode: "101-0004",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHANNELWATCH_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("CHANNELWATCH_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("CHANNELWATCH_GRACEFUL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.GracefulTimeout = d
		}
	}
	if v := os.Getenv("CHANNELWATCH_TRAFFIC_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Loader.API.Timeout = d
		}
	}
	if v := os.Getenv("CHANNELWATCH_SERIES_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Loader.API.SeriesTTL = d
		}
	}
	if v := os.Getenv("CHANNELWATCH_WEATHER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Providers.Weather.Timeout = d
		}
	}
	if v := os.Getenv("CHANNELWATCH_NEWS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Providers.News.Timeout = d
		}
	}
	if v := os.Getenv("CHANNELWATCH_LOADER_SOURCE"); v != "" {
		cfg.Loader.Source = v
	}
	if v := os.Getenv("CHANNELWATCH_SQLITE_PATH"); v != "" {
		cfg.Loader.SQLite.Path = v
	}
	if v := os.Getenv("CHANNELWATCH_TRAFFIC_API_BASE_URL"); v != "" {
		cfg.Loader.API.BaseURL = v
	}
	if v := os.Getenv("CHANNELWATCH_TRAFFIC_API_APP_ID"); v != "" {
		cfg.Loader.API.AppID = v
	}
	if v := os.Getenv("CHANNELWATCH_TRAFFIC_API_SECRET"); v != "" {
		cfg.Loader.API.SecretKey = v
	}
	if v := os.Getenv("CHANNELWATCH_TRAFFIC_API_CLIENT"); v != "" {
		cfg.Loader.API.Client = v
	}
	if v := os.Getenv("CHANNELWATCH_WEATHER_BASE_URL"); v != "" {
		cfg.Providers.Weather.BaseURL = v
	}
	if v := os.Getenv("CHANNELWATCH_WEATHER_API_KEY"); v != "" {
		cfg.Providers.Weather.APIKey = v
	}
	if v := os.Getenv("CHANNELWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHANNELWATCH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("CHANNELWATCH_ADVISORY_PATH"); v != "" {
		cfg.Advisory.Path = v
	}
	if v := os.Getenv("CHANNELWATCH_LOOKBACK_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.Detection.LookbackDays = days
		}
	}
	if v := os.Getenv("CHANNELWATCH_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("CHANNELWATCH_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("CHANNELWATCH_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("CHANNELWATCH_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("CHANNELWATCH_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("CHANNELWATCH_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
}
