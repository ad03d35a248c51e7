package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host      string `yaml:"host"`
		AdminPort int    `yaml:"admin_port"`
	} `yaml:"service"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	MarketData struct {
		RESTBaseURL string `yaml:"rest_base_url"`
		WSURL       string `yaml:"ws_url"`
		WatchTopN   int    `yaml:"watch_top_n"`
		CacheBars   int    `yaml:"cache_bars"` // ring buffer depth per symbol/timeframe
	} `yaml:"market_data"`

	Gateway struct {
		Mode         string  `yaml:"mode"` // paper | bridge
		BaseURL      string  `yaml:"base_url"`
		APIKey       string  `yaml:"api_key"`
		APISecret    string  `yaml:"api_secret"`
		PaperBalance float64 `yaml:"paper_balance"`
	} `yaml:"gateway"`

	Store struct {
		Backend string `yaml:"backend"` // memory | postgres
	} `yaml:"store"`

	// Engine defaults, applied when a created algorithm omits them.
	DefaultTimeframe      string
	DefaultCycleInterval  time.Duration
	DefaultConfirmTrades  bool
	DefaultConfirmTimeout time.Duration
	VaRConfidence         float64
	DrawdownLimit         float64 // account drawdown breach, fraction
	CorrelationLimit      float64 // average pairwise |corr| breach, percent

	// Backtest defaults for the CLI.
	DefaultSpreadPips     float64
	DefaultCommission     float64
	DefaultInitialBalance float64
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		DefaultTimeframe:      getenvDefault("TIMEFRAME", "1m"),
		DefaultCycleInterval:  durationFromEnv("CYCLE_INTERVAL", "0s"),
		DefaultConfirmTrades:  boolFromEnv("CONFIRM_TRADES", false),
		DefaultConfirmTimeout: durationFromEnv("CONFIRM_TIMEOUT", "30s"),
		VaRConfidence:         floatFromEnv("VAR_CONFIDENCE", 0.95),
		DrawdownLimit:         floatFromEnv("DRAWDOWN_LIMIT", 0.05),
		CorrelationLimit:      floatFromEnv("CORRELATION_LIMIT", 70),

		DefaultSpreadPips:     floatFromEnv("SPREAD_PIPS", 1.0),
		DefaultCommission:     floatFromEnv("COMMISSION_PER_LOT", 7.0),
		DefaultInitialBalance: floatFromEnv("INITIAL_BALANCE", 10000),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	if config.MarketData.WatchTopN == 0 {
		config.MarketData.WatchTopN = intFromEnv("DEFAULT_WATCHLIST_TOP_N", 20)
	}
	if config.MarketData.CacheBars == 0 {
		config.MarketData.CacheBars = intFromEnv("CACHE_BARS", 500)
	}
	if config.Gateway.Mode == "" {
		config.Gateway.Mode = getenvDefault("GATEWAY_MODE", "paper")
	}
	if config.Gateway.PaperBalance == 0 {
		config.Gateway.PaperBalance = floatFromEnv("PAPER_BALANCE", 100000)
	}
	if config.Store.Backend == "" {
		config.Store.Backend = getenvDefault("STORE_BACKEND", "memory")
	}
	if config.Service.AdminPort == 0 {
		config.Service.AdminPort = intFromEnv("ADMIN_PORT", 8080)
	}

	return &config, nil
}

func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
	)
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
