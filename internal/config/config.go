package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ReversalFlow/internal/strategy"
)

// PlaceholderAPIKey is the value shipped in configs/config.yaml.
const PlaceholderAPIKey = "your_api_key_here"

// ErrPlaceholderAPIKey means no real Polygon API key was configured.
var ErrPlaceholderAPIKey = errors.New("POLYGON_API_KEY is not set; put your Polygon API key in .env or configs/config.yaml")

// DefaultWatchlist is used when neither the config file nor WATCHLIST names symbols.
var DefaultWatchlist = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "JPM", "JNJ", "V",
	"PG", "UNH", "HD", "MA", "BAC", "DIS", "ADBE", "CRM", "NFLX", "PYPL",
}

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		APIKey          string        `yaml:"api_key"`
		BaseURL         string        `yaml:"base_url"`
		LookbackDays    int           `yaml:"lookback_days"`
		RequestInterval time.Duration `yaml:"request_interval"`
	} `yaml:"data_source"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Watchlist  []string `yaml:"watchlist"`
	Indicators struct {
		RSIPeriod           int     `yaml:"rsi_period"`
		SMAPeriod           int     `yaml:"sma_period"`
		OversoldThreshold   float64 `yaml:"oversold_threshold"`
		OverboughtThreshold float64 `yaml:"overbought_threshold"`
		MinDeclinePercent   float64 `yaml:"min_decline_percent"`
		DeclineLookbackDays int     `yaml:"decline_lookback_days"`
	} `yaml:"indicators"`
	Refresh struct {
		StaleHours float64 `yaml:"stale_hours"`
		Cron       string  `yaml:"cron"`
	} `yaml:"refresh"`
	Dashboard struct {
		Addr     string        `yaml:"addr"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"dashboard"`
	Proxy string `yaml:"proxy"`
}

// Path returns the config file location, overridable with CONFIG_PATH.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

// Load reads .env and the YAML file, then applies environment variable
// overrides and defaults. Missing files are not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] load .env: %v", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("POLYGON_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("REQUEST_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse REQUEST_INTERVAL: %w", err)
		}
		cfg.DataSource.RequestInterval = d
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		cfg.Watchlist = SplitSymbols(v)
	}
	if v := os.Getenv("DASHBOARD_ADDR"); v != "" {
		cfg.Dashboard.Addr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.DataSource.APIKey == "" {
		cfg.DataSource.APIKey = PlaceholderAPIKey
	}
	if cfg.DataSource.BaseURL == "" {
		cfg.DataSource.BaseURL = "https://api.polygon.io"
	}
	if cfg.DataSource.LookbackDays == 0 {
		cfg.DataSource.LookbackDays = 100
	}
	if cfg.DataSource.RequestInterval == 0 {
		cfg.DataSource.RequestInterval = 12 * time.Second
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/stocks.db"
	}
	if len(cfg.Watchlist) == 0 {
		cfg.Watchlist = append([]string(nil), DefaultWatchlist...)
	}
	def := strategy.DefaultParams()
	if cfg.Indicators.RSIPeriod == 0 {
		cfg.Indicators.RSIPeriod = def.RSIPeriod
	}
	if cfg.Indicators.SMAPeriod == 0 {
		cfg.Indicators.SMAPeriod = def.SMAPeriod
	}
	if cfg.Indicators.OversoldThreshold == 0 {
		cfg.Indicators.OversoldThreshold = def.OversoldThreshold
	}
	if cfg.Indicators.OverboughtThreshold == 0 {
		cfg.Indicators.OverboughtThreshold = def.OverboughtThreshold
	}
	if cfg.Indicators.MinDeclinePercent == 0 {
		cfg.Indicators.MinDeclinePercent = def.MinDeclinePercent
	}
	if cfg.Indicators.DeclineLookbackDays == 0 {
		cfg.Indicators.DeclineLookbackDays = def.DeclineLookbackDays
	}
	if cfg.Refresh.StaleHours == 0 {
		cfg.Refresh.StaleHours = 1
	}
	if cfg.Refresh.Cron == "" {
		cfg.Refresh.Cron = "0 0 * * * *"
	}
	if cfg.Dashboard.Addr == "" {
		cfg.Dashboard.Addr = ":8501"
	}
	if cfg.Dashboard.CacheTTL == 0 {
		cfg.Dashboard.CacheTTL = 5 * time.Minute
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.DataSource.APIKey == "" || c.DataSource.APIKey == PlaceholderAPIKey {
		return ErrPlaceholderAPIKey
	}
	if c.DataSource.BaseURL == "" {
		return fmt.Errorf("data_source.base_url is required")
	}
	if c.DataSource.LookbackDays <= 0 {
		return fmt.Errorf("data_source.lookback_days must be positive")
	}
	if c.DataSource.RequestInterval < 0 {
		return fmt.Errorf("data_source.request_interval must not be negative")
	}
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("watchlist must name at least one symbol")
	}
	ind := c.Indicators
	if ind.RSIPeriod <= 0 || ind.SMAPeriod <= 0 || ind.DeclineLookbackDays <= 0 {
		return fmt.Errorf("indicators windows must be positive")
	}
	if ind.OversoldThreshold <= 0 || ind.OversoldThreshold >= ind.OverboughtThreshold || ind.OverboughtThreshold > 100 {
		return fmt.Errorf("indicators thresholds must satisfy 0 < oversold < overbought <= 100")
	}
	if ind.MinDeclinePercent < 0 {
		return fmt.Errorf("indicators.min_decline_percent must not be negative")
	}
	if c.Refresh.StaleHours <= 0 {
		return fmt.Errorf("refresh.stale_hours must be positive")
	}
	return nil
}

// StrategyParams returns the indicator settings for the engine.
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{
		RSIPeriod:           c.Indicators.RSIPeriod,
		SMAPeriod:           c.Indicators.SMAPeriod,
		OversoldThreshold:   c.Indicators.OversoldThreshold,
		OverboughtThreshold: c.Indicators.OverboughtThreshold,
		MinDeclinePercent:   c.Indicators.MinDeclinePercent,
		DeclineLookbackDays: c.Indicators.DeclineLookbackDays,
	}
}

// SplitSymbols parses a comma separated symbol list.
func SplitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
