package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config holds ingestion configuration.
type Config struct {
	BaseURL           string        `mapstructure:"base_url"`
	ListingPath       string        `mapstructure:"listing_path"`
	StartPage         int           `mapstructure:"start_page"`
	PageCount         int           `mapstructure:"pages"`
	Parallelism       int           `mapstructure:"parallelism"`
	Delay             time.Duration `mapstructure:"delay"`
	RandomDelay       time.Duration `mapstructure:"random_delay"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax   time.Duration `mapstructure:"retry_backoff_max"`
	CacheSize         int           `mapstructure:"cache_size"`
	OutputFile        string        `mapstructure:"output_file"`
	OutputFormat      string        `mapstructure:"output_format"` // none, csv, json, or dual
	UserAgent         string        `mapstructure:"user_agent"`
	Verbose           bool          `mapstructure:"verbose"`
	RespectRobotsTxt  bool          `mapstructure:"respect_robots_txt"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
	Store             StoreConfig   `mapstructure:"store"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite or postgres
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://books.toscrape.com/catalogue/",
		ListingPath:       "page-%d.html",
		StartPage:         1,
		PageCount:         1,
		Parallelism:       16,
		Delay:             0,
		RandomDelay:       0,
		Timeout:           10 * time.Second,
		RequestsPerSecond: 0,
		MaxRetries:        2,
		RetryBackoff:      200 * time.Millisecond,
		RetryBackoffMax:   2 * time.Second,
		CacheSize:         0,
		OutputFile:        "",
		OutputFormat:      "none",
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:           false,
		RespectRobotsTxt:  false,
		MetricsAddr:       "",
		Store: StoreConfig{
			Driver:   "sqlite",
			DSN:      "books.db",
			MaxConns: 4,
		},
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if strings.Count(c.ListingPath, "%d") != 1 {
		return fmt.Errorf("listing path must contain exactly one %%d page placeholder")
	}

	if c.StartPage < 1 {
		return fmt.Errorf("start page must be at least 1")
	}
	if c.PageCount < 1 {
		return fmt.Errorf("page count must be at least 1")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	switch c.OutputFormat {
	case "none":
	case "csv", "json", "dual":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty when output format is %s", c.OutputFormat)
		}
	default:
		return fmt.Errorf("output format must be none, csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store driver must be sqlite or postgres")
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store dsn cannot be empty")
	}

	return nil
}

// NewViper returns a viper instance primed with the defaults, environment
// binding (BOOKINGEST_ prefix) and, when path is set, a config file.
func NewViper(path string) *viper.Viper {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bookingest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BOOKINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("listing_path", d.ListingPath)
	v.SetDefault("start_page", d.StartPage)
	v.SetDefault("pages", d.PageCount)
	v.SetDefault("parallelism", d.Parallelism)
	v.SetDefault("delay", d.Delay)
	v.SetDefault("random_delay", d.RandomDelay)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("requests_per_second", d.RequestsPerSecond)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_backoff", d.RetryBackoff)
	v.SetDefault("retry_backoff_max", d.RetryBackoffMax)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("output_file", d.OutputFile)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("respect_robots_txt", d.RespectRobotsTxt)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.max_conns", d.Store.MaxConns)

	return v
}

// Load reads the optional config file and decodes all sources into a
// Config. A missing default config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	return cfg, nil
}
