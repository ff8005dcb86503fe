package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Server struct {
	Port            string        `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CORSOrigin is echoed in Access-Control-Allow-Origin.
	CORSOrigin string `mapstructure:"cors_origin"`
	Gzip       bool   `mapstructure:"gzip"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type Cache struct {
	QuoteTTL      time.Duration `mapstructure:"quote_ttl"`
	ProfileTTL    time.Duration `mapstructure:"profile_ttl"`
	SearchTTL     time.Duration `mapstructure:"search_ttl"`
	MaxItems      int           `mapstructure:"max_items"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// MaxAge drops entries older than this on sweep regardless of TTL.
	MaxAge time.Duration `mapstructure:"max_age"`
}

type Batch struct {
	ChunkSize      int           `mapstructure:"chunk_size"`
	ChunkDelay     time.Duration `mapstructure:"chunk_delay"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	// Combined serves /api/quote through one multi-code upstream call.
	Combined       bool   `mapstructure:"combined"`
	CombinedSource string `mapstructure:"combined_source"`
}

type Symbols struct {
	DefaultSuffix string `mapstructure:"default_suffix"`
}

// Provider holds the settings shared by every upstream.
type Provider struct {
	Enabled              bool          `mapstructure:"enabled"`
	Endpoint             string        `mapstructure:"endpoint"`
	Charset              string        `mapstructure:"charset"`
	Retries              int           `mapstructure:"retries"`
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute"`
	Burst                int           `mapstructure:"burst"`
	MinRequestInterval   time.Duration `mapstructure:"min_request_interval"`
	// Paths overrides the endpoint templates of JSON providers; each takes the
	// bare code as its only %s verb. Empty keeps the built-in list.
	Paths []string `mapstructure:"paths"`
	// Limit caps the number of results (search only).
	Limit int `mapstructure:"limit"`
}

type Providers struct {
	// Order lists chain members by priority. Known names: realtime, mobile, html, yahoo.
	Order    []string      `mapstructure:"order"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Realtime Provider      `mapstructure:"realtime"`
	Mobile   Provider      `mapstructure:"mobile"`
	HTML     Provider      `mapstructure:"html"`
	Names    Provider      `mapstructure:"names"`
	Search   Provider      `mapstructure:"search"`
	Yahoo    Provider      `mapstructure:"yahoo"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	Log       Log       `mapstructure:"log"`
	Cache     Cache     `mapstructure:"cache"`
	Batch     Batch     `mapstructure:"batch"`
	Symbols   Symbols   `mapstructure:"symbols"`
	Providers Providers `mapstructure:"providers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.gzip", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("cache.quote_ttl", 3*time.Second)
	v.SetDefault("cache.profile_ttl", 30*time.Second)
	v.SetDefault("cache.search_ttl", 60*time.Second)
	v.SetDefault("cache.max_items", 10000)
	v.SetDefault("cache.sweep_interval", time.Minute)
	v.SetDefault("cache.max_age", 10*time.Minute)

	v.SetDefault("batch.chunk_size", 20)
	v.SetDefault("batch.chunk_delay", 50*time.Millisecond)
	v.SetDefault("batch.max_concurrency", 0)
	v.SetDefault("batch.combined", false)
	v.SetDefault("batch.combined_source", "realtime")

	v.SetDefault("symbols.default_suffix", ".KS")

	v.SetDefault("providers.order", []string{"realtime", "mobile", "html"})
	v.SetDefault("providers.timeout", 4*time.Second)
	providerDefaults(v, "realtime", true, "https://polling.finance.naver.com", "euc-kr")
	providerDefaults(v, "mobile", true, "https://m.stock.naver.com", "utf-8")
	providerDefaults(v, "html", true, "https://finance.naver.com", "euc-kr")
	providerDefaults(v, "names", true, "https://m.stock.naver.com", "utf-8")
	providerDefaults(v, "search", true, "https://finance.naver.com", "euc-kr")
	providerDefaults(v, "yahoo", false, "", "")
	v.SetDefault("providers.mobile.retries", 1)
	v.SetDefault("providers.names.retries", 1)
	v.SetDefault("providers.search.limit", 10)
}

func providerDefaults(v *viper.Viper, name string, enabled bool, endpoint, charset string) {
	prefix := "providers." + name + "."
	v.SetDefault(prefix+"enabled", enabled)
	v.SetDefault(prefix+"endpoint", endpoint)
	v.SetDefault(prefix+"charset", charset)
	v.SetDefault(prefix+"retries", 0)
	v.SetDefault(prefix+"max_requests_per_minute", 0)
	v.SetDefault(prefix+"burst", 1)
	v.SetDefault(prefix+"min_request_interval", time.Duration(0))
	v.SetDefault(prefix+"paths", []string{})
	v.SetDefault(prefix+"limit", 0)
}

// Load reads configuration from defaults, an optional config file and the
// environment, in increasing precedence.
//
// When path is empty, config.{yaml,json} is looked up in the working
// directory and the file named by CONFIG_FILE. Environment keys are the
// upper-cased dotted keys with "_" separators, e.g. BATCH_CHUNK_SIZE or
// PROVIDERS_REALTIME_ENABLED. PORT is accepted for server.port.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	if path == "" {
		_ = v.BindEnv("config_file", "CONFIG_FILE")
		path = v.GetString("config_file")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Providers.Order = splitCSV(cfg.Providers.Order)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var knownChainProviders = map[string]bool{"realtime": true, "mobile": true, "html": true, "yahoo": true}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Server.Port) == "" {
		problems = append(problems, "server.port is empty")
	}
	if c.Batch.ChunkSize <= 0 {
		problems = append(problems, "batch.chunk_size must be positive")
	}
	if c.Batch.ChunkDelay < 0 {
		problems = append(problems, "batch.chunk_delay must not be negative")
	}
	if c.Cache.QuoteTTL <= 0 {
		problems = append(problems, "cache.quote_ttl must be positive")
	}
	if c.Providers.Search.Limit < 0 {
		problems = append(problems, "providers.search.limit must not be negative")
	}
	if c.Providers.Timeout <= 0 {
		problems = append(problems, "providers.timeout must be positive")
	}
	for _, name := range c.Providers.Order {
		if !knownChainProviders[name] {
			problems = append(problems, fmt.Sprintf("providers.order: unknown provider %q", name))
		}
	}
	switch c.Batch.CombinedSource {
	case "realtime", "yahoo":
	default:
		problems = append(problems, fmt.Sprintf("batch.combined_source: unknown source %q", c.Batch.CombinedSource))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// splitCSV flattens entries like "realtime,mobile" that arrive from a
// single environment variable.
func splitCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
