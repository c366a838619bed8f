package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when CONFIG_PATH is not set.
const DefaultPath = "config.yaml"

// PostgresConfig describes the token database. Host may also carry a full postgres:// URL.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Config is the service configuration.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Limits struct {
		MaxContentBytes int `yaml:"max_content_bytes"`
		MaxPDFBytes     int `yaml:"max_pdf_bytes"`
		MaxBatchFiles   int `yaml:"max_batch_files"`
		MaxBodyBytes    int `yaml:"max_body_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Redis struct {
		Host        string `yaml:"host"`
		RateLimitDB int    `yaml:"rate_limit_db"`

		// PDFCacheEnabled stores single-document responses in Redis for PDFCacheTTL.
		PDFCacheEnabled bool          `yaml:"pdf_cache_enabled"`
		PDFCacheTTL     time.Duration `yaml:"pdf_cache_ttl"`
		PDFCacheDB      int           `yaml:"pdf_cache_db"`
	} `yaml:"redis"`

	Auth struct {
		Enabled        bool           `yaml:"enabled"`
		Required       bool           `yaml:"required"`
		Postgres       PostgresConfig `yaml:"postgres"`
		ReloadInterval time.Duration  `yaml:"reload_interval"`

		// EnsureSchema creates the tokens table on startup when it is missing.
		EnsureSchema bool `yaml:"ensure_schema"`
	} `yaml:"auth"`

	RateLimiter struct {
		Interval               time.Duration `yaml:"interval"`
		EnableUserLimiter      bool          `yaml:"enable_user_limiter"`
		UserLimit              int           `yaml:"user_limit"`
		EnableTokenRateLimiter bool          `yaml:"enable_token_rate_limiter"`
	} `yaml:"rate_limiter"`

	PDF struct {
		ChromePath            string        `yaml:"chrome_path"`
		UserDataDir           string        `yaml:"user_data_dir"`
		InlineCSS             bool          `yaml:"inline_css"`
		ValidateOutput        bool          `yaml:"validate_output"`
		NavigationTimeout     time.Duration `yaml:"navigation_timeout"`
		IdleWindow            time.Duration `yaml:"idle_window"`
		KillAttempts          int           `yaml:"kill_attempts"`
		KillDelay             time.Duration `yaml:"kill_delay"`
		RequestTimeout        time.Duration `yaml:"request_timeout"`
		AllowClientLaunchArgs bool          `yaml:"allow_client_launch_args"`
		DefaultFormat         string        `yaml:"default_format"`
	} `yaml:"pdf"`
}

// Load reads the file named by CONFIG_PATH, or DefaultPath.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the YAML file at path. It panics on unreadable or invalid
// configuration; the service cannot start without one.
func LoadFrom(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("config: parse %s: %v", path, err))
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %s: %v", path, err))
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Limits.MaxContentBytes == 0 {
		cfg.Limits.MaxContentBytes = 2 * 1024 * 1024
	}
	if cfg.Limits.MaxPDFBytes == 0 {
		cfg.Limits.MaxPDFBytes = 20 * 1024 * 1024
	}
	if cfg.Limits.MaxBatchFiles == 0 {
		cfg.Limits.MaxBatchFiles = 50
	}
	if cfg.Limits.MaxBodyBytes == 0 {
		cfg.Limits.MaxBodyBytes = 16 * 1024 * 1024
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Redis.PDFCacheTTL == 0 {
		cfg.Redis.PDFCacheTTL = 24 * time.Hour
	}
	if cfg.Auth.ReloadInterval == 0 {
		cfg.Auth.ReloadInterval = time.Minute
	}
	if cfg.RateLimiter.Interval == 0 {
		cfg.RateLimiter.Interval = time.Minute
	}
	if cfg.PDF.NavigationTimeout == 0 {
		cfg.PDF.NavigationTimeout = 30 * time.Second
	}
	if cfg.PDF.IdleWindow == 0 {
		cfg.PDF.IdleWindow = 500 * time.Millisecond
	}
	if cfg.PDF.KillAttempts == 0 {
		cfg.PDF.KillAttempts = 5
	}
	if cfg.PDF.KillDelay == 0 {
		cfg.PDF.KillDelay = 200 * time.Millisecond
	}
	if cfg.PDF.RequestTimeout == 0 {
		cfg.PDF.RequestTimeout = 2 * time.Minute
	}
}

// applyEnv lets the common container variable override chrome_path.
func applyEnv(cfg *Config) {
	if cfg.PDF.ChromePath == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.PDF.ChromePath = v
		}
	}
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.Server.Port, ":") {
		return fmt.Errorf("server.port must look like \":8080\", got %q", c.Server.Port)
	}
	if c.Limits.MaxContentBytes < 0 || c.Limits.MaxPDFBytes < 0 || c.Limits.MaxBatchFiles < 0 || c.Limits.MaxBodyBytes < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if c.RateLimiter.Interval < 0 {
		return fmt.Errorf("rate_limiter.interval must be positive")
	}
	if c.RateLimiter.UserLimit < 0 {
		return fmt.Errorf("rate_limiter.user_limit must not be negative")
	}
	if c.Redis.PDFCacheEnabled && c.Redis.Host == "" {
		return fmt.Errorf("redis.pdf_cache_enabled needs redis.host")
	}
	if c.Auth.Required && !c.Auth.Enabled {
		return fmt.Errorf("auth.required needs auth.enabled")
	}
	if c.Auth.Enabled && c.Auth.Postgres.Host == "" {
		return fmt.Errorf("auth.postgres.host is required when auth is enabled")
	}
	if c.Auth.ReloadInterval < 0 {
		return fmt.Errorf("auth.reload_interval must be positive")
	}
	if c.PDF.KillAttempts < 0 {
		return fmt.Errorf("pdf.kill_attempts must not be negative")
	}
	if c.PDF.NavigationTimeout < 0 || c.PDF.IdleWindow < 0 || c.PDF.KillDelay < 0 || c.PDF.RequestTimeout < 0 {
		return fmt.Errorf("pdf durations must not be negative")
	}
	return nil
}
