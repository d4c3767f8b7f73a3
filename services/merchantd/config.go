package merchantd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for merchantd.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	AdminURL      string          `yaml:"admin_url"`
	Testnet       bool            `yaml:"testnet"`
	Commerce      CommerceConfig  `yaml:"commerce"`
	Database      DatabaseConfig  `yaml:"database"`
	Auth          AuthConfig      `yaml:"auth"`
	Poll          PollConfig      `yaml:"poll"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Log           LogConfig       `yaml:"log"`
}

// CommerceConfig points the gateway at the remote commerce platform.
type CommerceConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// DatabaseConfig selects the settings store backend.
type DatabaseConfig struct {
	// Driver is either "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// Path is the sqlite database file when Driver is "sqlite".
	Path string `yaml:"path"`
	// DSN is the postgres connection string when Driver is "postgres".
	DSN    string `yaml:"dsn"`
	DSNEnv string `yaml:"dsn_env"`
}

// AuthConfig controls admin API authentication.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	JWTSecretFile string `yaml:"jwt_secret_file"`
	JWTSecretEnv  string `yaml:"jwt_secret_env"`
}

// PollConfig bounds the wallet connect polling loops.
type PollConfig struct {
	ConnectInterval Duration `yaml:"connect_interval"`
	LoginInterval   Duration `yaml:"login_interval"`
	MaxAttempts     int      `yaml:"max_attempts"`
}

// RateLimitConfig throttles state-mutating admin actions per caller.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// LogConfig controls the optional rotating file sink.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Auth.normalise(); err != nil {
		return cfg, fmt.Errorf("auth secret: %w", err)
	}
	if err := cfg.Database.normalise(); err != nil {
		return cfg, fmt.Errorf("database: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.Commerce.Timeout.Duration == 0 {
		cfg.Commerce.Timeout.Duration = 15 * time.Second
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "merchantd.db"
	}
	if cfg.Poll.ConnectInterval.Duration == 0 {
		cfg.Poll.ConnectInterval.Duration = 5 * time.Second
	}
	if cfg.Poll.LoginInterval.Duration == 0 {
		cfg.Poll.LoginInterval.Duration = 3 * time.Second
	}
	if cfg.Poll.MaxAttempts <= 0 {
		cfg.Poll.MaxAttempts = 60
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 120
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Commerce.BaseURL) == "" {
		return fmt.Errorf("commerce base_url must be configured")
	}
	if strings.TrimSpace(cfg.AdminURL) == "" {
		return fmt.Errorf("admin_url must be configured")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth jwt secret must be configured")
	}
	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	return nil
}

func (a *AuthConfig) normalise() error {
	if a == nil {
		return fmt.Errorf("auth configuration missing")
	}
	a.JWTSecret = strings.TrimSpace(a.JWTSecret)
	a.JWTSecretEnv = strings.TrimSpace(a.JWTSecretEnv)
	a.JWTSecretFile = strings.TrimSpace(a.JWTSecretFile)
	if a.JWTSecret != "" {
		return nil
	}
	switch {
	case a.JWTSecretEnv != "":
		value := strings.TrimSpace(os.Getenv(a.JWTSecretEnv))
		if value == "" {
			return fmt.Errorf("jwt_secret_env %s is empty", a.JWTSecretEnv)
		}
		a.JWTSecret = value
	case a.JWTSecretFile != "":
		contents, err := os.ReadFile(a.JWTSecretFile)
		if err != nil {
			return fmt.Errorf("read jwt_secret_file: %w", err)
		}
		a.JWTSecret = strings.TrimSpace(string(contents))
	default:
		return fmt.Errorf("jwt_secret is required")
	}
	return nil
}

func (d *DatabaseConfig) normalise() error {
	if d == nil {
		return fmt.Errorf("database configuration missing")
	}
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	d.DSN = strings.TrimSpace(d.DSN)
	d.DSNEnv = strings.TrimSpace(d.DSNEnv)
	if d.Driver == "postgres" && d.DSN == "" {
		if d.DSNEnv == "" {
			return fmt.Errorf("postgres driver requires dsn or dsn_env")
		}
		value := strings.TrimSpace(os.Getenv(d.DSNEnv))
		if value == "" {
			return fmt.Errorf("dsn_env %s is empty", d.DSNEnv)
		}
		d.DSN = value
	}
	return nil
}
