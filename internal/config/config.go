package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Signature   SignatureConfig   `mapstructure:"signature"`
	Forwarding  ForwardingConfig  `mapstructure:"forwarding"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`
	Billing     BillingConfig     `mapstructure:"billing"`
	Tenants     []TenantConfig    `mapstructure:"tenants"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"`
}

type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr            string `mapstructure:"addr"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	AuditListPrefix string `mapstructure:"audit_list_prefix"`
	AuditListMax    int    `mapstructure:"audit_list_max"`
}

type RateLimitConfig struct {
	Backend       string `mapstructure:"backend"` // memory | redis
	WindowSeconds int    `mapstructure:"window_seconds"`
	FailClosed    bool   `mapstructure:"fail_closed"`
	MaxKeys       int    `mapstructure:"max_keys"`
	Free          int    `mapstructure:"free"`
	Pro           int    `mapstructure:"pro"`
	Team          int    `mapstructure:"team"`
}

func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

type SignatureConfig struct {
	Scheme           string `mapstructure:"scheme"` // concat | hmac
	ToleranceSeconds int    `mapstructure:"tolerance_seconds"`
}

func (c SignatureConfig) Tolerance() time.Duration {
	return time.Duration(c.ToleranceSeconds) * time.Second
}

type ForwardingConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxAttempts      int    `mapstructure:"max_attempts"`
	BackoffMs        []int  `mapstructure:"backoff_ms"`
	UserAgent        string `mapstructure:"user_agent"`
	MaxResponseBytes int64  `mapstructure:"max_response_bytes"`
}

func (c ForwardingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ForwardingConfig) Backoff() []time.Duration {
	out := make([]time.Duration, 0, len(c.BackoffMs))
	for _, ms := range c.BackoffMs {
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out
}

type AuditConfig struct {
	Buffer int `mapstructure:"buffer"`
}

type IdempotencyConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
	// in-flight lock lifetime, refreshed to the full TTL once the response is saved
	LockSeconds int `mapstructure:"lock_seconds"`
}

func (c IdempotencyConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

func (c IdempotencyConfig) LockTTL() time.Duration {
	return time.Duration(c.LockSeconds) * time.Second
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BillingConfig struct {
	UpgradeURL string `mapstructure:"upgrade_url"`
}

// TenantConfig seeds the in-memory stores for local development.
type TenantConfig struct {
	ID        string           `mapstructure:"id"`
	Name      string           `mapstructure:"name"`
	Plan      string           `mapstructure:"plan"`
	APIKeys   []string         `mapstructure:"api_keys"`
	Endpoints []EndpointConfig `mapstructure:"endpoints"`
}

type EndpointConfig struct {
	Name      string  `mapstructure:"name"`
	URL       string  `mapstructure:"url"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. HOOKGATE_DATABASE_DSN
	viper.SetEnvPrefix("hookgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_only", false)
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 50)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime_minutes", 60)
	viper.SetDefault("database.auto_migrate", false)
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.audit_list_prefix", "audit")
	viper.SetDefault("redis.audit_list_max", 10000)
	viper.SetDefault("ratelimit.backend", "memory")
	viper.SetDefault("ratelimit.window_seconds", 60)
	viper.SetDefault("ratelimit.fail_closed", false)
	viper.SetDefault("ratelimit.max_keys", 100000)
	viper.SetDefault("ratelimit.free", 60)
	viper.SetDefault("ratelimit.pro", 300)
	viper.SetDefault("ratelimit.team", 1200)
	viper.SetDefault("signature.scheme", "concat")
	viper.SetDefault("signature.tolerance_seconds", 300)
	viper.SetDefault("forwarding.timeout_seconds", 10)
	viper.SetDefault("forwarding.max_attempts", 3)
	viper.SetDefault("forwarding.backoff_ms", []int{1000, 2000, 4000})
	viper.SetDefault("forwarding.user_agent", "hookgate/1.0")
	viper.SetDefault("forwarding.max_response_bytes", 1024)
	viper.SetDefault("audit.buffer", 1000)
	viper.SetDefault("idempotency.ttl_hours", 24)
	viper.SetDefault("idempotency.lock_seconds", 30)
	viper.SetDefault("nats.url", "")
	viper.SetDefault("nats.subject", "hookgate.deliveries")
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("billing.upgrade_url", "https://hookgate.dev/billing")
}

func (c *Config) Validate() error {
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("ratelimit.backend must be memory or redis, got %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("ratelimit.backend=redis requires redis.addr")
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("ratelimit.window_seconds must be positive")
	}
	switch c.Signature.Scheme {
	case "concat", "hmac":
	default:
		return fmt.Errorf("signature.scheme must be concat or hmac, got %q", c.Signature.Scheme)
	}
	if c.Forwarding.MaxAttempts < 1 {
		return fmt.Errorf("forwarding.max_attempts must be at least 1")
	}
	if c.Forwarding.TimeoutSeconds <= 0 {
		return fmt.Errorf("forwarding.timeout_seconds must be positive")
	}
	return nil
}
