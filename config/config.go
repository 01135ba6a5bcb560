package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Octo      OctoConfig      `mapstructure:"octo"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Order     OrderConfig     `mapstructure:"order"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Env          string        `mapstructure:"env"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig selects the gorm dialect: "mysql" (default) or "sqlite" for
// local development, where DSN is a file path.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig backs the order list cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	OrderTTL time.Duration `mapstructure:"order_ttl"`
}

type JWTConfig struct {
	AccessSecret string        `mapstructure:"access_secret"`
	AccessExpiry time.Duration `mapstructure:"access_expiry"`
	Issuer       string        `mapstructure:"issuer"`
}

// OctoConfig configures the OCTO one-stage (auto capture) payment gateway.
type OctoConfig struct {
	APIBase     string         `mapstructure:"api_base"`
	ShopID      string         `mapstructure:"shop_id"`
	Secret      string         `mapstructure:"secret"`
	ReturnURL   string         `mapstructure:"return_url"`
	NotifyURL   string         `mapstructure:"notify_url"`
	Language    string         `mapstructure:"language"`
	Currency    string         `mapstructure:"currency"`
	AutoCapture bool           `mapstructure:"auto_capture"`
	Test        bool           `mapstructure:"test"`
	StatusPath  string         `mapstructure:"status_path"`
	Timeout     time.Duration  `mapstructure:"timeout"`
	USDRate     float64        `mapstructure:"usd_rate"` // UZS per 1 USD; enables the minimum refund check when > 0
	ExtraParams map[string]any `mapstructure:"extra_params"`
	// WebhookSecret enables HMAC verification of notify callbacks (X-Octo-Signature).
	WebhookSecret string `mapstructure:"webhook_secret"`
	// Stub swaps the real gateway for an in-process stub (development only).
	Stub bool `mapstructure:"stub"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// RateLimitConfig is a per client IP token bucket. Idle buckets are evicted after IdleTTL.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	IdleTTL  time.Duration `mapstructure:"idle_ttl"`
}

type OrderConfig struct {
	MaxQtyPerItem int `mapstructure:"max_qty_per_item"`
	PageLimit     int `mapstructure:"page_limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "slippers:slippers@tcp(localhost:3306)/slippers?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.order_ttl", time.Minute)

	v.SetDefault("jwt.access_secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", 15*time.Minute)
	v.SetDefault("jwt.issuer", "slippers")

	v.SetDefault("octo.api_base", "https://secure.octo.uz")
	v.SetDefault("octo.shop_id", "")
	v.SetDefault("octo.secret", "")
	v.SetDefault("octo.return_url", "")
	v.SetDefault("octo.notify_url", "")
	v.SetDefault("octo.language", "ru")
	v.SetDefault("octo.currency", "UZS")
	v.SetDefault("octo.auto_capture", true)
	v.SetDefault("octo.test", false)
	v.SetDefault("octo.status_path", "/check_status")
	v.SetDefault("octo.timeout", 20*time.Second)
	v.SetDefault("octo.usd_rate", 0.0)
	v.SetDefault("octo.extra_params", map[string]any{})
	v.SetDefault("octo.webhook_secret", "")
	v.SetDefault("octo.stub", false)

	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", time.Minute)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.failure_threshold", 5)

	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.idle_ttl", 10*time.Minute)

	v.SetDefault("order.max_qty_per_item", 50)
	v.SetDefault("order.page_limit", 100)
}

// Load reads defaults, then an optional config.yaml from . or ./config, then
// SLIPPERS_* environment variables (e.g. SLIPPERS_OCTO_SHOP_ID).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("SLIPPERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Missing lists the OCTO settings required before payments can be created.
func (o OctoConfig) Missing() []string {
	var missing []string
	if o.ShopID == "" {
		missing = append(missing, "octo.shop_id")
	}
	if o.Secret == "" {
		missing = append(missing, "octo.secret")
	}
	if o.ReturnURL == "" {
		missing = append(missing, "octo.return_url")
	}
	if o.NotifyURL == "" {
		missing = append(missing, "octo.notify_url")
	}
	return missing
}
