// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App      AppConfig      `koanf:"app"`
	Server   ServerConfig   `koanf:"server"`
	Ops      OpsConfig      `koanf:"ops"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Session  SessionConfig  `koanf:"session"`
	Tokens   TokensConfig   `koanf:"tokens"`
	Mail     MailConfig     `koanf:"mail"`
	Storage  StorageConfig  `koanf:"storage"`
	CORS     CORSConfig     `koanf:"cors"`
	Log      LogConfig      `koanf:"log"`
	Otel     OtelConfig     `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	BaseURL     string `koanf:"base_url"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// OpsConfig is the internal listener serving /metrics and /stats.
type OpsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Address string `koanf:"address"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type SessionConfig struct {
	Secret       string        `koanf:"secret"`
	Issuer       string        `koanf:"issuer"`
	TokenExpire  time.Duration `koanf:"token_expire"`
	CookieName   string        `koanf:"cookie_name"`
	CookieMaxAge time.Duration `koanf:"cookie_max_age"`
}

type TokensConfig struct {
	OpaqueBytes  int           `koanf:"opaque_bytes"`
	OpaqueExpire time.Duration `koanf:"opaque_expire"`
}

type MailConfig struct {
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	FromAddress  string `koanf:"from_address"`
	ProductName  string `koanf:"product_name"`
}

type StorageConfig struct {
	Endpoint      string `koanf:"endpoint"`
	Region        string `koanf:"region"`
	Bucket        string `koanf:"bucket"`
	AccessKey     string `koanf:"access_key"`
	SecretKey     string `koanf:"secret_key"`
	PublicBaseURL string `koanf:"public_base_url"`
	AvatarFolder  string `koanf:"avatar_folder"`
	MaxUploadSize int64  `koanf:"max_upload_size"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Account Service",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.base_url":    "http://localhost:8080",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"ops.enabled": true,
		"ops.address": "127.0.0.1:9090",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       false,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"session.issuer":         "account-service",
		"session.token_expire":   "168h",
		"session.cookie_name":    "token",
		"session.cookie_max_age": "168h",

		"tokens.opaque_bytes":  20,
		"tokens.opaque_expire": "20m",

		"mail.smtp_port":    587,
		"mail.from_address": "no-reply@localhost",
		"mail.product_name": "Account Service",

		"storage.region":          "us-east-1",
		"storage.avatar_folder":   "avatars",
		"storage.max_upload_size": 5 << 20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "account-service",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"NODE_ENV":                    "app.environment",
	"BASE_URL":                    "app.base_url",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"OPS_ADDRESS":                 "ops.address",
	"OPS_ENABLED":                 "ops.enabled",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"SESSION_SECRET":              "session.secret",
	"REFRESH_TOKEN_SECRET":        "session.secret",
	"SESSION_ISSUER":              "session.issuer",
	"SESSION_TOKEN_EXPIRE":        "session.token_expire",
	"SESSION_COOKIE_NAME":         "session.cookie_name",
	"OPAQUE_TOKEN_EXPIRE":         "tokens.opaque_expire",
	"SMTP_HOST":                   "mail.smtp_host",
	"SMTP_PORT":                   "mail.smtp_port",
	"SMTP_USER":                   "mail.smtp_user",
	"SMTP_PASSWORD":               "mail.smtp_password",
	"MAIL_FROM":                   "mail.from_address",
	"S3_ENDPOINT":                 "storage.endpoint",
	"S3_REGION":                   "storage.region",
	"S3_BUCKET":                   "storage.bucket",
	"S3_ACCESS_KEY":               "storage.access_key",
	"S3_SECRET_KEY":               "storage.secret_key",
	"S3_PUBLIC_BASE_URL":          "storage.public_base_url",
	"CLIENT_URL":                  "cors.allowed_origins",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

const minSessionSecretLen = 32

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.Session.Secret) < minSessionSecretLen {
		return fmt.Errorf(
			"SESSION_SECRET must be at least %d characters",
			minSessionSecretLen,
		)
	}

	if c.Session.TokenExpire <= 0 {
		return fmt.Errorf("session.token_expire must be positive")
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}

	if c.Tokens.OpaqueBytes < 20 {
		return fmt.Errorf("tokens.opaque_bytes must be at least 20")
	}

	if c.Tokens.OpaqueExpire <= 0 {
		return fmt.Errorf("tokens.opaque_expire must be positive")
	}

	if c.Storage.Bucket != "" && c.Storage.PublicBaseURL == "" {
		return fmt.Errorf("S3_PUBLIC_BASE_URL is required when S3_BUCKET is set")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if c.Mail.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
