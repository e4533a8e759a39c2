package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Task execution modes.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

type Config struct {
	Environment string            `mapstructure:"environment"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	SMTP        SMTPConfig        `mapstructure:"smtp"`
	Site        SiteConfig        `mapstructure:"site"`
	Tasks       TasksConfig       `mapstructure:"tasks"`
	Reminders   RemindersConfig   `mapstructure:"reminders"`
	Billing     BillingConfig     `mapstructure:"billing"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Security    SecurityConfig    `mapstructure:"security"`
	Ops         OpsConfig         `mapstructure:"ops"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	// HSTSMaxAge is sent as Strict-Transport-Security max-age; zero disables the header.
	HSTSMaxAge int `mapstructure:"hsts_max_age"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

func (j JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

// SMTPConfig is the shared outbound connection used when a company has no credentials of its own.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type SiteConfig struct {
	// BaseURL prefixes tracking links, pixels and emailed activation links.
	BaseURL string `mapstructure:"base_url"`
	Name    string `mapstructure:"name"`
}

type TasksConfig struct {
	Mode        string        `mapstructure:"mode"`
	Queue       string        `mapstructure:"queue"`
	DeadLetter  string        `mapstructure:"dead_letter"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	WorkerCount int           `mapstructure:"worker_count"`
	// MetricsPort is where the worker binary serves /metrics; zero disables it.
	MetricsPort int `mapstructure:"metrics_port"`
}

func (t TasksConfig) Async() bool {
	return t.Mode == ModeAsync
}

type RemindersConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Lookback time.Duration `mapstructure:"lookback"`
	Horizon  time.Duration `mapstructure:"horizon"`
}

type BillingConfig struct {
	GraceDays     int           `mapstructure:"grace_days"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Currency      string        `mapstructure:"currency"`
	GatewayURL    string        `mapstructure:"gateway_url"`
	GatewayKey    string        `mapstructure:"gateway_key"`
}

type PermissionsConfig struct {
	// Debug surfaces resolver errors instead of resolving to an empty set.
	Debug    bool          `mapstructure:"debug"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// Staff is the system wide grant list for staff users.
	Staff []string `mapstructure:"staff"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type SecurityConfig struct {
	// EncryptionKey seals company mail passwords at rest; 16, 24 or 32 bytes. Empty stores them as given.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type OpsConfig struct {
	Emails []string `mapstructure:"emails"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// secrets are read from CRM_* environment variables and override the file.
type secrets struct {
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	RedisURL         string `envconfig:"REDIS_URL"`
	GatewayKey       string `envconfig:"GATEWAY_KEY"`
	TaskMode         string `envconfig:"TASK_MODE"`
	EncryptionKey    string `envconfig:"ENCRYPTION_KEY"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("jwt.expiry_hours", 24)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("site.base_url", "http://localhost:8080")
	v.SetDefault("site.name", "CRM")
	v.SetDefault("tasks.mode", ModeAsync)
	v.SetDefault("tasks.queue", "crm:tasks")
	v.SetDefault("tasks.dead_letter", "crm:tasks:dead")
	v.SetDefault("tasks.max_attempts", 3)
	v.SetDefault("tasks.retry_delay", 5*time.Second)
	v.SetDefault("tasks.poll_timeout", 5*time.Second)
	v.SetDefault("tasks.worker_count", 2)
	v.SetDefault("tasks.metrics_port", 9091)
	v.SetDefault("reminders.interval", 5*time.Minute)
	v.SetDefault("reminders.lookback", 24*time.Hour)
	v.SetDefault("reminders.horizon", 7*24*time.Hour)
	v.SetDefault("billing.grace_days", 15)
	v.SetDefault("billing.check_interval", 24*time.Hour)
	v.SetDefault("billing.currency", "usd")
	v.SetDefault("permissions.cache_ttl", 30*time.Second)
	v.SetDefault("ratelimit.requests_per_second", 20)
	v.SetDefault("ratelimit.burst", 40)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("logging.level", "info")
}

// Load reads config.yml from the usual locations, then applies CRM_ environment overrides.
// A missing file is not an error; defaults and environment still apply.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var s secrets
	if err := envconfig.Process("CRM", &s); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg.applySecrets(s)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets(s secrets) {
	if s.DatabasePassword != "" {
		c.Database.Password = s.DatabasePassword
	}
	if s.JWTSecret != "" {
		c.JWT.Secret = s.JWTSecret
	}
	if s.SMTPPassword != "" {
		c.SMTP.Password = s.SMTPPassword
	}
	if s.RedisURL != "" {
		c.Redis.URL = s.RedisURL
	}
	if s.GatewayKey != "" {
		c.Billing.GatewayKey = s.GatewayKey
	}
	if s.TaskMode != "" {
		c.Tasks.Mode = s.TaskMode
	}
	if s.EncryptionKey != "" {
		c.Security.EncryptionKey = s.EncryptionKey
	}
}

func (c *Config) Validate() error {
	if c.Tasks.Mode != ModeSync && c.Tasks.Mode != ModeAsync {
		return fmt.Errorf("invalid tasks.mode %q: want %q or %q", c.Tasks.Mode, ModeSync, ModeAsync)
	}
	if c.Tasks.MaxAttempts < 1 {
		return fmt.Errorf("tasks.max_attempts must be at least 1")
	}
	if c.Reminders.Interval <= 0 {
		return fmt.Errorf("reminders.interval must be positive")
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	c.Site.BaseURL = strings.TrimRight(c.Site.BaseURL, "/")
	switch len(c.Security.EncryptionKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
