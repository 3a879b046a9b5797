package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Pool      PoolConfig
	Sync      SyncConfig
	Notifier  NotifierConfig
	Realtime  RealtimeConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// PoolConfig holds database connection pool settings
type PoolConfig struct {
	Size           int           // maximum pooled connections
	AcquireRetries int           // attempts before falling back to a direct connection
	RetryBaseDelay time.Duration // base delay for exponential backoff between attempts
	AcquireTimeout time.Duration // per-attempt wait for a pooled connection
	SweepInterval  time.Duration // background leak sweep interval
	LeakWindow     time.Duration // lease age after which a connection counts as leaked
	LeaseCeiling   int           // in-use count that triggers forced reclaim of old leases
	MaxDirect      int           // cap on temporary out-of-pool connections
}

// SyncConfig holds cross-service reconciliation settings
type SyncConfig struct {
	Enabled       bool
	SweepInterval time.Duration
}

// NotifierConfig holds stock webhook push settings
type NotifierConfig struct {
	Enabled     bool
	WebhookURL  string
	PushTimeout time.Duration
	QueueSize   int
}

// RealtimeConfig holds websocket hub settings
type RealtimeConfig struct {
	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with IMS_ prefix (e.g., IMS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("IMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Pool: PoolConfig{
			Size:           v.GetInt("pool.size"),
			AcquireRetries: v.GetInt("pool.acquire_retries"),
			RetryBaseDelay: v.GetDuration("pool.retry_base_delay"),
			AcquireTimeout: v.GetDuration("pool.acquire_timeout"),
			SweepInterval:  v.GetDuration("pool.sweep_interval"),
			LeakWindow:     v.GetDuration("pool.leak_window"),
			LeaseCeiling:   v.GetInt("pool.lease_ceiling"),
			MaxDirect:      v.GetInt("pool.max_direct"),
		},
		Sync: SyncConfig{
			Enabled:       v.GetBool("sync.enabled"),
			SweepInterval: v.GetDuration("sync.sweep_interval"),
		},
		Notifier: NotifierConfig{
			Enabled:     v.GetBool("notifier.enabled"),
			WebhookURL:  v.GetString("notifier.webhook_url"),
			PushTimeout: v.GetDuration("notifier.push_timeout"),
			QueueSize:   v.GetInt("notifier.queue_size"),
		},
		Realtime: RealtimeConfig{
			SendBuffer:   v.GetInt("realtime.send_buffer"),
			PingInterval: v.GetDuration("realtime.ping_interval"),
			WriteTimeout: v.GetDuration("realtime.write_timeout"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ims-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8001"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "cafe_inventory"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Pool.Size == 0 {
		cfg.Pool.Size = 32
	}
	if cfg.Pool.AcquireRetries == 0 {
		cfg.Pool.AcquireRetries = 5
	}
	if cfg.Pool.RetryBaseDelay == 0 {
		cfg.Pool.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.Pool.AcquireTimeout == 0 {
		cfg.Pool.AcquireTimeout = 2 * time.Second
	}
	if cfg.Pool.SweepInterval == 0 {
		cfg.Pool.SweepInterval = 5 * time.Minute
	}
	if cfg.Pool.LeakWindow == 0 {
		cfg.Pool.LeakWindow = time.Minute
	}
	if cfg.Pool.LeaseCeiling == 0 {
		cfg.Pool.LeaseCeiling = cfg.Pool.Size - 4
		if cfg.Pool.LeaseCeiling < 1 {
			cfg.Pool.LeaseCeiling = cfg.Pool.Size
		}
	}
	if cfg.Pool.MaxDirect == 0 {
		cfg.Pool.MaxDirect = 4
	}
	if cfg.Sync.SweepInterval == 0 {
		cfg.Sync.SweepInterval = time.Minute
	}
	if cfg.Notifier.WebhookURL == "" {
		cfg.Notifier.WebhookURL = "http://127.0.0.1:8000/api/inventory-webhook/stock-update"
	}
	if cfg.Notifier.PushTimeout == 0 {
		cfg.Notifier.PushTimeout = 5 * time.Second
	}
	if cfg.Notifier.QueueSize == 0 {
		cfg.Notifier.QueueSize = 256
	}
	if cfg.Realtime.SendBuffer == 0 {
		cfg.Realtime.SendBuffer = 16
	}
	if cfg.Realtime.PingInterval == 0 {
		cfg.Realtime.PingInterval = 30 * time.Second
	}
	if cfg.Realtime.WriteTimeout == 0 {
		cfg.Realtime.WriteTimeout = 10 * time.Second
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Pool.Size <= 0 {
		return fmt.Errorf("pool.size must be positive")
	}
	if c.Pool.LeaseCeiling > c.Pool.Size {
		return fmt.Errorf("pool.lease_ceiling (%d) cannot exceed pool.size (%d)",
			c.Pool.LeaseCeiling, c.Pool.Size)
	}
	if c.Pool.AcquireRetries < 1 {
		return fmt.Errorf("pool.acquire_retries must be at least 1")
	}
	if c.Notifier.Enabled {
		if c.Notifier.WebhookURL == "" {
			return fmt.Errorf("notifier.webhook_url is required when the notifier is enabled")
		}
		if _, err := url.ParseRequestURI(c.Notifier.WebhookURL); err != nil {
			return fmt.Errorf("notifier.webhook_url is not a valid URL: %w", err)
		}
	}
	if c.Sync.Enabled && c.Sync.SweepInterval < 10*time.Second {
		return fmt.Errorf("sync.sweep_interval must be at least 10s")
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address for Redis
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
