package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all worker configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Commerce  CommerceConfig
	Sync      SyncConfig
	Scheduler SchedulerConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int    // in minutes
	ConnMaxIdleTime int    // in minutes
	LogLevel        string // silent, error, warn, info
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// CommerceConfig holds the external commerce REST client settings
type CommerceConfig struct {
	APIPathPrefix     string
	DefaultAPIVersion string
	RequestTimeout    time.Duration
	MaxResponseSize   int64
	UserAgent         string
}

// SyncConfig holds incremental sync and webhook draining settings
type SyncConfig struct {
	PageSize         int
	InitialLookback  time.Duration // window scanned on a store's first sync
	WebhookBatchSize int
	WebhookProvider  string
}

// SchedulerConfig holds job scheduling and worker pool configuration
type SchedulerConfig struct {
	Enabled             bool
	QueueBackend        string // memory, redis
	MaxConcurrentJobs   int
	DispatchRate        float64 // job starts per second
	DispatchBurst       int
	JobTimeout          time.Duration
	TickInterval        time.Duration
	OrderSyncInterval   time.Duration
	ProductSyncInterval time.Duration
	WebhookInterval     time.Duration
	DiscoveryInterval   time.Duration
	QueueLease          time.Duration // redis backend only
}

// HTTPConfig holds the admin HTTP server configuration
type HTTPConfig struct {
	Enabled      bool
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	// Database tracing options
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
}

// ProfilingConfig holds Pyroscope continuous profiling configuration
type ProfilingConfig struct {
	Enabled         bool
	ServerAddress   string
	ApplicationName string
}

// Queue backends
const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with COMMERCESYNC_ prefix (e.g., COMMERCESYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/commercesync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("COMMERCESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Commerce: CommerceConfig{
			APIPathPrefix:     v.GetString("commerce.api_path_prefix"),
			DefaultAPIVersion: v.GetString("commerce.default_api_version"),
			RequestTimeout:    v.GetDuration("commerce.request_timeout"),
			MaxResponseSize:   v.GetInt64("commerce.max_response_size"),
			UserAgent:         v.GetString("commerce.user_agent"),
		},
		Sync: SyncConfig{
			PageSize:         v.GetInt("sync.page_size"),
			InitialLookback:  v.GetDuration("sync.initial_lookback"),
			WebhookBatchSize: v.GetInt("sync.webhook_batch_size"),
			WebhookProvider:  v.GetString("sync.webhook_provider"),
		},
		Scheduler: SchedulerConfig{
			Enabled:             v.GetBool("scheduler.enabled"),
			QueueBackend:        v.GetString("scheduler.queue_backend"),
			MaxConcurrentJobs:   v.GetInt("scheduler.max_concurrent_jobs"),
			DispatchRate:        v.GetFloat64("scheduler.dispatch_rate"),
			DispatchBurst:       v.GetInt("scheduler.dispatch_burst"),
			JobTimeout:          v.GetDuration("scheduler.job_timeout"),
			TickInterval:        v.GetDuration("scheduler.tick_interval"),
			OrderSyncInterval:   v.GetDuration("scheduler.order_sync_interval"),
			ProductSyncInterval: v.GetDuration("scheduler.product_sync_interval"),
			WebhookInterval:     v.GetDuration("scheduler.webhook_interval"),
			DiscoveryInterval:   v.GetDuration("scheduler.discovery_interval"),
			QueueLease:          v.GetDuration("scheduler.queue_lease"),
		},
		HTTP: HTTPConfig{
			Enabled:      v.GetBool("http.enabled"),
			Addr:         v.GetString("http.addr"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Profiling: ProfilingConfig{
			Enabled:         v.GetBool("profiling.enabled"),
			ServerAddress:   v.GetString("profiling.server_address"),
			ApplicationName: v.GetString("profiling.application_name"),
		},
	}

	// Booleans that default to on are only read when explicitly set
	if !v.IsSet("scheduler.enabled") {
		cfg.Scheduler.Enabled = true
	}
	if !v.IsSet("http.enabled") {
		cfg.HTTP.Enabled = true
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
		cfg.App.Name = "commercesync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
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
		cfg.Database.DBName = "commercesync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "commercesync:"
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
	if cfg.Commerce.APIPathPrefix == "" {
		cfg.Commerce.APIPathPrefix = "/wp-json/wc"
	}
	if cfg.Commerce.DefaultAPIVersion == "" {
		cfg.Commerce.DefaultAPIVersion = "v3"
	}
	if cfg.Commerce.RequestTimeout == 0 {
		cfg.Commerce.RequestTimeout = 30 * time.Second
	}
	if cfg.Commerce.MaxResponseSize == 0 {
		cfg.Commerce.MaxResponseSize = 10 << 20 // 10MB
	}
	if cfg.Commerce.UserAgent == "" {
		cfg.Commerce.UserAgent = "commercesync/1.0"
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 50
	}
	if cfg.Sync.InitialLookback == 0 {
		cfg.Sync.InitialLookback = 168 * time.Hour
	}
	if cfg.Sync.WebhookBatchSize == 0 {
		cfg.Sync.WebhookBatchSize = 50
	}
	if cfg.Sync.WebhookProvider == "" {
		cfg.Sync.WebhookProvider = "woocommerce"
	}
	if cfg.Scheduler.QueueBackend == "" {
		cfg.Scheduler.QueueBackend = QueueBackendMemory
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 5
	}
	if cfg.Scheduler.DispatchRate == 0 {
		cfg.Scheduler.DispatchRate = 10
	}
	if cfg.Scheduler.DispatchBurst == 0 {
		cfg.Scheduler.DispatchBurst = 1
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 5 * time.Minute
	}
	if cfg.Scheduler.TickInterval == 0 {
		cfg.Scheduler.TickInterval = time.Second
	}
	if cfg.Scheduler.OrderSyncInterval == 0 {
		cfg.Scheduler.OrderSyncInterval = 10 * time.Minute
	}
	if cfg.Scheduler.ProductSyncInterval == 0 {
		cfg.Scheduler.ProductSyncInterval = 30 * time.Minute
	}
	if cfg.Scheduler.WebhookInterval == 0 {
		cfg.Scheduler.WebhookInterval = time.Minute
	}
	if cfg.Scheduler.DiscoveryInterval == 0 {
		cfg.Scheduler.DiscoveryInterval = 5 * time.Minute
	}
	if cfg.Scheduler.QueueLease == 0 {
		cfg.Scheduler.QueueLease = 30 * time.Minute
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8081"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "commercesync-worker"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Profiling.ServerAddress == "" {
		cfg.Profiling.ServerAddress = "http://localhost:4040"
	}
	if cfg.Profiling.ApplicationName == "" {
		cfg.Profiling.ApplicationName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Sync.PageSize < 1 || c.Sync.PageSize > 100 {
		return fmt.Errorf("sync.page_size must be between 1 and 100, got %d", c.Sync.PageSize)
	}
	if c.Sync.WebhookBatchSize < 1 || c.Sync.WebhookBatchSize > 500 {
		return fmt.Errorf("sync.webhook_batch_size must be between 1 and 500, got %d", c.Sync.WebhookBatchSize)
	}
	if c.Sync.InitialLookback < 0 {
		return fmt.Errorf("sync.initial_lookback cannot be negative")
	}

	switch c.Scheduler.QueueBackend {
	case QueueBackendMemory, QueueBackendRedis:
	default:
		return fmt.Errorf("scheduler.queue_backend must be %q or %q, got %q",
			QueueBackendMemory, QueueBackendRedis, c.Scheduler.QueueBackend)
	}
	if c.Scheduler.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("scheduler.max_concurrent_jobs must be positive")
	}
	if c.Scheduler.DispatchRate <= 0 {
		return fmt.Errorf("scheduler.dispatch_rate must be positive")
	}
	if c.Scheduler.DispatchBurst <= 0 {
		return fmt.Errorf("scheduler.dispatch_burst must be positive")
	}
	intervals := map[string]time.Duration{
		"scheduler.job_timeout":           c.Scheduler.JobTimeout,
		"scheduler.tick_interval":         c.Scheduler.TickInterval,
		"scheduler.order_sync_interval":   c.Scheduler.OrderSyncInterval,
		"scheduler.product_sync_interval": c.Scheduler.ProductSyncInterval,
		"scheduler.webhook_interval":      c.Scheduler.WebhookInterval,
		"scheduler.discovery_interval":    c.Scheduler.DiscoveryInterval,
		"scheduler.queue_lease":           c.Scheduler.QueueLease,
	}
	for key, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	// A running job keeps its identity only for the lease
	if c.Scheduler.QueueBackend == QueueBackendRedis && c.Scheduler.QueueLease <= c.Scheduler.JobTimeout {
		return fmt.Errorf("scheduler.queue_lease (%s) must exceed scheduler.job_timeout (%s)",
			c.Scheduler.QueueLease, c.Scheduler.JobTimeout)
	}

	if c.Commerce.RequestTimeout <= 0 {
		return fmt.Errorf("commerce.request_timeout must be positive")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
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

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
