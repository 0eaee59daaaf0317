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
	Log       LogConfig
	HTTP      HTTPConfig
	Webhook   WebhookConfig
	WhatsApp  WhatsAppConfig
	Analytics AnalyticsConfig
	Render    RenderConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Bot       BotConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// IsProduction reports whether the app runs with production checks
func (a *AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // comma separated: stdout, stderr or file paths
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	MaxBodySize     int64 // webhook body limit
	TrustedProxies  []string
}

// WebhookConfig holds the inbound webhook settings
type WebhookConfig struct {
	VerifyToken string // compared with hub.verify_token
	AppSecret   string // enables X-Hub-Signature-256 checks when set
}

// WhatsAppConfig holds the Cloud API send settings
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	BaseURL       string
	Timeout       time.Duration
}

// AnalyticsConfig holds the query processor settings
type AnalyticsConfig struct {
	BaseURL       string
	Timeout       time.Duration
	PreferredShop string        // used as default shop when known
	FallbackShop  string        // used when no shop is known
	ShopCacheTTL  time.Duration // shop list refresh interval
}

// RenderConfig holds table rendering settings
type RenderConfig struct {
	OutputDir         string
	StagingDir        string
	UniqueNames       bool
	LaunchTimeout     time.Duration
	LoadTimeout       time.Duration
	CaptureTimeout    time.Duration
	ChromePath        string
	ChromeRemoteURL   string
	NoSandbox         bool // passes --no-sandbox; default true, required for root in containers
	EscapeValues      bool
	Title             string
	Retention         time.Duration // 0 keeps artifacts forever
	RetentionInterval time.Duration
}

// StorageConfig holds artifact publishing settings
type StorageConfig struct {
	Driver        string // local, s3
	PublicBaseURL string // used by the local driver
	S3            S3Config
}

// S3Config holds S3-compatible object storage settings
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint for MinIO and similar
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
	PresignExpiry   time.Duration
	CreateBucket    bool
}

// CacheConfig holds idempotency cache settings
type CacheConfig struct {
	Driver         string // memory, redis
	IdempotencyTTL time.Duration
	CleanupPeriod  time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // none, postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file
	LogLevel        string
	SlowThreshold   time.Duration // statements slower than this log at Warn
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// BotConfig holds message handling settings
type BotConfig struct {
	MaxConcurrent  int
	MessageTimeout time.Duration
	DefaultPrompt  string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string // OTEL Collector gRPC endpoint (e.g., "localhost:4317")
	ServiceName       string
	Insecure          bool // non-TLS connection (development only)
	ExportInterval    time.Duration
	SamplingRatio     float64 // trace sampling, (0, 1]; default 1
}

// legacyEnv maps unprefixed environment variables to config keys
var legacyEnv = map[string]string{
	"webhook.verify_token":     "WEBHOOK_VERIFY_TOKEN",
	"whatsapp.access_token":    "WHATSAPP_ACCESS_TOKEN",
	"whatsapp.phone_number_id": "WHATSAPP_PHONE_NUMBER_ID",
	"app.port":                 "PORT",
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with TABLEBOT_ prefix (e.g., TABLEBOT_WHATSAPP_ACCESS_TOKEN)
// 2. Unprefixed legacy variables (WHATSAPP_ACCESS_TOKEN, PORT, ...)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return fromViper(v)
}

// fromViper binds the environment and builds the config struct
func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("TABLEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "TABLEBOT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	// Defaults that zero values cannot express; applyDefaults covers the rest
	v.SetDefault("render.no_sandbox", true)
	v.SetDefault("render.unique_names", true)
	v.SetDefault("render.retention", 24*time.Hour)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
		},
		Webhook: WebhookConfig{
			VerifyToken: v.GetString("webhook.verify_token"),
			AppSecret:   v.GetString("webhook.app_secret"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   strings.TrimSpace(v.GetString("whatsapp.access_token")),
			PhoneNumberID: strings.TrimSpace(v.GetString("whatsapp.phone_number_id")),
			APIVersion:    v.GetString("whatsapp.api_version"),
			BaseURL:       v.GetString("whatsapp.base_url"),
			Timeout:       v.GetDuration("whatsapp.timeout"),
		},
		Analytics: AnalyticsConfig{
			BaseURL:       v.GetString("analytics.base_url"),
			Timeout:       v.GetDuration("analytics.timeout"),
			PreferredShop: v.GetString("analytics.preferred_shop"),
			FallbackShop:  v.GetString("analytics.fallback_shop"),
			ShopCacheTTL:  v.GetDuration("analytics.shop_cache_ttl"),
		},
		Render: RenderConfig{
			OutputDir:         v.GetString("render.output_dir"),
			StagingDir:        v.GetString("render.staging_dir"),
			UniqueNames:       v.GetBool("render.unique_names"),
			LaunchTimeout:     v.GetDuration("render.launch_timeout"),
			LoadTimeout:       v.GetDuration("render.load_timeout"),
			CaptureTimeout:    v.GetDuration("render.capture_timeout"),
			ChromePath:        v.GetString("render.chrome_path"),
			ChromeRemoteURL:   v.GetString("render.chrome_remote_url"),
			NoSandbox:         v.GetBool("render.no_sandbox"),
			EscapeValues:      v.GetBool("render.escape_values"),
			Title:             v.GetString("render.title"),
			Retention:         v.GetDuration("render.retention"),
			RetentionInterval: v.GetDuration("render.retention_interval"),
		},
		Storage: StorageConfig{
			Driver:        v.GetString("storage.driver"),
			PublicBaseURL: strings.TrimRight(v.GetString("storage.public_base_url"), "/"),
			S3: S3Config{
				Bucket:          v.GetString("storage.s3.bucket"),
				Region:          v.GetString("storage.s3.region"),
				Endpoint:        v.GetString("storage.s3.endpoint"),
				AccessKeyID:     v.GetString("storage.s3.access_key_id"),
				SecretAccessKey: v.GetString("storage.s3.secret_access_key"),
				Prefix:          v.GetString("storage.s3.prefix"),
				UsePathStyle:    v.GetBool("storage.s3.use_path_style"),
				PresignExpiry:   v.GetDuration("storage.s3.presign_expiry"),
				CreateBucket:    v.GetBool("storage.s3.create_bucket"),
			},
		},
		Cache: CacheConfig{
			Driver:         v.GetString("cache.driver"),
			IdempotencyTTL: v.GetDuration("cache.idempotency_ttl"),
			CleanupPeriod:  v.GetDuration("cache.cleanup_period"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Bot: BotConfig{
			MaxConcurrent:  v.GetInt("bot.max_concurrent"),
			MessageTimeout: v.GetDuration("bot.message_timeout"),
			DefaultPrompt:  v.GetString("bot.default_prompt"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
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
		cfg.App.Name = "tablebot"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "3000"
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
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.WhatsApp.APIVersion == "" {
		cfg.WhatsApp.APIVersion = "v22.0"
	}
	if cfg.WhatsApp.BaseURL == "" {
		cfg.WhatsApp.BaseURL = "https://graph.facebook.com"
	}
	if cfg.WhatsApp.Timeout == 0 {
		cfg.WhatsApp.Timeout = 15 * time.Second
	}
	if cfg.Analytics.BaseURL == "" {
		cfg.Analytics.BaseURL = "https://query-processor-937194857721.europe-west1.run.app"
	}
	if cfg.Analytics.Timeout == 0 {
		cfg.Analytics.Timeout = 60 * time.Second
	}
	if cfg.Analytics.PreferredShop == "" {
		cfg.Analytics.PreferredShop = "dlabparism6BFF685A"
	}
	if cfg.Analytics.FallbackShop == "" {
		cfg.Analytics.FallbackShop = "default_shop"
	}
	if cfg.Analytics.ShopCacheTTL == 0 {
		cfg.Analytics.ShopCacheTTL = time.Hour
	}
	if cfg.Render.OutputDir == "" {
		cfg.Render.OutputDir = "output"
	}
	if cfg.Render.LaunchTimeout == 0 {
		cfg.Render.LaunchTimeout = 30 * time.Second
	}
	if cfg.Render.LoadTimeout == 0 {
		cfg.Render.LoadTimeout = 30 * time.Second
	}
	if cfg.Render.CaptureTimeout == 0 {
		cfg.Render.CaptureTimeout = 30 * time.Second
	}
	if cfg.Render.RetentionInterval == 0 {
		cfg.Render.RetentionInterval = time.Hour
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "local"
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}
	if cfg.Storage.S3.Prefix == "" {
		cfg.Storage.S3.Prefix = "tables"
	}
	if cfg.Storage.S3.PresignExpiry == 0 {
		cfg.Storage.S3.PresignExpiry = 15 * time.Minute
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	if cfg.Cache.IdempotencyTTL == 0 {
		cfg.Cache.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Cache.CleanupPeriod == 0 {
		cfg.Cache.CleanupPeriod = 10 * time.Minute
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "none"
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
		cfg.Database.DBName = "tablebot"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "tablebot.db"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 200 * time.Millisecond
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Bot.MaxConcurrent == 0 {
		cfg.Bot.MaxConcurrent = 4
	}
	if cfg.Bot.MessageTimeout == 0 {
		cfg.Bot.MessageTimeout = 2 * time.Minute
	}
	if cfg.Bot.DefaultPrompt == "" {
		cfg.Bot.DefaultPrompt = "compare CA janvier 2024 et 2025"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.SamplingRatio <= 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "local", "s3":
	default:
		return fmt.Errorf("storage.driver must be 'local' or 's3', got %q", c.Storage.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.driver must be 'memory' or 'redis', got %q", c.Cache.Driver)
	}
	switch c.Database.Driver {
	case "none", "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be 'none', 'postgres' or 'sqlite', got %q", c.Database.Driver)
	}

	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %v", c.Telemetry.SamplingRatio)
	}
	if c.Bot.MaxConcurrent < 0 {
		return fmt.Errorf("bot.max_concurrent cannot be negative")
	}
	if c.Storage.Driver == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when storage.driver is 's3'")
	}
	if c.Storage.PublicBaseURL != "" {
		u, err := url.Parse(c.Storage.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("storage.public_base_url must be an absolute URL, got %q", c.Storage.PublicBaseURL)
		}
	}

	if c.App.IsProduction() {
		if c.Webhook.VerifyToken == "" {
			return fmt.Errorf("webhook.verify_token is required in production")
		}
		if c.WhatsApp.AccessToken == "" {
			return fmt.Errorf("whatsapp.access_token is required in production")
		}
		if c.WhatsApp.PhoneNumberID == "" {
			return fmt.Errorf("whatsapp.phone_number_id is required in production")
		}
		if c.Storage.Driver == "local" && c.Storage.PublicBaseURL == "" {
			return fmt.Errorf("storage.public_base_url is required in production with the local storage driver")
		}
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
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
