package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Environment constants
const (
	EnvProduction = "production"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Auth      AuthConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	SMTP      SMTPConfig
	Export    ExportConfig
	Scan      ScanConfig
	Jobs      JobsConfig
	Tracing   TracingConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration // Per-request handler timeout
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host          string
	Port          int
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	TLSEnabled    bool
	TLSSkipVerify bool
	MaxRetries    int
	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string

	// Sampling configuration for high-traffic production environments
	SamplingEnabled   bool    // Enable log sampling (default: false for dev, true for prod)
	SamplingThreshold int     // First N identical logs per second (default: 100)
	SamplingRate      float64 // Sample rate after threshold, 0.0-1.0 (default: 0.1 = 10%)
	ErrorSamplingRate float64 // Sample rate for errors, 0.0-1.0 (default: 1.0 = 100%)

	// Async log delivery
	AsyncEnabled    bool
	AsyncBufferSize int

	// HTTP logging configuration
	SkipHealthLogs     bool // Skip logging health check endpoints (default: true in prod)
	SlowRequestSeconds int  // Log requests slower than this as warnings (default: 5)
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// JWT settings
	JWTSecret            string        // Secret key for signing JWTs (required)
	JWTIssuer            string        // Token issuer claim
	AccessTokenDuration  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenDuration time.Duration // Refresh token lifetime (default: 7d)

	// Password policy
	PasswordMinLength      int  // Minimum password length (default: 8)
	PasswordRequireUpper   bool // Require uppercase letter
	PasswordRequireLower   bool // Require lowercase letter
	PasswordRequireNumber  bool // Require number
	PasswordRequireSpecial bool // Require special character

	// Security settings
	MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
	LockoutDuration  time.Duration // Account lockout duration (default: 15m)

	// Registration settings
	AllowRegistration bool // Allow new user registration (default: true)
}

// SMTPConfig holds SMTP configuration for sending emails.
type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	FromName   string
	TLS        bool
	SkipVerify bool
	Enabled    bool
	BaseURL    string // Frontend base URL for links embedded in emails
	Timeout    time.Duration
}

// IsConfigured returns true if SMTP is properly configured.
func (c *SMTPConfig) IsConfigured() bool {
	return c.Enabled && c.Host != "" && c.Port > 0 && c.From != ""
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// RateLimitConfig holds request admission configuration.
// Admission uses a fixed window per client IP, method and path, counted in
// Redis; the local fields feed the per-IP token bucket that sheds floods
// before they reach the counter store.
type RateLimitConfig struct {
	Enabled     bool
	MaxRequests int           // Requests allowed per window (default: 100)
	Window      time.Duration // Window length (default: 60s)

	LocalRequestsPerSec  float64       // Per-IP token refill rate (default: 50)
	LocalBurst           int           // Per-IP bucket size (default: 100)
	LocalCleanupInterval time.Duration // Idle-visitor sweep interval (default: 1m)
}

// ExportConfig holds report export configuration.
type ExportConfig struct {
	// S3 upload target. When disabled, artifacts are written to the
	// local filesystem and the result carries no download URL.
	S3Enabled      bool
	S3Bucket       string
	S3Region       string
	S3Endpoint     string // Custom endpoint for S3-compatible stores (MinIO, LocalStack)
	S3UsePathStyle bool
	S3AccessKey    string // Static credentials; empty falls back to the SDK default chain
	S3SecretKey    string
	S3RoleARN      string // Optional role to assume for uploads
	S3Prefix       string // Key prefix inside the bucket (default: "exports")
	PresignTTL     time.Duration
	LocalDir       string // Filesystem fallback directory; empty means the system temp dir
}

// ScanConfig holds scan engine configuration.
type ScanConfig struct {
	CheckTimeout time.Duration // HTTP timeout per individual check (default: 10s)
	MaxRedirects int           // Redirect limit for content fetches (default: 5)
	UserAgent    string

	// Watchdog for scans stuck in progress after a worker crash.
	StaleAfter       time.Duration // In-progress scans older than this are failed (default: 30m)
	WatchdogInterval time.Duration // How often the watchdog runs (default: 5m)

	// EventChannel is the Redis pub/sub channel prefix for scan progress events.
	EventChannel string
}

// JobsConfig holds background job queue configuration.
type JobsConfig struct {
	Concurrency int           // Worker concurrency (default: 10)
	Queue       string        // Queue name for scan tasks (default: "scans")
	MaxRetry    int           // Max retries for failed tasks (default: 3)
	TaskTimeout time.Duration // Per-task deadline before Asynq retries it (default: 5m)
}

// TracingConfig holds OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string // OTLP HTTP endpoint (default: "localhost:4318")
	Insecure    bool
	SampleRate  float64
	ServiceName string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "webscan"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false), // Default false for safety
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second), // Per-request timeout
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 1<<20), // 1MB default
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "webscan"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "webscan"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			PoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:  getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			TLSEnabled:    getEnvBool("REDIS_TLS_ENABLED", false),
			TLSSkipVerify: getEnvBool("REDIS_TLS_SKIP_VERIFY", false),
			MaxRetries:    getEnvInt("REDIS_MAX_RETRIES", 3),
			MinRetryDelay: getEnvDuration("REDIS_MIN_RETRY_DELAY", 100*time.Millisecond),
			MaxRetryDelay: getEnvDuration("REDIS_MAX_RETRY_DELAY", 3*time.Second),
		},
		Log: LogConfig{
			Level:              getEnv("LOG_LEVEL", "info"), // Default info for safety
			Format:             getEnv("LOG_FORMAT", "json"),
			SamplingEnabled:    getEnvBool("LOG_SAMPLING_ENABLED", false),   // Enable via env for production
			SamplingThreshold:  getEnvInt("LOG_SAMPLING_THRESHOLD", 100),    // First 100 identical logs/sec
			SamplingRate:       getEnvFloat("LOG_SAMPLING_RATE", 0.1),       // Then 10%
			ErrorSamplingRate:  getEnvFloat("LOG_ERROR_SAMPLING_RATE", 1.0), // Always log errors
			AsyncEnabled:       getEnvBool("LOG_ASYNC_ENABLED", false),
			AsyncBufferSize:    getEnvInt("LOG_ASYNC_BUFFER_SIZE", 10000),
			SkipHealthLogs:     getEnvBool("LOG_SKIP_HEALTH", true),      // Skip health endpoints
			SlowRequestSeconds: getEnvInt("LOG_SLOW_REQUEST_SECONDS", 5), // Warn on slow requests
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer:              getEnv("AUTH_JWT_ISSUER", "webscan-api"),
			AccessTokenDuration:    getEnvDuration("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration:   getEnvDuration("AUTH_REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			PasswordMinLength:      getEnvInt("AUTH_PASSWORD_MIN_LENGTH", 8),
			PasswordRequireUpper:   getEnvBool("AUTH_PASSWORD_REQUIRE_UPPERCASE", true),
			PasswordRequireLower:   getEnvBool("AUTH_PASSWORD_REQUIRE_LOWERCASE", true),
			PasswordRequireNumber:  getEnvBool("AUTH_PASSWORD_REQUIRE_NUMBER", true),
			PasswordRequireSpecial: getEnvBool("AUTH_PASSWORD_REQUIRE_SPECIAL", false),
			MaxLoginAttempts:       getEnvInt("AUTH_MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:        getEnvDuration("AUTH_LOCKOUT_DURATION", 15*time.Minute),
			AllowRegistration:      getEnvBool("AUTH_ALLOW_REGISTRATION", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 86400),
		},
		RateLimit: RateLimitConfig{
			Enabled:              getEnvBool("RATE_LIMIT_ENABLED", true),
			MaxRequests:          getEnvInt("RATE_LIMIT_MAX_REQUESTS", 100),
			Window:               getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
			LocalRequestsPerSec:  getEnvFloat("RATE_LIMIT_LOCAL_RPS", 50),
			LocalBurst:           getEnvInt("RATE_LIMIT_LOCAL_BURST", 100),
			LocalCleanupInterval: getEnvDuration("RATE_LIMIT_LOCAL_CLEANUP_INTERVAL", time.Minute),
		},
		SMTP: SMTPConfig{
			Enabled:    getEnvBool("SMTP_ENABLED", false),
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvInt("SMTP_PORT", 587),
			User:       getEnv("SMTP_USER", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("SMTP_FROM", ""),
			FromName:   getEnv("SMTP_FROM_NAME", "WebScan"),
			TLS:        getEnvBool("SMTP_TLS", true),
			SkipVerify: getEnvBool("SMTP_SKIP_VERIFY", false),
			BaseURL:    getEnv("SMTP_BASE_URL", "http://localhost:3000"), // Frontend URL for email links
			Timeout:    getEnvDuration("SMTP_TIMEOUT", 30*time.Second),
		},
		Export: ExportConfig{
			S3Enabled:      getEnvBool("EXPORT_S3_ENABLED", false),
			S3Bucket:       getEnv("EXPORT_S3_BUCKET", ""),
			S3Region:       getEnv("EXPORT_S3_REGION", "us-east-1"),
			S3Endpoint:     getEnv("EXPORT_S3_ENDPOINT", ""),
			S3UsePathStyle: getEnvBool("EXPORT_S3_USE_PATH_STYLE", false),
			S3AccessKey:    getEnv("EXPORT_S3_ACCESS_KEY", ""),
			S3SecretKey:    getEnv("EXPORT_S3_SECRET_KEY", ""),
			S3RoleARN:      getEnv("EXPORT_S3_ROLE_ARN", ""),
			S3Prefix:       getEnv("EXPORT_S3_PREFIX", "exports"),
			PresignTTL:     getEnvDuration("EXPORT_PRESIGN_TTL", 15*time.Minute),
			LocalDir:       getEnv("EXPORT_LOCAL_DIR", ""),
		},
		Scan: ScanConfig{
			CheckTimeout:     getEnvDuration("SCAN_CHECK_TIMEOUT", 10*time.Second),
			MaxRedirects:     getEnvInt("SCAN_MAX_REDIRECTS", 5),
			UserAgent:        getEnv("SCAN_USER_AGENT", "webscan/1.0"),
			StaleAfter:       getEnvDuration("SCAN_STALE_AFTER", 30*time.Minute),
			WatchdogInterval: getEnvDuration("SCAN_WATCHDOG_INTERVAL", 5*time.Minute),
			EventChannel:     getEnv("SCAN_EVENT_CHANNEL", "scan:events"),
		},
		Jobs: JobsConfig{
			Concurrency: getEnvInt("JOBS_CONCURRENCY", 10),
			Queue:       getEnv("JOBS_QUEUE", "scans"),
			MaxRetry:    getEnvInt("JOBS_MAX_RETRY", 3),
			TaskTimeout: getEnvDuration("JOBS_TASK_TIMEOUT", 5*time.Minute),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("TRACING_OTLP_ENDPOINT", "localhost:4318"),
			Insecure:    getEnvBool("TRACING_OTLP_INSECURE", true),
			SampleRate:  getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "webscan-api"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.validateBasic(); err != nil {
		return err
	}
	if c.App.Env == EnvProduction {
		return c.validateProduction()
	}
	return nil
}

// validateBasic validates basic configuration regardless of environment.
func (c *Config) validateBasic() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateLog(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	return nil
}

// validateAuth validates authentication configuration.
func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.PasswordMinLength < 6 {
		return fmt.Errorf("AUTH_PASSWORD_MIN_LENGTH must be at least 6")
	}
	if c.Auth.MaxLoginAttempts < 1 {
		return fmt.Errorf("AUTH_MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	return nil
}

// validateLog validates logging configuration.
func (c *Config) validateLog() error {
	// Validate log level
	validLevels := map[string]bool{
		"debug": true, "DEBUG": true,
		"info": true, "INFO": true,
		"warn": true, "WARN": true,
		"error": true, "ERROR": true,
	}
	if c.Log.Level != "" && !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	// Validate log format
	validFormats := map[string]bool{
		"json": true, "JSON": true,
		"text": true, "TEXT": true,
		"": true, // Empty is allowed (defaults to json)
	}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be json or text)", c.Log.Format)
	}

	// Validate sampling rate bounds
	if c.Log.SamplingRate < 0.0 || c.Log.SamplingRate > 1.0 {
		return fmt.Errorf("LOG_SAMPLING_RATE must be between 0.0 and 1.0, got %f", c.Log.SamplingRate)
	}

	// Validate error sampling rate bounds
	if c.Log.ErrorSamplingRate < 0.0 || c.Log.ErrorSamplingRate > 1.0 {
		return fmt.Errorf("LOG_ERROR_SAMPLING_RATE must be between 0.0 and 1.0, got %f", c.Log.ErrorSamplingRate)
	}

	// Validate sampling threshold
	if c.Log.SamplingThreshold < 0 {
		return fmt.Errorf("LOG_SAMPLING_THRESHOLD must be non-negative, got %d", c.Log.SamplingThreshold)
	}

	// Validate slow request threshold
	if c.Log.SlowRequestSeconds < 0 {
		return fmt.Errorf("LOG_SLOW_REQUEST_SECONDS must be non-negative, got %d", c.Log.SlowRequestSeconds)
	}

	return nil
}

// validateRateLimit validates request admission configuration.
func (c *Config) validateRateLimit() error {
	if !c.RateLimit.Enabled {
		return nil
	}
	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be at least 1, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window < time.Second {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s, got %v", c.RateLimit.Window)
	}
	if c.RateLimit.LocalRequestsPerSec <= 0 {
		return fmt.Errorf("RATE_LIMIT_LOCAL_RPS must be positive, got %v", c.RateLimit.LocalRequestsPerSec)
	}
	if c.RateLimit.LocalBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_LOCAL_BURST must be at least 1, got %d", c.RateLimit.LocalBurst)
	}
	if c.RateLimit.LocalCleanupInterval < time.Second {
		return fmt.Errorf("RATE_LIMIT_LOCAL_CLEANUP_INTERVAL must be at least 1s, got %v", c.RateLimit.LocalCleanupInterval)
	}
	return nil
}

// validateExport validates export configuration.
func (c *Config) validateExport() error {
	if !c.Export.S3Enabled {
		return nil
	}
	if c.Export.S3Bucket == "" {
		return fmt.Errorf("EXPORT_S3_BUCKET is required when S3 export is enabled")
	}
	if c.Export.S3Region == "" {
		return fmt.Errorf("EXPORT_S3_REGION is required when S3 export is enabled")
	}
	return nil
}

// validateScan validates scan engine configuration.
func (c *Config) validateScan() error {
	if c.Scan.CheckTimeout < time.Second {
		return fmt.Errorf("SCAN_CHECK_TIMEOUT must be at least 1s, got %v", c.Scan.CheckTimeout)
	}
	if c.Scan.MaxRedirects < 0 {
		return fmt.Errorf("SCAN_MAX_REDIRECTS must be non-negative, got %d", c.Scan.MaxRedirects)
	}
	if c.Scan.StaleAfter <= 0 {
		return fmt.Errorf("SCAN_STALE_AFTER must be positive, got %v", c.Scan.StaleAfter)
	}
	if c.Jobs.Concurrency < 1 {
		return fmt.Errorf("JOBS_CONCURRENCY must be at least 1, got %d", c.Jobs.Concurrency)
	}
	return nil
}

// validateProduction validates production-specific configuration.
func (c *Config) validateProduction() error {
	if err := c.validateProductionSecurity(); err != nil {
		return err
	}
	if err := c.validateProductionRedis(); err != nil {
		return err
	}
	if err := c.validateProductionAuth(); err != nil {
		return err
	}
	return nil
}

// validateProductionAuth validates auth configuration for production.
func (c *Config) validateProductionAuth() error {
	// Ensure strong JWT secret in production
	if len(c.Auth.JWTSecret) < 64 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 64 characters in production")
	}
	// Ensure reasonable password policy
	if c.Auth.PasswordMinLength < 8 {
		return fmt.Errorf("AUTH_PASSWORD_MIN_LENGTH must be at least 8 in production")
	}
	return nil
}

// validateProductionSecurity validates security settings for production.
func (c *Config) validateProductionSecurity() error {
	if slices.Contains(c.CORS.AllowedOrigins, "*") {
		return fmt.Errorf("CORS wildcard origin not allowed in production")
	}
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database SSL must be enabled in production (use 'require' or 'verify-full')")
	}
	if !c.RateLimit.Enabled {
		return fmt.Errorf("rate limiting must be enabled in production")
	}
	if c.App.Debug {
		return fmt.Errorf("debug mode must be disabled in production")
	}
	if c.Log.Level == "debug" {
		return fmt.Errorf("log level should not be 'debug' in production")
	}
	return nil
}

// validateProductionRedis validates Redis configuration for production.
func (c *Config) validateProductionRedis() error {
	if c.Redis.Password == "" {
		return fmt.Errorf("redis password must be set in production")
	}
	if len(c.Redis.Password) < 32 {
		return fmt.Errorf("redis password must be at least 32 characters in production")
	}
	if !c.Redis.TLSEnabled {
		return fmt.Errorf("redis TLS must be enabled in production")
	}
	if c.Redis.TLSSkipVerify {
		return fmt.Errorf("redis TLS skip verify must be false in production")
	}
	if c.Redis.PoolSize < 10 || c.Redis.PoolSize > 500 {
		return fmt.Errorf("redis pool size must be between 10 and 500 in production, got %d", c.Redis.PoolSize)
	}
	if c.Redis.DialTimeout < time.Second {
		return fmt.Errorf("redis dial timeout too short: %v (min 1s)", c.Redis.DialTimeout)
	}
	if c.Redis.ReadTimeout < time.Second {
		return fmt.Errorf("redis read timeout too short: %v (min 1s)", c.Redis.ReadTimeout)
	}
	if c.Redis.WriteTimeout < time.Second {
		return fmt.Errorf("redis write timeout too short: %v (min 1s)", c.Redis.WriteTimeout)
	}
	if c.Redis.MaxRetries < 1 || c.Redis.MaxRetries > 10 {
		return fmt.Errorf("redis max retries must be between 1 and 10, got %d", c.Redis.MaxRetries)
	}
	return nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP server address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if the application is in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction returns true if the application is in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, v := range splitAndTrim(value, ",") {
			if v != "" {
				result = append(result, v)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, sep) {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
