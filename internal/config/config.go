package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`
	JWTSecret   string `mapstructure:"jwt_secret"`
	Environment string `mapstructure:"environment"`
	LogFile     string `mapstructure:"log_file"`

	Auth      AuthConfig      `mapstructure:"auth"`
	Events    EventConfig     `mapstructure:"events"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
}

// AuthConfig selects the identity provider used to resolve bearer tokens.
type AuthConfig struct {
	Provider     string `mapstructure:"provider"` // jwt or casdoor
	CasdoorURL   string `mapstructure:"casdoor_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Certificate  string `mapstructure:"certificate"`
	Organization string `mapstructure:"organization"`
	AppName      string `mapstructure:"app_name"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
	ServiceName       string `mapstructure:"service_name"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// SweepConfig controls the in-process expiry sweep. A zero interval leaves
// sweeping to the examctl command.
type SweepConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	BatchSize       int `mapstructure:"batch_size"`
}

func (c SweepConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Window returns the rate limit window as a duration
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("jwt_secret", "supersecretkey")
	v.SetDefault("environment", "development")
	v.SetDefault("log_file", "")

	v.SetDefault("auth.provider", "jwt")

	v.SetDefault("events.enabled", true)
	v.SetDefault("events.publisher", "memory")
	v.SetDefault("events.kafka_brokers", "localhost:9092")
	v.SetDefault("events.topic", "exam-events")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.collector_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", "exam-service")

	v.SetDefault("rate_limit.max_requests", 120)
	v.SetDefault("rate_limit.window_seconds", 60)

	v.SetDefault("sweep.interval_seconds", 0)
	v.SetDefault("sweep.batch_size", 200)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("port", "PORT")
	v.BindEnv("database_url", "DATABASE_URL")
	v.BindEnv("redis_url", "REDIS_URL")
	v.BindEnv("jwt_secret", "JWT_SECRET")
	v.BindEnv("environment", "ENVIRONMENT")
	v.BindEnv("log_file", "LOG_FILE")

	// Auth
	v.BindEnv("auth.provider", "AUTH_PROVIDER")
	v.BindEnv("auth.casdoor_url", "CASDOOR_URL")
	v.BindEnv("auth.client_id", "CASDOOR_CLIENT_ID")
	v.BindEnv("auth.client_secret", "CASDOOR_CLIENT_SECRET")
	v.BindEnv("auth.certificate", "CASDOOR_CERTIFICATE")
	v.BindEnv("auth.organization", "CASDOOR_ORGANIZATION")
	v.BindEnv("auth.app_name", "CASDOOR_APP_NAME")

	// Events
	v.BindEnv("events.enabled", "EVENTS_ENABLED")
	v.BindEnv("events.publisher", "EVENTS_PUBLISHER")
	v.BindEnv("events.kafka_brokers", "KAFKA_BROKERS")
	v.BindEnv("events.topic", "EVENTS_TOPIC")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")
	v.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")

	// Rate limit
	v.BindEnv("rate_limit.max_requests", "RATE_LIMIT_MAX_REQUESTS")
	v.BindEnv("rate_limit.window_seconds", "RATE_LIMIT_WINDOW_SECONDS")

	// Expiry sweep
	v.BindEnv("sweep.interval_seconds", "SWEEP_INTERVAL_SECONDS")
	v.BindEnv("sweep.batch_size", "SWEEP_BATCH_SIZE")
}
