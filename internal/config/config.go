package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/freeroute/internal/domain"
	"github.com/davidbz/freeroute/internal/provider/openrouter"
	redisstore "github.com/davidbz/freeroute/internal/store/redis"
)

// Transport backends.
const (
	TransportOpenRouter = "openrouter"
	TransportEcho       = "echo"
)

// Quota counter backends.
const (
	QuotaBackendMemory = "memory"
	QuotaBackendRedis  = "redis"
)

// Config represents the router configuration.
type Config struct {
	Transport  string `env:"LLM_TRANSPORT" envDefault:"openrouter"`
	Server     ServerConfig
	CORS       CORSConfig
	OpenRouter openrouter.Config
	Catalog    CatalogConfig
	Quota      QuotaConfig
	Routing    RoutingConfig
	Executor   ExecutorConfig
	Telemetry  TelemetryConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"120"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// CatalogConfig controls the model catalog cache.
type CatalogConfig struct {
	TTLMinutes int `env:"CATALOG_TTL_MINUTES" envDefault:"60"`
}

// QuotaConfig holds free-tier limits and the counter backend.
type QuotaConfig struct {
	RPM     int    `env:"QUOTA_RPM"     envDefault:"20"`
	RPD     int    `env:"QUOTA_RPD"     envDefault:"1000"`
	Backend string `env:"QUOTA_BACKEND" envDefault:"memory"`
	Redis   redisstore.Config
}

// Limits converts to the tracker's limits.
func (c QuotaConfig) Limits() domain.QuotaConfig {
	return domain.QuotaConfig{RPMLimit: c.RPM, RPDLimit: c.RPD}
}

// RoutingConfig holds the default ranking weights.
type RoutingConfig struct {
	AllowPaidFallback bool    `env:"ROUTING_ALLOW_PAID_FALLBACK" envDefault:"false"`
	FreeBonus         float64 `env:"ROUTING_FREE_BONUS"          envDefault:"100"`
	ContextWeight     float64 `env:"ROUTING_CONTEXT_WEIGHT"      envDefault:"10"`
	HealthWeight      float64 `env:"ROUTING_HEALTH_WEIGHT"       envDefault:"50"`
	CostWeight        float64 `env:"ROUTING_COST_WEIGHT"         envDefault:"30"`
}

// Policy converts to a routing policy.
func (c RoutingConfig) Policy() domain.RoutingPolicy {
	return domain.RoutingPolicy{
		AllowPaidFallback: c.AllowPaidFallback,
		FreeBonus:         c.FreeBonus,
		ContextWeight:     c.ContextWeight,
		HealthWeight:      c.HealthWeight,
		CostWeight:        c.CostWeight,
	}
}

// ExecutorConfig bounds a single execution.
type ExecutorConfig struct {
	MaxFailovers     int `env:"EXECUTOR_MAX_FAILOVERS"      envDefault:"3"`
	MaxRetries       int `env:"EXECUTOR_MAX_RETRIES"        envDefault:"3"`
	MaxTotalTimeMS   int `env:"EXECUTOR_MAX_TOTAL_TIME_MS"  envDefault:"60000"`
	InitialBackoffMS int `env:"EXECUTOR_INITIAL_BACKOFF_MS" envDefault:"500"`
	MaxBackoffMS     int `env:"EXECUTOR_MAX_BACKOFF_MS"     envDefault:"10000"`
}

// Execution converts to the executor's bounds.
func (c ExecutorConfig) Execution() domain.ExecutionConfig {
	return domain.ExecutionConfig{
		MaxFailovers:   c.MaxFailovers,
		MaxRetries:     c.MaxRetries,
		MaxTotalTime:   time.Duration(c.MaxTotalTimeMS) * time.Millisecond,
		InitialBackoff: time.Duration(c.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(c.MaxBackoffMS) * time.Millisecond,
	}
}

// TelemetryConfig sizes the event buffer.
type TelemetryConfig struct {
	MaxEvents int `env:"TELEMETRY_MAX_EVENTS" envDefault:"1000"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out

	Server     *ServerConfig
	CORS       *CORSConfig
	OpenRouter *openrouter.Config
	Catalog    *CatalogConfig
	Quota      *QuotaConfig
	Routing    *RoutingConfig
	Executor   *ExecutorConfig
	Telemetry  *TelemetryConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// Validate reports settings that make startup impossible.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportOpenRouter:
		if c.OpenRouter.APIKey == "" {
			errs = append(errs, errors.New("OPENROUTER_API_KEY is required when LLM_TRANSPORT=openrouter"))
		}
	case TransportEcho:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_TRANSPORT %q", c.Transport))
	}

	switch c.Quota.Backend {
	case QuotaBackendMemory, QuotaBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown QUOTA_BACKEND %q", c.Quota.Backend))
	}

	if c.Quota.RPM < 0 || c.Quota.RPD < 0 {
		errs = append(errs, errors.New("quota limits cannot be negative"))
	}
	if c.Catalog.TTLMinutes <= 0 {
		errs = append(errs, errors.New("CATALOG_TTL_MINUTES must be positive"))
	}
	if c.Telemetry.MaxEvents <= 0 {
		errs = append(errs, errors.New("TELEMETRY_MAX_EVENTS must be positive"))
	}

	return errors.Join(errs...)
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Server:     &cfg.Server,
		CORS:       &cfg.CORS,
		OpenRouter: &cfg.OpenRouter,
		Catalog:    &cfg.Catalog,
		Quota:      &cfg.Quota,
		Routing:    &cfg.Routing,
		Executor:   &cfg.Executor,
		Telemetry:  &cfg.Telemetry,
	}
}
