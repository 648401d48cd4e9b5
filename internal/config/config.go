// Package config provides configuration management for the order service.
//
// Config is a single struct assembled from YAML plus environment overrides,
// validated with struct tags so a malformed deployment fails fast at
// startup rather than degrading silently at request time.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete application configuration. Every field maps to a
// knob consumed by one of the cross-cutting components (resilience, cache,
// admission, lifecycle, pagination); nothing here is business configuration.
type Config struct {
	Environment Environment `yaml:"environment" validate:"required,oneof=development staging production"`
	Server      Server      `yaml:"server" validate:"required"`

	Pagination      Pagination      `yaml:"pagination" validate:"required"`
	Cache           Cache           `yaml:"cache" validate:"required"`
	RateLimiting    RateLimiting    `yaml:"rateLimiting" validate:"required"`
	RequestTimeout  RequestTimeout  `yaml:"requestTimeout" validate:"required"`
	GracefulShutdown GracefulShutdown `yaml:"gracefulShutdown" validate:"required"`
	Resilience      Resilience      `yaml:"resilience" validate:"required"`

	Logging Logging `yaml:"logging"`
	Metrics Metrics `yaml:"metrics"`
	Tracing Tracing `yaml:"tracing"`

	Version    string   `yaml:"version"`
	LoadedFrom []string `yaml:"-"`
}

type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Server contains the HTTP entrypoint knobs. Route wiring and DTO shapes are
// out of scope; only the timeouts the lifecycle component needs live here.
type Server struct {
	Host         string        `yaml:"host" validate:"required"`
	Port         int           `yaml:"port" validate:"required,min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"readTimeout" validate:"required,min=1s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" validate:"required,min=1s"`
	IdleTimeout  time.Duration `yaml:"idleTimeout" validate:"required,min=1s"`
}

// Pagination configures the OData-style paginated query protocol (C6).
type Pagination struct {
	DefaultPageSize     int  `yaml:"defaultPageSize" validate:"required,min=1"`
	MaxPageSize         int  `yaml:"maxPageSize" validate:"required,min=1,gtefield=DefaultPageSize"`
	DefaultIncludeCount bool `yaml:"defaultIncludeCount"`
}

// Cache configures the two-tier cache core (C2).
type Cache struct {
	Local  LocalCache  `yaml:"local"`
	Remote RemoteCache `yaml:"remote"`
}

type LocalCache struct {
	Enabled  bool `yaml:"enabled"`
	MaxItems int  `yaml:"maxItems" validate:"required_if=Enabled true,omitempty,min=1"`
}

type RemoteCache struct {
	Enabled           bool          `yaml:"enabled"`
	Addr              string        `yaml:"addr" validate:"required_if=Enabled true"`
	TTL               time.Duration `yaml:"ttlSeconds"`
	LockTimeout       time.Duration `yaml:"lockTimeoutSeconds" validate:"required_if=Enabled true,omitempty,min=1s"`
	LockWaitTimeout   time.Duration `yaml:"lockWaitTimeoutMs" validate:"required_if=Enabled true,omitempty,min=1ms"`
	LockRetryDelay    time.Duration `yaml:"lockRetryDelayMs" validate:"required_if=Enabled true,omitempty,min=1ms"`
}

// RateLimiting configures the pressure-sampling admission controller (C4).
type RateLimiting struct {
	MemoryThresholdPercent     float64       `yaml:"memoryThresholdPercent" validate:"min=0,max=100"`
	ThreadPoolThresholdPercent float64       `yaml:"threadPoolThresholdPercent" validate:"min=0,max=100"`
	PendingWorkItemsThreshold  int           `yaml:"pendingWorkItemsThreshold" validate:"min=0"`
	CheckInterval              time.Duration `yaml:"checkIntervalMs" validate:"required,min=1ms"`
	RetryAfter                 time.Duration `yaml:"retryAfterSeconds" validate:"required,min=1s"`
}

// RequestTimeout configures per-request and per-route deadlines (C5).
type RequestTimeout struct {
	DefaultTimeout  time.Duration            `yaml:"defaultTimeoutSeconds" validate:"required,min=1s"`
	EndpointTimeout map[string]time.Duration `yaml:"endpointTimeouts"`
}

// GracefulShutdown configures the drain deadline (C5).
type GracefulShutdown struct {
	ShutdownTimeout time.Duration `yaml:"shutdownTimeoutSeconds" validate:"required,min=1s"`
}

// Resilience configures the per-kind retry/breaker/timeout policy (C1).
type Resilience struct {
	PrimaryStore DependencyPolicy `yaml:"primaryStore" validate:"required"`
	Cache        DependencyPolicy `yaml:"cache" validate:"required"`
}

type DependencyPolicy struct {
	Retry          RetryPolicy          `yaml:"retry"`
	CircuitBreaker CircuitBreakerPolicy `yaml:"circuitBreaker"`
	Timeout        time.Duration        `yaml:"timeout" validate:"required,min=1ms"`
}

type RetryPolicy struct {
	MaxAttempts int           `yaml:"maxAttempts" validate:"min=0"`
	BaseDelay   time.Duration `yaml:"baseDelay" validate:"min=0"`
	MaxDelay    time.Duration `yaml:"maxDelay" validate:"min=0"`
	JitterFrac  float64       `yaml:"jitterFraction" validate:"min=0,max=1"`
}

type CircuitBreakerPolicy struct {
	Window             time.Duration `yaml:"window" validate:"required,min=1s"`
	MinimumThroughput  int           `yaml:"minimumThroughput" validate:"min=1"`
	FailureRatio       float64       `yaml:"failureRatio" validate:"min=0,max=1"`
	OpenDuration       time.Duration `yaml:"openDuration" validate:"required,min=1s"`
}

type Logging struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	SampleRatio float64 `yaml:"sampleRatio" validate:"min=0,max=1"`
}

// Validate runs struct-tag validation over the fully-assembled config.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// Default returns the baseline configuration matching the defaults named in
// spec section 4.1/4.4/4.5/4.6 (PrimaryStore retries=3/200ms, Cache
// retries=2/100ms, sampler period 100ms, default page size 20, etc).
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: Server{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Pagination: Pagination{
			DefaultPageSize:     20,
			MaxPageSize:         100,
			DefaultIncludeCount: false,
		},
		Cache: Cache{
			Local: LocalCache{Enabled: true, MaxItems: 10_000},
			Remote: RemoteCache{
				Enabled:         true,
				Addr:            "localhost:6379",
				TTL:             5 * time.Minute,
				LockTimeout:     10 * time.Second,
				LockWaitTimeout: 500 * time.Millisecond,
				LockRetryDelay:  20 * time.Millisecond,
			},
		},
		RateLimiting: RateLimiting{
			MemoryThresholdPercent:     85,
			ThreadPoolThresholdPercent: 90,
			PendingWorkItemsThreshold:  500,
			CheckInterval:              100 * time.Millisecond,
			RetryAfter:                 10 * time.Second,
		},
		RequestTimeout: RequestTimeout{
			DefaultTimeout:  60 * time.Second,
			EndpointTimeout: map[string]time.Duration{},
		},
		GracefulShutdown: GracefulShutdown{
			ShutdownTimeout: 55 * time.Second,
		},
		Resilience: Resilience{
			PrimaryStore: DependencyPolicy{
				Retry:          RetryPolicy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second, JitterFrac: 0.25},
				CircuitBreaker: CircuitBreakerPolicy{Window: 10 * time.Second, MinimumThroughput: 10, FailureRatio: 0.5, OpenDuration: 30 * time.Second},
				Timeout:        30 * time.Second,
			},
			Cache: DependencyPolicy{
				Retry:          RetryPolicy{MaxAttempts: 2, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second, JitterFrac: 0.25},
				CircuitBreaker: CircuitBreakerPolicy{Window: 10 * time.Second, MinimumThroughput: 20, FailureRatio: 0.5, OpenDuration: 15 * time.Second},
				Timeout:        5 * time.Second,
			},
		},
		Logging: Logging{Level: "info"},
		Metrics: Metrics{Enabled: true, Namespace: "orders"},
		Tracing: Tracing{Enabled: false, SampleRatio: 0.1},
	}
}
