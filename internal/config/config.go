package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kode4food/courier/internal/execlog"
	"github.com/kode4food/courier/internal/trigger"
	"github.com/kode4food/courier/pkg/log"
)

type (
	// Config holds configuration settings for the courier engine
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Plan Store
		PlanStoreURL    string
		PlanStorePrefix string

		// Capabilities
		CapabilityEndpoint string
		CapabilityTimeout  time.Duration

		// Inbound mail & plan files
		NATSURL     string
		NATSSubject string
		PlansDir    string

		// Engine
		ExecLogCapacity int
		RegexCacheSize  int
		ShutdownTimeout time.Duration
	}
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultLogLevel        = "info"
	DefaultPlanStoreURL    = "redis://localhost:6379/0"
	DefaultPlanStorePrefix = "courier"
	DefaultNATSSubject     = "courier.mail.incoming"

	DefaultCapabilityTimeout = 30 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultExecLogCapacity   = execlog.DefaultCapacity
	DefaultRegexCacheSize    = trigger.DefaultRegexCacheSize

	MaxCapabilityTimeoutMs = 10 * 60 * 1000 // 10 minutes
	MaxShutdownTimeoutMs   = 5 * 60 * 1000  // 5 minutes
	MaxExecLogCapacity     = 10_000_000
	MaxRegexCacheSize      = 1_000_000
)

var (
	ErrInvalidAPIPort           = errors.New("invalid API port")
	ErrInvalidLogLevel          = errors.New("invalid log level")
	ErrPlanStoreURLEmpty        = errors.New("plan store URL empty")
	ErrInvalidCapabilityTimeout = errors.New(
		"capability timeout must be positive",
	)
	ErrInvalidShutdownTimeout = errors.New(
		"shutdown timeout must be positive",
	)
	ErrInvalidExecLogCapacity = errors.New(
		"execution log capacity must be positive",
	)
	ErrInvalidRegexCacheSize = errors.New(
		"regex cache size must be positive",
	)
	ErrNATSSubjectEmpty = errors.New("NATS subject empty")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// API server, plan store, and engine
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:           DefaultAPIHost,
		APIPort:           DefaultAPIPort,
		LogLevel:          DefaultLogLevel,
		PlanStoreURL:      DefaultPlanStoreURL,
		PlanStorePrefix:   DefaultPlanStorePrefix,
		CapabilityTimeout: DefaultCapabilityTimeout,
		NATSSubject:       DefaultNATSSubject,
		ExecLogCapacity:   DefaultExecLogCapacity,
		RegexCacheSize:    DefaultRegexCacheSize,
		ShutdownTimeout:   DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any numeric env var cannot be parsed or is out of
// range
func (c *Config) LoadFromEnv() error {
	loadEnvString("API_HOST", &c.APIHost)
	loadEnvString("LOG_LEVEL", &c.LogLevel)
	loadEnvString("PLAN_STORE_URL", &c.PlanStoreURL)
	loadEnvString("PLAN_STORE_PREFIX", &c.PlanStorePrefix)
	loadEnvString("CAPABILITY_ENDPOINT", &c.CapabilityEndpoint)
	loadEnvString("NATS_URL", &c.NATSURL)
	loadEnvString("NATS_SUBJECT", &c.NATSSubject)
	loadEnvString("PLANS_DIR", &c.PlansDir)

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"EXEC_LOG_CAPACITY", &c.ExecLogCapacity, 0, MaxExecLogCapacity,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"REGEX_CACHE_SIZE", &c.RegexCacheSize, 0, MaxRegexCacheSize,
	); err != nil {
		return err
	}
	if err := loadEnvMillis(
		"CAPABILITY_TIMEOUT", &c.CapabilityTimeout, MaxCapabilityTimeoutMs,
	); err != nil {
		return err
	}
	return loadEnvMillis(
		"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout, MaxShutdownTimeoutMs,
	)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}

	if c.PlanStoreURL == "" {
		return ErrPlanStoreURLEmpty
	}

	if c.CapabilityTimeout <= 0 {
		return ErrInvalidCapabilityTimeout
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if c.ExecLogCapacity <= 0 {
		return ErrInvalidExecLogCapacity
	}

	if c.RegexCacheSize <= 0 {
		return ErrInvalidRegexCacheSize
	}

	if c.NATSURL != "" && c.NATSSubject == "" {
		return ErrNATSSubjectEmpty
	}

	return nil
}

func loadEnvString(key string, dst *string) {
	if s := os.Getenv(key); s != "" {
		*dst = s
	}
}

func loadEnvMillis(key string, dst *time.Duration, max int64) error {
	ms := dst.Milliseconds()
	if err := loadEnvInt(key, &ms, 0, max); err != nil {
		return err
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
