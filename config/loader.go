// Configuration loader.
//
// Unified config loading: YAML file + environment variable override.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("WORKFLOWCORE").
//	    Load()
//
// Precedence: defaults -> YAML file -> environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the workflow core's complete configuration tree.
type Config struct {
	Scheduler      SchedulerConfig      `yaml:"scheduler" env:"SCHEDULER"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" env:"CIRCUIT_BREAKER"`
	Persistence    PersistenceConfig    `yaml:"persistence" env:"PERSISTENCE"`
	EventBus       EventBusConfig       `yaml:"event_bus" env:"EVENT_BUS"`
	Telemetry      TelemetryConfig      `yaml:"telemetry" env:"TELEMETRY"`
	Log            LogConfig            `yaml:"log" env:"LOG"`
}

// SchedulerConfig configures scheduler.Limits. PerKindConcurrency/
// PerAgentConcurrency are map-valued and so not settable from a single
// environment variable — set them via the YAML file only.
type SchedulerConfig struct {
	GlobalConcurrency   int            `yaml:"global_concurrency" env:"GLOBAL_CONCURRENCY"`
	PerKindConcurrency  map[string]int `yaml:"per_kind_concurrency" env:"-"`
	PerAgentConcurrency map[string]int `yaml:"per_agent_concurrency" env:"-"`
	RatePerSecond       float64        `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	Burst               int            `yaml:"burst" env:"BURST"`
}

// CircuitBreakerConfig configures errorhandler.CircuitBreakerConfig.
type CircuitBreakerConfig struct {
	FailureThreshold           int           `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	RecoveryTimeout            time.Duration `yaml:"recovery_timeout" env:"RECOVERY_TIMEOUT"`
	HalfOpenMaxProbes          int           `yaml:"half_open_max_probes" env:"HALF_OPEN_MAX_PROBES"`
	SuccessThresholdInHalfOpen int           `yaml:"success_threshold_in_half_open" env:"SUCCESS_THRESHOLD_IN_HALF_OPEN"`
}

// PersistenceConfig selects and configures a WorkflowRepo/ExecutionRepo
// backend.
type PersistenceConfig struct {
	// Backend selects the adapter: memory | gorm | mongo | redis.
	Backend string     `yaml:"backend" env:"BACKEND"`
	SQL     SQLConfig  `yaml:"sql" env:"SQL"`
	Mongo   MongoConfig `yaml:"mongo" env:"MONGO"`
	Redis   RedisConfig `yaml:"redis" env:"REDIS"`
}

// SQLConfig backs the gormstore adapter.
type SQLConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"` // postgres | mysql | sqlite
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// DSN returns the SQL connection string for the configured driver.
func (s *SQLConfig) DSN() string {
	switch s.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.Host, s.Port, s.User, s.Password, s.Name, s.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			s.User, s.Password, s.Host, s.Port, s.Name,
		)
	case "sqlite":
		return s.Name
	default:
		return ""
	}
}

// MongoConfig backs the mongostore adapter.
type MongoConfig struct {
	URI      string `yaml:"uri" env:"URI"`
	Database string `yaml:"database" env:"DATABASE"`
}

// RedisConfig backs the redisstore adapter.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// EventBusConfig selects and configures the events adapter.
type EventBusConfig struct {
	// Backend selects the adapter: memory | ws.
	Backend string `yaml:"backend" env:"BACKEND"`
	WSAddr  string `yaml:"ws_addr" env:"WS_ADDR"`
}

// TelemetryConfig configures the otel tracer provider.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"` // debug | info | warn | error
	Format           string   `yaml:"format" env:"FORMAT"` // json | console
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// Loader is a builder for Config.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a Loader with default environment prefix WORKFLOWCORE.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "WORKFLOWCORE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator registers an additional config validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load builds a Config from defaults, the YAML file (if set), and the
// environment, in that precedence order, then runs registered validators.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads config from path, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads config from the environment only (no file).
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks field-level invariants not already implied by type.
func (c *Config) Validate() error {
	var errs []string

	if c.Scheduler.GlobalConcurrency <= 0 {
		errs = append(errs, "scheduler.global_concurrency must be positive")
	}
	if c.CircuitBreaker.FailureThreshold <= 0 {
		errs = append(errs, "circuit_breaker.failure_threshold must be positive")
	}
	switch c.Persistence.Backend {
	case "memory", "gorm", "mongo", "redis":
	default:
		errs = append(errs, fmt.Sprintf("persistence.backend %q is not one of memory|gorm|mongo|redis", c.Persistence.Backend))
	}
	switch c.EventBus.Backend {
	case "memory", "ws":
	default:
		errs = append(errs, fmt.Sprintf("event_bus.backend %q is not one of memory|ws", c.EventBus.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
