package config

import "time"

// DefaultConfig returns the baseline configuration: in-memory persistence
// and event bus, conservative scheduler/circuit-breaker limits.
func DefaultConfig() *Config {
	return &Config{
		Scheduler:      DefaultSchedulerConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Persistence:    DefaultPersistenceConfig(),
		EventBus:       DefaultEventBusConfig(),
		Log:            DefaultLogConfig(),
		Telemetry:      DefaultTelemetryConfig(),
	}
}

// DefaultSchedulerConfig returns default scheduler limits.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		GlobalConcurrency: 32,
		RatePerSecond:     0, // 0 disables rate limiting
		Burst:             0,
	}
}

// DefaultCircuitBreakerConfig returns default circuit-breaker thresholds,
// matching errorhandler.DefaultCircuitBreakerConfig.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:           5,
		RecoveryTimeout:            30 * time.Second,
		HalfOpenMaxProbes:          3,
		SuccessThresholdInHalfOpen: 2,
	}
}

// DefaultPersistenceConfig returns the in-memory persistence backend.
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		Backend: "memory",
		SQL: SQLConfig{
			Driver:          "sqlite",
			Name:            "workflowcore.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "workflowcore",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
		},
	}
}

// DefaultEventBusConfig returns the in-memory event bus backend.
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{Backend: "memory"}
}

// DefaultLogConfig returns default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns telemetry disabled by default.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "workflowcore",
		SampleRate:   0.1,
	}
}
