package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestDefaultCircuitBreakerConfig_MatchesErrorhandlerDefaults(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig()
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 3, cfg.HalfOpenMaxProbes)
	assert.Equal(t, 2, cfg.SuccessThresholdInHalfOpen)
}

func TestDefaultPersistenceConfig_IsMemoryBackend(t *testing.T) {
	cfg := DefaultPersistenceConfig()
	assert.Equal(t, "memory", cfg.Backend)
}
