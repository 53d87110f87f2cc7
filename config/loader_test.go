package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Scheduler.GlobalConcurrency)
	assert.Equal(t, "memory", cfg.Persistence.Backend)
	assert.Equal(t, "memory", cfg.EventBus.Backend)
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
scheduler:
  global_concurrency: 64
persistence:
  backend: gorm
  sql:
    driver: postgres
    host: db.internal
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Scheduler.GlobalConcurrency)
	assert.Equal(t, "gorm", cfg.Persistence.Backend)
	assert.Equal(t, "postgres", cfg.Persistence.SQL.Driver)
	assert.Equal(t, "db.internal", cfg.Persistence.SQL.Host)
}

func TestLoad_EnvOverridesFileAndDefaults(t *testing.T) {
	t.Setenv("TESTPFX_SCHEDULER_GLOBAL_CONCURRENCY", "99")
	t.Setenv("TESTPFX_CIRCUIT_BREAKER_RECOVERY_TIMEOUT", "1m")

	cfg, err := NewLoader().WithEnvPrefix("TESTPFX").Load()
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.Scheduler.GlobalConcurrency)
	assert.Equal(t, time.Minute, cfg.CircuitBreaker.RecoveryTimeout)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/does/not/exist.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Scheduler.GlobalConcurrency, cfg.Scheduler.GlobalConcurrency)
}

func TestLoad_ValidatorRejectsBadConfig(t *testing.T) {
	_, err := NewLoader().WithValidator(func(c *Config) error {
		return c.Validate()
	}).WithEnvPrefix("TESTBAD").Load()
	require.NoError(t, err) // defaults are valid

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  global_concurrency: 0\n"), 0o644))

	_, err = NewLoader().WithConfigPath(path).WithValidator(func(c *Config) error {
		return c.Validate()
	}).Load()
	assert.Error(t, err)
}

func TestConfig_ValidateRejectsUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Persistence.Backend = "unknown"
	assert.Error(t, cfg.Validate())
}

func TestSQLConfig_DSN(t *testing.T) {
	pg := SQLConfig{Driver: "postgres", Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Contains(t, pg.DSN(), "host=h")

	mysql := SQLConfig{Driver: "mysql", Host: "h", Port: 3306, User: "u", Password: "p", Name: "n"}
	assert.Contains(t, mysql.DSN(), "tcp(h:3306)")

	sqlite := SQLConfig{Driver: "sqlite", Name: "file.db"}
	assert.Equal(t, "file.db", sqlite.DSN())

	unknown := SQLConfig{Driver: "unknown"}
	assert.Equal(t, "", unknown.DSN())
}

func TestMustLoad_PanicsOnInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler: [unclosed"), 0o644))
	assert.Panics(t, func() { MustLoad(path) })
}
