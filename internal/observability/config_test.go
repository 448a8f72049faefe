package observability

import (
	"testing"

	"github.com/smallbiznis/crewbill/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "HTTP")

	cfg := LoadConfig(config.Config{Environment: "production", AppVersion: "1.2.0"})

	assert.Equal(t, "crewbill", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.False(t, cfg.OtelEnabled)
	assert.False(t, cfg.Debug())
}

func TestDebugFollowsEnvironment(t *testing.T) {
	assert.True(t, Config{Environment: "development"}.Debug())
	assert.True(t, Config{LogLevel: "debug", Environment: "production"}.Debug())
	assert.False(t, Config{Environment: "staging"}.Debug())
}
