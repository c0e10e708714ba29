package observability

import (
	"testing"

	"github.com/smallbiznis/buildledger/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromServiceConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:        " 1.4.0 ",
		Environment:       "production",
		LogLevel:          "warn",
		LogFormat:         "console",
		OTelEnabled:       true,
		OTLPEndpoint:      "collector:4317",
		OTLPProtocol:      "http",
		OTelSamplingRatio: 2,
	})

	assert.Equal(t, "buildledger", cfg.ServiceName)
	assert.Equal(t, "1.4.0", cfg.Version)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestOtelNeedsAnEndpoint(t *testing.T) {
	cfg := LoadConfig(config.Config{OTelEnabled: true, OTLPEndpoint: " "})
	assert.False(t, cfg.OtelEnabled)
}

func TestDebug(t *testing.T) {
	assert.True(t, Config{Environment: "Local"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "DEBUG"}.Debug())
	assert.False(t, Config{Environment: "staging", LogLevel: "info"}.Debug())
}
