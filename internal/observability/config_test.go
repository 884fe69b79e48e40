package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smallbiznis/counseling/internal/config"
)

func TestFromApp(t *testing.T) {
	cfg := FromApp(config.Config{
		Environment: "production",
		AppVersion:  " 1.4.0 ",
		Log:         config.LogConfig{Level: "info", Format: "json"},
		Telemetry:   config.TelemetryConfig{Enabled: true, Endpoint: "otel:4317", Protocol: "grpc", SamplingRatio: 0.5},
	})

	assert.Equal(t, "counseling", cfg.ServiceName)
	assert.Equal(t, "1.4.0", cfg.Version)
	assert.False(t, cfg.Debug())
	assert.Equal(t, "otel:4317", cfg.tracing().ExporterEndpoint)
	assert.Equal(t, 0.5, cfg.tracing().SamplingRatio)
	assert.True(t, cfg.metrics().Enabled)
	assert.False(t, cfg.logger().IncludeStackOnError)
}

func TestDebug(t *testing.T) {
	assert.True(t, Config{Environment: "Development"}.Debug())
	assert.True(t, Config{Log: config.LogConfig{Level: "debug"}}.Debug())
	assert.False(t, Config{Environment: "staging"}.Debug())
}
