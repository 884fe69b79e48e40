package observability

import (
	"strings"

	"github.com/smallbiznis/counseling/internal/config"
	"github.com/smallbiznis/counseling/internal/observability/logger"
	"github.com/smallbiznis/counseling/internal/observability/metrics"
	"github.com/smallbiznis/counseling/internal/observability/tracing"
)

const defaultServiceName = "counseling"

// Config is the observability slice of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	Log       config.LogConfig
	Telemetry config.TelemetryConfig
}

func FromApp(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = defaultServiceName
	}
	return Config{
		ServiceName: name,
		Environment: strings.TrimSpace(cfg.Environment),
		Version:     strings.TrimSpace(cfg.AppVersion),
		Log:         cfg.Log,
		Telemetry:   cfg.Telemetry,
	}
}

// Debug turns on verbose request logging and stack traces.
func (c Config) Debug() bool {
	if c.Log.Level == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func (c Config) logger() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.Log.Level,
		Format:              c.Log.Format,
		Debug:               c.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.Telemetry.Enabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.Telemetry.Endpoint,
		ExporterProtocol: c.Telemetry.Protocol,
		SamplingRatio:    c.Telemetry.SamplingRatio,
	}
}

func (c Config) metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.Telemetry.Enabled,
		ExporterEndpoint: c.Telemetry.Endpoint,
		ExporterProtocol: c.Telemetry.Protocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
