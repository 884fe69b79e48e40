package observability

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/counseling/internal/observability/logger"
	"github.com/smallbiznis/counseling/internal/observability/metrics"
	"github.com/smallbiznis/counseling/internal/observability/tracing"
)

var Module = fx.Module("observability",
	fx.Provide(
		FromApp,
		func(c Config) logger.Config { return c.logger() },
		logger.New,
		func(c Config) tracing.Config { return c.tracing() },
		tracing.NewProvider,
		func(c Config) metrics.Config { return c.metrics() },
		metrics.NewProvider,
		metrics.New,
	),
	fx.Invoke(announce),
)

// announce forces the tracer provider to be built at startup.
func announce(c Config, _ *sdktrace.TracerProvider, log *zap.Logger) {
	log.Info("observability ready",
		zap.String("service", c.ServiceName),
		zap.Bool("otel_enabled", c.Telemetry.Enabled),
		zap.String("log_format", c.Log.Format),
	)
}
