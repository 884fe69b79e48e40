package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

const (
	OutcomeSuccess        = "success"
	OutcomeRejected       = "rejected"
	OutcomeRolledBack     = "rolled_back"
	OutcomeRollbackFailed = "rollback_failed"
)

// Metrics exposes the coordination instruments.
type Metrics struct {
	accountCreation metric.Int64Counter
	rollbacks       metric.Int64Counter
	groupMembership metric.Int64Counter
	enquiries       metric.Int64Counter
	assignments     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "counseling"
	}
	meter := provider.Meter(name)

	accountCreation, err := meter.Int64Counter("counseling_account_creation_total")
	if err != nil {
		return nil, err
	}
	rollbacks, err := meter.Int64Counter("counseling_rollback_total")
	if err != nil {
		return nil, err
	}
	groupMembership, err := meter.Int64Counter("counseling_group_membership_total")
	if err != nil {
		return nil, err
	}
	enquiries, err := meter.Int64Counter("counseling_enquiry_total")
	if err != nil {
		return nil, err
	}
	assignments, err := meter.Int64Counter("counseling_assignment_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		accountCreation: accountCreation,
		rollbacks:       rollbacks,
		groupMembership: groupMembership,
		enquiries:       enquiries,
		assignments:     assignments,
	}, nil
}

// NewNoop returns instruments bound to a no-op provider; used by tests and tools.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordAccountCreation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.accountCreation.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", outcome),
	)...))
}

// RecordRollback counts one compensation run per source (account, group_membership, enquiry).
func (m *Metrics) RecordRollback(ctx context.Context, sourceType, outcome string) {
	if m == nil {
		return
	}
	m.rollbacks.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("source_type", strings.TrimSpace(sourceType)),
		attribute.String("outcome", outcome),
	)...))
}

func (m *Metrics) RecordGroupMembership(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	m.groupMembership.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)...))
}

func (m *Metrics) RecordEnquiry(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.enquiries.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", outcome),
	)...))
}

func (m *Metrics) RecordAssignment(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.assignments.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", outcome),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":     {},
	"operation":   {},
	"source_type": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
