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
	"go.opentelemetry.io/otel/sdk/resource"
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

// Metrics exposes bulk invoicing instruments.
type Metrics struct {
	builds            metric.Int64Counter
	invoicesEmitted   metric.Int64Counter
	emissionFailures  metric.Int64Counter
	linkConflicts     metric.Int64Counter
	emittedAmountCent metric.Int64Counter
	submitDuration    metric.Float64Histogram
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

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
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

// New creates the domain instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "crewbill"
	}
	meter := provider.Meter(name)

	builds, err := meter.Int64Counter("crewbill_bulk_builds_total")
	if err != nil {
		return nil, err
	}
	invoicesEmitted, err := meter.Int64Counter("crewbill_invoices_emitted_total")
	if err != nil {
		return nil, err
	}
	emissionFailures, err := meter.Int64Counter("crewbill_invoice_emission_failures_total")
	if err != nil {
		return nil, err
	}
	linkConflicts, err := meter.Int64Counter("crewbill_entry_link_conflicts_total")
	if err != nil {
		return nil, err
	}
	emittedAmount, err := meter.Int64Counter("crewbill_invoiced_amount_cents_total")
	if err != nil {
		return nil, err
	}
	submitDuration, err := meter.Float64Histogram("crewbill_bulk_submit_duration_seconds",
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		builds:            builds,
		invoicesEmitted:   invoicesEmitted,
		emissionFailures:  emissionFailures,
		linkConflicts:     linkConflicts,
		emittedAmountCent: emittedAmount,
		submitDuration:    submitDuration,
	}, nil
}

// RecordBuild counts a customer-group build and its outcome.
func (m *Metrics) RecordBuild(ctx context.Context, orgID, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("outcome", outcome),
	)
	m.builds.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInvoiceEmitted counts a created draft invoice and its amount.
func (m *Metrics) RecordInvoiceEmitted(ctx context.Context, orgID string, amountCents int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.invoicesEmitted.Add(ctx, 1, metric.WithAttributes(attrs...))
	if amountCents > 0 {
		m.emittedAmountCent.Add(ctx, amountCents, metric.WithAttributes(attrs...))
	}
}

// RecordEmissionFailure counts a customer whose invoice could not be created.
func (m *Metrics) RecordEmissionFailure(ctx context.Context, orgID, step string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("step", strings.TrimSpace(step)),
	)
	m.emissionFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLinkConflicts counts entries that another session invoiced first.
func (m *Metrics) RecordLinkConflicts(ctx context.Context, orgID string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.linkConflicts.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordSubmit observes how long one bulk submit took. outcome is "all",
// "partial" or "none" depending on how many customers were invoiced.
func (m *Metrics) RecordSubmit(ctx context.Context, orgID string, attempted, succeeded int, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "partial"
	switch succeeded {
	case attempted:
		outcome = "all"
	case 0:
		outcome = "none"
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("outcome", outcome),
	)
	m.submitDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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
	"org_id":      {},
	"outcome":     {},
	"step":        {},
	"endpoint":    {},
	"status_code": {},
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
