package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"apocaliptyx/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider owns the OpenTelemetry instruments for the economy
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	ledgerTransactionsCounter metric.Int64Counter
	stealAttemptsCounter      metric.Int64Counter
	shieldsAppliedCounter     metric.Int64Counter
	poolRecalcCounter         metric.Int64Counter
	eventsPublishedCounter    metric.Int64Counter
	queryDurationHist         metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{config: cfg}
}

// Initialize sets up the exporter selected by configuration
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		return nil
	}
	mp.initialized = true

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
	case "otlp":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(dialCtx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		return nil
	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			exporter,
			sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
		)),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter(mp.config.OTelServiceName)

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.enabled = true
	log.WithField("exporter", mp.config.OTelExporterType).Info("Metrics provider initialized")
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	var err error

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&mp.ledgerTransactionsCounter, LedgerTransactionsTotal, "Ledger entries written, by transaction type"},
		{&mp.stealAttemptsCounter, StealAttemptsTotal, "Steal attempts, by outcome"},
		{&mp.shieldsAppliedCounter, ShieldsAppliedTotal, "Shields purchased, by tier"},
		{&mp.poolRecalcCounter, PoolRecalculationsTotal, "Pool recalculations, by trigger"},
		{&mp.eventsPublishedCounter, EventsPublishedTotal, "Domain events published after commit"},
	}
	for _, c := range counters {
		*c.target, err = mp.meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.name, err)
		}
	}

	mp.queryDurationHist, err = mp.meter.Float64Histogram(
		DatabaseQueryDuration,
		metric.WithDescription("Duration of unit of work operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create query duration histogram: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the exporter
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp == nil {
		return nil
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

func (mp *MetricsProvider) add(counter metric.Int64Counter, key, value string) {
	if !mp.isEnabled() {
		return
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(attribute.String(key, value)))
}

// RecordLedgerTransaction counts a ledger entry
func (mp *MetricsProvider) RecordLedgerTransaction(txType string) {
	if mp == nil {
		return
	}
	mp.add(mp.ledgerTransactionsCounter, LabelType, txType)
}

// RecordStealAttempt counts a steal attempt by outcome
func (mp *MetricsProvider) RecordStealAttempt(outcome string) {
	if mp == nil {
		return
	}
	mp.add(mp.stealAttemptsCounter, LabelOutcome, outcome)
}

// RecordShieldApplied counts a shield purchase
func (mp *MetricsProvider) RecordShieldApplied(tier string) {
	if mp == nil {
		return
	}
	mp.add(mp.shieldsAppliedCounter, LabelTier, tier)
}

// RecordPoolRecalculation counts a pool recalculation
func (mp *MetricsProvider) RecordPoolRecalculation(trigger string) {
	if mp == nil {
		return
	}
	mp.add(mp.poolRecalcCounter, LabelTrigger, trigger)
}

// RecordEventPublished counts a domain event leaving the process
func (mp *MetricsProvider) RecordEventPublished(eventType string) {
	if mp == nil {
		return
	}
	mp.add(mp.eventsPublishedCounter, LabelEventType, eventType)
}

// MeasureOperation returns a func that records the elapsed time of operation.
//
//	defer mp.MeasureOperation("attempt_steal")()
func (mp *MetricsProvider) MeasureOperation(operation string) func() {
	start := time.Now()
	return func() {
		if mp == nil || !mp.isEnabled() {
			return
		}
		mp.queryDurationHist.Record(context.Background(), time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String(LabelOperation, operation)))
	}
}

func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.enabled
}

var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider. All recorders are no-ops
// on a nil or disabled provider.
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
