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

// Metrics exposes coin ledger instruments.
type Metrics struct {
	accessChecks     metric.Int64Counter
	coinsSpent       metric.Int64Counter
	bonusGranted     metric.Int64Counter
	ledgerEntries    metric.Int64Counter
	casRetries       metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
	subscriptions    metric.Int64Counter
	balanceDrift     metric.Int64Counter
	paymentVerifyDur metric.Float64Histogram
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "rraasi-coin-service"
	}
	meter := provider.Meter(name)

	var err error
	m := &Metrics{}
	if m.accessChecks, err = meter.Int64Counter("rraasi_access_checks_total"); err != nil {
		return nil, err
	}
	if m.coinsSpent, err = meter.Int64Counter("rraasi_coins_spent_total"); err != nil {
		return nil, err
	}
	if m.bonusGranted, err = meter.Int64Counter("rraasi_coins_bonus_granted_total"); err != nil {
		return nil, err
	}
	if m.ledgerEntries, err = meter.Int64Counter("rraasi_ledger_entries_total"); err != nil {
		return nil, err
	}
	if m.casRetries, err = meter.Int64Counter("rraasi_balance_cas_retries_total"); err != nil {
		return nil, err
	}
	if m.rateLimitDenied, err = meter.Int64Counter("rraasi_rate_limit_denied_total"); err != nil {
		return nil, err
	}
	if m.subscriptions, err = meter.Int64Counter("rraasi_subscriptions_activated_total"); err != nil {
		return nil, err
	}
	if m.balanceDrift, err = meter.Int64Counter("rraasi_balance_drift_total"); err != nil {
		return nil, err
	}
	if m.paymentVerifyDur, err = meter.Float64Histogram("rraasi_payment_verify_duration_seconds"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAccessCheck counts entitlement decisions by reason.
func (m *Metrics) RecordAccessCheck(ctx context.Context, featureID, reason string, allowed bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("feature_id", strings.TrimSpace(featureID)),
		attribute.String("reason", strings.TrimSpace(reason)),
		attribute.Bool("allowed", allowed),
	)
	m.accessChecks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCoinsSpent adds the coins charged for a feature.
func (m *Metrics) RecordCoinsSpent(ctx context.Context, featureID string, coins int64) {
	if m == nil || coins <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("feature_id", strings.TrimSpace(featureID)))
	m.coinsSpent.Add(ctx, coins, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordBonusGranted(ctx context.Context, coins int64) {
	if m == nil || coins <= 0 {
		return
	}
	m.bonusGranted.Add(ctx, coins)
}

// RecordLedgerEntry counts transaction log writes by type and outcome.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, txnType string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	attrs := FilterAttributes(
		attribute.String("transaction_type", strings.TrimSpace(txnType)),
		attribute.String("status", status),
	)
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordCASRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.casRetries.Add(ctx, 1)
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSubscriptionActivated(ctx context.Context, planID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("plan_id", strings.TrimSpace(planID)))
	m.subscriptions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBalanceDrift counts balances whose counters disagree with the ledger.
func (m *Metrics) RecordBalanceDrift(ctx context.Context, field string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("field", strings.TrimSpace(field)))
	m.balanceDrift.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) ObservePaymentVerify(ctx context.Context, provider string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("provider", strings.TrimSpace(provider)))
	m.paymentVerifyDur.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
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
	"feature_id":       {},
	"plan_id":          {},
	"reason":           {},
	"allowed":          {},
	"endpoint":         {},
	"status":           {},
	"status_code":      {},
	"provider":         {},
	"transaction_type": {},
	"field":            {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
// User ids and emails never become labels.
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
