package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("user_id", "u-123"),
		attribute.String("user_email", "a@b.c"),
		attribute.String("feature_id", "birth_chart"),
		attribute.String("reason", "insufficient_coins"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("feature_id"), attrs[0].Key)
	assert.Equal(t, attribute.Key("reason"), attrs[1].Key)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordAccessCheck(ctx, "birth_chart", "insufficient_coins", false)
		m.RecordCoinsSpent(ctx, "birth_chart", 25)
		m.RecordBonusGranted(ctx, 10)
		m.RecordLedgerEntry(ctx, "spend", true)
		m.RecordCASRetry(ctx)
		m.RecordBalanceDrift(ctx, "spent_coins")
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "test"}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordAccessCheck(context.Background(), "birth_chart", "sufficient_coins", true)
	})
}
