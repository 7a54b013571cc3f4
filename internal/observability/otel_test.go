package observability

import (
	"context"
	"testing"

	"github.com/Domenick1991/flightsaga/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_disabledIsNoop(t *testing.T) {
	cfg := config.TelemetryConfig{ServiceName: "booking-service"}

	shutdown, err := Setup(context.Background(), cfg)

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, otel.GetTextMapPropagator())
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestHeaders(t *testing.T) {
	assert.Nil(t, headers(config.TelemetryConfig{}))
	assert.Equal(t, map[string]string{"Authorization": "Basic abc"}, headers(config.TelemetryConfig{AuthHeader: "Basic abc"}))
}
