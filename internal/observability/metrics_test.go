package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.AlertsPublished.WithLabelValues(OutcomeSuccess).Inc()
	assert.InDelta(t, 1, testutil.ToFloat64(a.AlertsPublished.WithLabelValues(OutcomeSuccess)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.AlertsPublished.WithLabelValues(OutcomeSuccess)), 0)
}

func TestMetrics_RegisterOnFreshRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.AlertsPublished))
	require.NoError(t, reg.Register(m.BrokerState))

	m.BrokerState.Set(2)
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "firelinx_broker_state")
}

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "debug", "json").Debug("hello", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])

	buf.Reset()
	NewLoggerTo(&buf, "info", "text").Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")

	buf.Reset()
	NewLoggerTo(&buf, "warn", "json").Info("dropped")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
