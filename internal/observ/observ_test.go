package observ

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_WritesEventLine(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewLogger("info", &buf))
	t.Cleanup(func() { SetLogger(prev) })

	Log("risk_state_changed", map[string]any{"from": "normal", "to": "hard_disabled"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "risk_state_changed", line["event"])
	assert.Equal(t, "hard_disabled", line["to"])
	assert.Contains(t, line, "time")
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("warn", &buf)
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())
	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	assert.Equal(t, zerolog.InfoLevel, NewLogger("nonsense", io.Discard).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger("", io.Discard).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, NewLogger("DEBUG", io.Discard).GetLevel())
}

func TestCounters(t *testing.T) {
	lbl := map[string]string{"outcome": "test_counters"}
	before := CounterValue("observ_test_total", lbl)
	IncCounter("observ_test_total", lbl)
	IncCounterBy("observ_test_total", lbl, 2)
	assert.Equal(t, before+3, CounterValue("observ_test_total", lbl))

	// mismatched label keys are dropped rather than panicking
	assert.NotPanics(t, func() {
		IncCounter("observ_test_total", map[string]string{"other": "x"})
	})
	assert.Equal(t, 0.0, CounterValue("observ_never_seen_total", nil))
}

func TestGauges(t *testing.T) {
	SetGauge("observ_test_gauge", 42.5, nil)
	assert.Equal(t, 42.5, GaugeValue("observ_test_gauge", nil))
	SetGauge("observ_test_gauge", -1, nil)
	assert.Equal(t, -1.0, GaugeValue("observ_test_gauge", nil))
}

func TestHandler_ExposesPrometheusText(t *testing.T) {
	IncCounter("observ_handler_total", map[string]string{"kind": "a"})
	Observe("observ_handler_latency", 0.01, nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `observ_handler_total{kind="a"} 1`)
	assert.Contains(t, body, "observ_handler_latency_bucket")
}
