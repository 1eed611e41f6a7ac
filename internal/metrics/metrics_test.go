package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()
	r.RecordFeedCycle("primary")
	r.RecordFeedCycle("primary")
	r.RecordFeedCycle("stale")
	r.RecordTrade("Failed", "BuildFailed")
	r.SetTrialRemaining(42)
	r.SetSignals(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.feedCycles.WithLabelValues("primary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.feedCycles.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trades.WithLabelValues("Failed", "BuildFailed")))
	assert.Equal(t, 42.0, testutil.ToFloat64(r.trialRemaining))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.signals))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordFeedCycle("primary")
		r.RecordFeedFailure("secondary")
		r.ObserveFeedLatency("primary", 0.1)
		r.RecordTrade("Success", "")
		r.SetTrialRemaining(1)
		r.SetSignals(1)
	})
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.RecordFeedCycle("secondary")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `blackedge_feed_cycles_total{source="secondary"} 1`)
}
