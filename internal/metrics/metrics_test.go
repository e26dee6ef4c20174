package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveScore(false)
	m.ObserveScore(true)
	m.ObserveScore(true)
	m.ObserveDecision(DecisionPersisted)
	m.SetMemoryEntries(7)
	m.ObserveMerge("merged")
	m.ObserveTrain(2 * time.Second)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Scores.WithLabelValues(OutcomeScored)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Scores.WithLabelValues(OutcomeDegraded)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues(DecisionPersisted)))
	require.Equal(t, 7.0, testutil.ToFloat64(m.MemoryEntries))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Merges.WithLabelValues("merged")))
	require.Equal(t, 1, testutil.CollectAndCount(m.TrainDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveScore(true)
	m.ObserveDecision(DecisionForced)
	m.SetMemoryEntries(1)
	m.ObserveMerge("merged")
	m.ObserveTrain(time.Second)
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetMemoryEntries(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	require.Equal(t, 200, rec.Code)
	require.Contains(t, string(body), "sift_memory_entries 3")
}
