package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("posting:transaction_posted").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("posting:transaction_posted").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("posting:transaction_posted", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("posting:transaction_posted", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("posting:transaction_posted")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)

	var tr *Tracker
	require.NoError(t, tr.End(nil))
}
