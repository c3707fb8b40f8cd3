package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveQuestion(OutcomeAnswered)
	m.ObserveQuestion(OutcomeAnswered)
	m.ObserveQuestion(OutcomeMissingAPIKey)
	m.AddChunks(7)
	m.AddCacheLookups(3, 2)
	m.ObserveRetrieval(20 * time.Millisecond)
	m.ObserveGeneration(time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Questions.WithLabelValues(OutcomeAnswered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Questions.WithLabelValues(OutcomeMissingAPIKey)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ChunksIngested))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RetrievalSeconds))

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuestion(OutcomeError)
		m.ObserveRetrieval(time.Second)
		m.ObserveGeneration(time.Second)
		m.AddChunks(1)
		m.AddCacheLookups(1, 1)
	})
}
