package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	m := New()

	start := time.Now().Add(-10 * time.Millisecond)
	m.RecordOperation("personCount", start, "")
	m.RecordOperation("addPerson", start, "validation")

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.OperationsTotal.WithLabelValues("personCount")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.OperationsTotal.WithLabelValues("addPerson")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.OperationsFailed.WithLabelValues("addPerson", "validation")))
	assert.Equal(t, float64(0),
		testutil.ToFloat64(m.OperationsFailed.WithLabelValues("personCount", "validation")))
}

func TestSubscriberGauge(t *testing.T) {
	m := New()

	m.ActiveSubscribers.Inc()
	m.ActiveSubscribers.Inc()
	m.ActiveSubscribers.Dec()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveSubscribers))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.EventsPublished.Inc()

	require.NotNil(t, m.Handler())

	count, err := testutil.GatherAndCount(m.Registry(),
		"phonebook_subscriptions_events_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
