package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObserveStep(1)
	c.ObserveStep(2)
	c.ObserveReadFailure()
	c.ObservePublish("delivered")
	c.ObservePublish("delivered")
	c.ObservePublish("no_subscriber")
	c.SetBaseline(1.01)
	c.ObserveTick(3 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Steps))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.StepsDetected))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ReadFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DegradedTicks))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Publishes.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Publishes.WithLabelValues("no_subscriber")))
	assert.InDelta(t, 1.01, testutil.ToFloat64(c.Baseline), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(c.TickDuration))
	assert.Equal(t, reg, c.Gatherer())
}

func TestCollectorReRegistrationReusesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.ObserveStep(5)
	assert.Equal(t, 5.0, testutil.ToFloat64(second.Steps))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveStep(1)
		c.ObserveReadFailure()
		c.ObservePublish("error")
		c.SetBaseline(1)
		c.ObserveTick(time.Millisecond)
	})
	assert.Nil(t, c.Gatherer())
}
