package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMonitor_TrackDistribution(t *testing.T) {
	m := NewMonitor()
	before := testutil.ToFloat64(distributions.WithLabelValues("distributed"))

	m.TrackDistribution("distributed")
	m.TrackDistribution("distributed")

	assert.Equal(t, before+2, testutil.ToFloat64(distributions.WithLabelValues("distributed")))
}

func TestMonitor_TrackDistributedAmount(t *testing.T) {
	m := NewMonitor()
	adminBefore := testutil.ToFloat64(distributedAmount.WithLabelValues("admin"))
	orgBefore := testutil.ToFloat64(distributedAmount.WithLabelValues("organizer"))

	m.TrackDistributedAmount(decimal.NewFromInt(104), decimal.NewFromInt(936))

	assert.InDelta(t, adminBefore+104, testutil.ToFloat64(distributedAmount.WithLabelValues("admin")), 0.001)
	assert.InDelta(t, orgBefore+936, testutil.ToFloat64(distributedAmount.WithLabelValues("organizer")), 0.001)
}

func TestMonitor_TrackSweep(t *testing.T) {
	m := NewMonitor()

	m.TrackSweep(150*time.Millisecond, 5, 3, 1, 1)

	assert.Equal(t, 5.0, testutil.ToFloat64(sweepEvents.WithLabelValues("eligible")))
	assert.Equal(t, 3.0, testutil.ToFloat64(sweepEvents.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sweepEvents.WithLabelValues("failed")))
}
