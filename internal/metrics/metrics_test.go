package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("assign_slot", "ok", time.Now())
	m.ObserveOperation("assign_slot", "ok", time.Now())
	m.ObserveOperation("assign_slot", "conflict", time.Now())
	m.IncrementTOTP()
	m.AddNotifications("expired", 3)
	m.IncrementSweeps()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Operations.WithLabelValues("assign_slot", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Operations.WithLabelValues("assign_slot", "conflict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TOTPGenerated))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.NotificationsDerived.WithLabelValues("expired")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExpirySweeps))
}

func TestTrackStreamClients(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	clients := 2
	m.TrackStreamClients(func() int { return clients })

	count, err := testutil.GatherAndCount(reg, "accounts_event_stream_clients")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	clients = 5
	families, err := reg.Gather()
	assert.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "accounts_event_stream_clients" {
			assert.Equal(t, float64(5), mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
