package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveRequest("/imports", "POST", 201, 10*time.Millisecond)
	m.ObserveRequest("/imports", "POST", 400, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/imports", "POST", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/imports", "POST", "400")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))
}
