package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.Operation("book", "ok")
	m.Operation("book", "ok")
	m.Operation("cancel", "forbidden")
	m.SeatsBooked(4)
	m.SeatsBooked(0)
	m.SeatsReleased(3)
	m.LockWait(3 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("book", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("cancel", "forbidden")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.seatsMoved.WithLabelValues("booked")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.seatsMoved.WithLabelValues("released")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lockWait))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Operation("book", "ok")
		m.LockWait(time.Second)
		m.SeatsBooked(1)
		m.SeatsReleased(1)
	})
}
