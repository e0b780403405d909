package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	t.Run("Records matches, blocks and table sizes", func(t *testing.T) {
		// Given: metrics on a fresh registry
		m := New(prometheus.NewRegistry())

		// When: events are recorded
		m.MatchFinished("X")
		m.MatchFinished("")
		m.MatchFinished("")
		m.Blocked("O")
		m.TableSize("x", 42)
		m.SessionEvent("created")

		// Then: the collectors hold the values
		assert.InDelta(t, 1, testutil.ToFloat64(m.matchesTotal.WithLabelValues("X")), 0)
		assert.InDelta(t, 2, testutil.ToFloat64(m.matchesTotal.WithLabelValues("draw")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(m.blocksTotal.WithLabelValues("O")), 0)
		assert.InDelta(t, 42, testutil.ToFloat64(m.tableNodes.WithLabelValues("x")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(m.sessionsTotal.WithLabelValues("created")), 0)
	})

	t.Run("Nil metrics are a no-op", func(t *testing.T) {
		var m *Metrics

		assert.NotPanics(t, func() {
			m.MatchFinished("X")
			m.Blocked("X")
			m.TableSize("x", 1)
			m.SessionEvent("finished")
		})
	})
}
