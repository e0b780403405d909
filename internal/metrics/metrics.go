package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tictactoe"

// Metrics groups the collectors for training and served sessions. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	matchesTotal  *prometheus.CounterVec
	blocksTotal   *prometheus.CounterVec
	tableNodes    *prometheus.GaugeVec
	sessionsTotal *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		matchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Finished matches by winner (X, O or draw).",
		}, []string{"winner"}),
		blocksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "Moves that blocked an opponent's line, by blocking mark.",
		}, []string{"mark"}),
		tableNodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "credit_table_nodes",
			Help:      "Number of nodes in a credit table.",
		}, []string{"brain"}),
		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Session lifecycle events (created, finished).",
		}, []string{"event"}),
	}
}

func (that *Metrics) MatchFinished(winner string) {
	if that == nil {
		return
	}
	if winner == "" {
		winner = "draw"
	}
	that.matchesTotal.WithLabelValues(winner).Inc()
}

func (that *Metrics) Blocked(mark string) {
	if that == nil {
		return
	}
	that.blocksTotal.WithLabelValues(mark).Inc()
}

func (that *Metrics) TableSize(brain string, nodes int) {
	if that == nil {
		return
	}
	that.tableNodes.WithLabelValues(brain).Set(float64(nodes))
}

func (that *Metrics) SessionEvent(event string) {
	if that == nil {
		return
	}
	that.sessionsTotal.WithLabelValues(event).Inc()
}
