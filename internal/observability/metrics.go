package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the arena node.
type Metrics struct {
	// --- Tick pipeline (leader) ---
	TicksTotal       *prometheus.CounterVec
	TickDuration     prometheus.Histogram
	FeedFetchFailed  prometheus.Counter
	BroadcastsSent   *prometheus.CounterVec
	RoundsResolved   *prometheus.CounterVec

	// --- Replication (follower) ---
	BroadcastsApplied  *prometheus.CounterVec
	BroadcastsRejected *prometheus.CounterVec

	// --- Presence & election ---
	Participants  prometheus.Gauge
	IsLeader      prometheus.Gauge
	LeaderChanges prometheus.Counter

	// --- Participation ---
	VotesAccepted *prometheus.CounterVec
	VotesRejected *prometheus.CounterVec
	ChatMessages  prometheus.Counter

	// --- HTTP/WS surface ---
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	WSConnections prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	tickBuckets := []float64{
		0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05,
		0.1, 0.25, 0.5, 0.8, 1.0,
	}

	return &Metrics{
		TicksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_ticks_total",
			Help: "Tick cycles processed, by node role at the time",
		}, []string{"role"}),

		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_tick_duration_seconds",
			Help:    "Wall time of one leader tick including the feed fetch",
			Buckets: tickBuckets,
		}),

		FeedFetchFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_feed_fetch_failed_total",
			Help: "Price feed fetches that degraded to the simulated walk",
		}),

		BroadcastsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_broadcasts_sent_total",
			Help: "Broadcasts published to the shared channel",
		}, []string{"event"}),

		RoundsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_rounds_resolved_total",
			Help: "Rounds resolved at the battle-close edge",
		}, []string{"winner"}),

		BroadcastsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_broadcasts_applied_total",
			Help: "Broadcasts merged into local state",
		}, []string{"event"}),

		BroadcastsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_broadcasts_rejected_total",
			Help: "Broadcasts dropped at the receive edge",
		}, []string{"event", "reason"}),

		Participants: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arena_participants",
			Help: "Current presence set size",
		}),

		IsLeader: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arena_is_leader",
			Help: "1 when this node is the elected leader",
		}),

		LeaderChanges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_leader_changes_total",
			Help: "Observed leadership transitions",
		}),

		VotesAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_votes_accepted_total",
			Help: "Votes recorded during the voting window",
		}, []string{"team", "direction"}),

		VotesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_votes_rejected_total",
			Help: "Votes refused (closed window, duplicate, ineligible)",
		}, []string{"reason"}),

		ChatMessages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_chat_messages_total",
			Help: "Chat messages appended to the local window",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_http_requests_total",
			Help: "API requests served",
		}, []string{"endpoint", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arena_http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arena_ws_connections",
			Help: "Open websocket subscribers",
		}),
	}
}
