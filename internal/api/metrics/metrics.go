// Package metrics defines all custom Prometheus metrics for the
// BetterIntelligence core. It is the single source of truth for metric
// names, labels, and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "betterintelligence"

// ── Credential metrics ────────────────────────────────────────────────────────

// TokensIssuedTotal counts issued access/refresh pairs.
var TokensIssuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of access/refresh credential pairs issued.",
	},
)

// TokenRotationsTotal counts refresh rotations by outcome.
// Label:
//   - result: "ok" or "invalid"
var TokenRotationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_rotations_total",
		Help:      "Total number of refresh token rotation attempts, by result.",
	},
	[]string{"result"},
)

// ── Realtime metrics ──────────────────────────────────────────────────────────

// RealtimeConnectionsActive tracks currently admitted duplex connections.
var RealtimeConnectionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections_active",
		Help:      "Number of currently active authenticated realtime connections.",
	},
)

// RealtimeEventsTotal counts events emitted to connections.
// Label:
//   - event: outbound event name (e.g. "agent:done", "agent:error")
var RealtimeEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_total",
		Help:      "Total number of events emitted on realtime connections, by event name.",
	},
	[]string{"event"},
)

// ── Hook metrics ──────────────────────────────────────────────────────────────

// HookDeliveriesTotal counts webhook delivery attempts by outcome.
// Labels:
//   - event: the domain event name
//   - result: "ok" or "failed"
var HookDeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hook_deliveries_total",
		Help:      "Total number of webhook delivery attempts, by event and result.",
	},
	[]string{"event", "result"},
)
