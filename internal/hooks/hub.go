// Package hooks fans domain events out to registered webhook endpoints and
// to the realtime broadcast surface. Delivery is fire-and-forget: failures
// are logged, never retried, and never surfaced to the caller.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Simon2219/BetterIntelligence/internal/api/metrics"
)

// Broadcaster is the realtime surface the hub mirrors every event onto.
// Implemented by the realtime hub; broadcast is global, not identity-scoped.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// BroadcastEvent is the outbound realtime event name for mirrored hooks.
const BroadcastEvent = "hooks:event"

const defaultDeliveryTimeout = 10 * time.Second

// Hub delivers domain events to registered callbacks and the broadcast
// surface.
type Hub struct {
	registry    *Registry
	broadcaster Broadcaster
	dispatcher  *Dispatcher
	client      *http.Client
	timeout     time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithDeliveryTimeout bounds each outbound POST so one slow endpoint cannot
// stall delivery to the rest.
func WithDeliveryTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithHTTPClient overrides the delivery client. Tests only.
func WithHTTPClient(client *http.Client) HubOption {
	return func(h *Hub) {
		if client != nil {
			h.client = client
		}
	}
}

// WithClock overrides the envelope timestamp source. Tests only.
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub wires the registry and broadcast surface together. Call Start
// before firing and Stop on shutdown.
func NewHub(registry *Registry, broadcaster Broadcaster, log zerolog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		registry:    registry,
		broadcaster: broadcaster,
		client:      &http.Client{},
		timeout:     defaultDeliveryTimeout,
		log:         log,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.dispatcher = NewDispatcher(0, h.deliver, log)
	return h
}

// Start launches the delivery workers.
func (h *Hub) Start(ctx context.Context) {
	h.dispatcher.Start(ctx)
}

// Fire fans the event out: one delivery per enabled registration, plus a
// global broadcast of the same envelope. Deliveries are queued to the
// dispatcher and proceed independently of the caller; the broadcast happens
// before Fire returns.
func (h *Hub) Fire(event string, payload map[string]any) {
	envelope := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		envelope[k] = v
	}
	envelope["event"] = event
	envelope["timestamp"] = h.now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(envelope)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode hook envelope")
		return
	}

	for _, reg := range h.registry.For(event) {
		h.dispatcher.Enqueue(Delivery{Event: event, URL: reg.URL, Body: body})
	}

	if h.broadcaster != nil {
		h.broadcaster.Broadcast(BroadcastEvent, envelope)
	}
}

// deliver performs one webhook POST with a bounded timeout. A non-2xx
// response counts as a failure; all failures are logged and swallowed.
func (h *Hub) deliver(ctx context.Context, d Delivery) {
	reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.URL, bytes.NewReader(d.Body))
	if err != nil {
		h.deliveryFailed(d, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.deliveryFailed(d, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.log.Warn().
			Str("event", d.Event).
			Str("url", d.URL).
			Int("status", resp.StatusCode).
			Msg("webhook delivery rejected")
		metrics.HookDeliveriesTotal.WithLabelValues(d.Event, "failed").Inc()
		return
	}

	metrics.HookDeliveriesTotal.WithLabelValues(d.Event, "ok").Inc()
}

func (h *Hub) deliveryFailed(d Delivery, err error) {
	h.log.Warn().Err(err).Str("event", d.Event).Str("url", d.URL).Msg("webhook delivery failed")
	metrics.HookDeliveriesTotal.WithLabelValues(d.Event, "failed").Inc()
}
