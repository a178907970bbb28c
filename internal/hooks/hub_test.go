package hooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
	last   any
}

func (b *recordingBroadcaster) Broadcast(event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	b.last = payload
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// hookServer records JSON bodies POSTed to it and signals each arrival.
type hookServer struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []map[string]any
	got    chan struct{}
}

func newHookServer(t *testing.T, status int) *hookServer {
	t.Helper()
	hs := &hookServer{got: make(chan struct{}, 16)}
	hs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode hook body: %v", err)
		}
		hs.mu.Lock()
		hs.bodies = append(hs.bodies, body)
		hs.mu.Unlock()
		w.WriteHeader(status)
		hs.got <- struct{}{}
	}))
	t.Cleanup(hs.Close)
	return hs
}

func (hs *hookServer) waitForDelivery(t *testing.T) map[string]any {
	t.Helper()
	select {
	case <-hs.got:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for webhook delivery")
	}
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.bodies[len(hs.bodies)-1]
}

func startHub(t *testing.T, registry *Registry, broadcaster Broadcaster) *Hub {
	t.Helper()
	hub := NewHub(registry, broadcaster, zerolog.Nop(), WithDeliveryTimeout(2*time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub.Start(ctx)
	return hub
}

func TestHub_Fire_DeliversAndBroadcasts(t *testing.T) {
	server := newHookServer(t, http.StatusOK)
	registry := NewRegistry()
	registry.Register("message_received", server.URL, true)

	broadcaster := &recordingBroadcaster{}
	hub := startHub(t, registry, broadcaster)

	hub.Fire("message_received", map[string]any{"agentId": "AGT001", "userId": "U1TEST"})

	body := server.waitForDelivery(t)
	if body["event"] != "message_received" {
		t.Fatalf("unexpected event in envelope: %v", body["event"])
	}
	if body["agentId"] != "AGT001" {
		t.Fatalf("payload field missing: %v", body)
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Fatalf("timestamp not RFC3339: %v", body["timestamp"])
	}

	// Broadcast is synchronous with Fire.
	if broadcaster.count() != 1 || broadcaster.events[0] != BroadcastEvent {
		t.Fatalf("expected one %q broadcast, got %v", BroadcastEvent, broadcaster.events)
	}
}

func TestHub_Fire_OneFailureDoesNotAbortOthers(t *testing.T) {
	failing := newHookServer(t, http.StatusInternalServerError)
	succeeding := newHookServer(t, http.StatusOK)

	registry := NewRegistry()
	registry.Register("agent_response", failing.URL, true)
	registry.Register("agent_response", succeeding.URL, true)

	broadcaster := &recordingBroadcaster{}
	hub := startHub(t, registry, broadcaster)

	hub.Fire("agent_response", map[string]any{"conversationId": "c-1"})

	succeeding.waitForDelivery(t)
	failing.waitForDelivery(t)
	if broadcaster.count() != 1 {
		t.Fatalf("broadcast skipped because a callback failed")
	}
}

func TestHub_Fire_SkipsDisabledRegistrations(t *testing.T) {
	server := newHookServer(t, http.StatusOK)
	registry := NewRegistry()
	registry.Register("skill_invoked", server.URL, false)

	broadcaster := &recordingBroadcaster{}
	hub := startHub(t, registry, broadcaster)

	hub.Fire("skill_invoked", map[string]any{})

	// The broadcast still happens even with zero deliverable callbacks.
	if broadcaster.count() != 1 {
		t.Fatalf("expected broadcast despite disabled registration")
	}
	select {
	case <-server.got:
		t.Fatalf("disabled registration received a delivery")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_Fire_UnreachableEndpointIsSwallowed(t *testing.T) {
	registry := NewRegistry()
	// Reserved TEST-NET-1 address: connection will fail fast or time out.
	registry.Register("deploy_request", "http://192.0.2.1:9/hook", true)

	broadcaster := &recordingBroadcaster{}
	hub := startHub(t, registry, broadcaster)

	// Must not panic or block the caller.
	hub.Fire("deploy_request", map[string]any{"deploymentId": "d-1"})

	if broadcaster.count() != 1 {
		t.Fatalf("broadcast missing")
	}
}

func TestRegistry_Clear(t *testing.T) {
	registry := NewRegistry()
	registry.Register("message_received", "http://example.com/a", true)
	registry.Register("message_received", "http://example.com/b", true)
	registry.Register("agent_response", "http://example.com/c", true)

	if got := len(registry.For("message_received")); got != 2 {
		t.Fatalf("expected 2 registrations, got %d", got)
	}

	registry.Clear("message_received")
	if got := len(registry.For("message_received")); got != 0 {
		t.Fatalf("expected no registrations after Clear, got %d", got)
	}
	if got := len(registry.For("agent_response")); got != 1 {
		t.Fatalf("Clear removed unrelated event registrations")
	}
}
