package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
	"github.com/Simon2219/BetterIntelligence/internal/core/ports"
	"github.com/Simon2219/BetterIntelligence/internal/core/service"
	"github.com/Simon2219/BetterIntelligence/internal/hooks"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]ports.RefreshRecord
}

func (s *memStore) Insert(_ context.Context, userID, hash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[hash] = ports.RefreshRecord{UserID: userID, TokenHash: hash, ExpiresAt: expiresAt}
	return nil
}

func (s *memStore) FindValid(_ context.Context, hash string) (*ports.RefreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[hash]; ok {
		copy := row
		return &copy, nil
	}
	return nil, nil
}

func (s *memStore) DeleteByHash(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[hash]
	delete(s.rows, hash)
	return ok, nil
}

func (s *memStore) DeleteAllForUser(_ context.Context, _ string) error { return nil }

type memUsers struct {
	users map[string]*domain.User
}

func (r *memUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.users[u.ID] = u
	return u, nil
}

func (r *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := r.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUsers) FindByEmail(_ context.Context, _ string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (r *memUsers) FindByUsername(_ context.Context, _ string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (r *memUsers) SetLastSeen(_ context.Context, _ string, _ time.Time) error { return nil }

type memAgents struct {
	agents map[string]*domain.Agent
	err    error // when set, every lookup fails with it
}

func (r *memAgents) FindByID(_ context.Context, id string) (*domain.Agent, error) {
	if r.err != nil {
		return nil, r.err
	}
	if a, ok := r.agents[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, domain.ErrAgentNotFound
}

type memConversations struct {
	mu    sync.Mutex
	convs map[string]*domain.Conversation
}

func (r *memConversations) Create(_ context.Context, conv *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *conv
	r.convs[conv.ID] = &clone
	return nil
}

func (r *memConversations) FindByID(_ context.Context, id string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.convs[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, domain.ErrConversationNotFound
}

type memMessages struct {
	mu   sync.Mutex
	msgs []*domain.Message
}

func (r *memMessages) Append(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *msg
	r.msgs = append(r.msgs, &clone)
	return nil
}

func (r *memMessages) byRole(role string) []*domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, m := range r.msgs {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type gatewayFixture struct {
	server   *httptest.Server
	tokens   *service.TokenService
	users    *memUsers
	agents   *memAgents
	convs    *memConversations
	messages *memMessages
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	f := &gatewayFixture{
		tokens:   service.NewTokenService(&memStore{rows: make(map[string]ports.RefreshRecord)}, "access-secret", "refresh-secret"),
		users:    &memUsers{users: make(map[string]*domain.User)},
		agents:   &memAgents{agents: make(map[string]*domain.Agent)},
		convs:    &memConversations{convs: make(map[string]*domain.Conversation)},
		messages: &memMessages{},
	}

	hub := NewHub()
	hookHub := hooks.NewHub(hooks.NewRegistry(), hub, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hookHub.Start(ctx)

	gateway := NewGateway(hub, f.tokens, f.users, f.agents, f.convs, f.messages, hookHub, zerolog.Nop())

	e := echo.New()
	e.GET("/ws", gateway.Handle)
	f.server = httptest.NewServer(e)
	t.Cleanup(f.server.Close)
	return f
}

func (f *gatewayFixture) addUser(t *testing.T, id string, active bool) string {
	t.Helper()
	user := &domain.User{
		ID:       id,
		Username: strings.ToLower(id),
		RoleID:   domain.RoleUser,
		Role:     domain.Role{ID: domain.RoleUser, Name: "user"},
		IsActive: active,
	}
	f.users.users[id] = user

	pair, err := f.tokens.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return pair.AccessToken
}

func (f *gatewayFixture) wsURL(token string) string {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func (f *gatewayFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var evt wireEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return evt
}

func sendInvoke(t *testing.T, conn *websocket.Conn, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"event": EventInvoke, "data": payload}); err != nil {
		t.Fatalf("send invoke: %v", err)
	}
}

func TestGateway_RefusesWithoutToken(t *testing.T) {
	f := newGatewayFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(""), nil)
	if err == nil {
		t.Fatalf("expected handshake refusal")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 refusal, got %+v", resp)
	}
}

func TestGateway_RefusesInvalidToken(t *testing.T) {
	f := newGatewayFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL("garbage"), nil)
	if err == nil {
		t.Fatalf("expected handshake refusal")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 refusal, got %+v", resp)
	}
}

func TestGateway_RefusesDeactivatedUser(t *testing.T) {
	f := newGatewayFixture(t)
	token := f.addUser(t, "U1GONE", false)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	if err == nil {
		t.Fatalf("expected handshake refusal")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 refusal, got %+v", resp)
	}
}

func TestGateway_InvokeFlow_NewConversation(t *testing.T) {
	f := newGatewayFixture(t)
	token := f.addUser(t, "U1TEST", true)
	f.agents.agents["AGT001"] = &domain.Agent{ID: "AGT001", UserID: "U1TEST", Name: "helper"}

	conn := f.dial(t, token)
	sendInvoke(t, conn, map[string]any{"agentId": "AGT001", "message": "hello"})

	// conversation:created must be the first event.
	evt := readEvent(t, conn)
	if evt.Event != EventConversationCreated {
		t.Fatalf("expected %s first, got %s", EventConversationCreated, evt.Event)
	}
	var created struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(evt.Data, &created); err != nil || created.ConversationID == "" {
		t.Fatalf("bad conversation:created payload: %s", evt.Data)
	}

	// Remaining events in emission order, skipping hooks:event broadcasts.
	want := []string{EventTyping, EventAgentStream, EventAgentStream, EventAgentDone, EventTyping}
	var got []string
	for len(got) < len(want) {
		evt := readEvent(t, conn)
		if evt.Event == hooks.BroadcastEvent {
			continue
		}
		got = append(got, evt.Event)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event order mismatch at %d: want %v, got %v", i, want, got)
		}
	}

	// Both sides of the exchange are persisted.
	if msgs := f.messages.byRole(domain.MessageRoleUser); len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Fatalf("user message not persisted: %+v", msgs)
	}
	if msgs := f.messages.byRole(domain.MessageRoleAssistant); len(msgs) != 1 {
		t.Fatalf("assistant message not persisted")
	}
	if _, err := f.convs.FindByID(context.Background(), created.ConversationID); err != nil {
		t.Fatalf("conversation not persisted: %v", err)
	}
}

func TestGateway_ConversationCreatedOnlyOnOriginatingConnection(t *testing.T) {
	f := newGatewayFixture(t)
	token := f.addUser(t, "U1TEST", true)
	f.agents.agents["AGT001"] = &domain.Agent{ID: "AGT001", Name: "shared"}

	connA := f.dial(t, token)
	connB := f.dial(t, token)

	sendInvoke(t, connA, map[string]any{"agentId": "AGT001", "message": "hi"})

	if evt := readEvent(t, connA); evt.Event != EventConversationCreated {
		t.Fatalf("connection A expected %s, got %s", EventConversationCreated, evt.Event)
	}

	// Connection B may see global hooks:event broadcasts but never the
	// conversation announcement.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		_ = connB.SetReadDeadline(deadline)
		var evt wireEvent
		if err := connB.ReadJSON(&evt); err != nil {
			break // timeout: nothing more queued for B
		}
		if evt.Event == EventConversationCreated {
			t.Fatalf("conversation:created leaked to connection B")
		}
	}
}

func TestGateway_InvokeValidation(t *testing.T) {
	f := newGatewayFixture(t)
	token := f.addUser(t, "U1TEST", true)

	conn := f.dial(t, token)
	sendInvoke(t, conn, map[string]any{"agentId": "", "message": ""})

	evt := readEvent(t, conn)
	if evt.Event != EventAgentError {
		t.Fatalf("expected %s, got %s", EventAgentError, evt.Event)
	}

	// The error did not close the connection: a valid invoke still works.
	f.agents.agents["AGT001"] = &domain.Agent{ID: "AGT001", Name: "helper"}
	sendInvoke(t, conn, map[string]any{"agentId": "AGT001", "message": "still here"})
	if evt := readEvent(t, conn); evt.Event != EventConversationCreated {
		t.Fatalf("connection unusable after validation error: got %s", evt.Event)
	}
}

func TestGateway_OwnershipMaskedAsNotFound(t *testing.T) {
	f := newGatewayFixture(t)
	token := f.addUser(t, "U1TEST", true)
	f.agents.agents["AGT999"] = &domain.Agent{ID: "AGT999", UserID: "SOMEONE", Name: "private"}

	conn := f.dial(t, token)
	sendInvoke(t, conn, map[string]any{"agentId": "AGT999", "message": "let me in"})

	evt := readEvent(t, conn)
	if evt.Event != EventAgentError {
		t.Fatalf("expected %s, got %s", EventAgentError, evt.Event)
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		t.Fatalf("bad error payload: %s", evt.Data)
	}
	// Existence is masked: same message as a genuinely unknown agent.
	if payload.Error != "Agent not found" {
		t.Fatalf("ownership failure leaked: %q", payload.Error)
	}
}

func TestGateway_AgentLookupFailureNotMaskedAsNotFound(t *testing.T) {
	f := newGatewayFixture(t)
	token := f.addUser(t, "U1TEST", true)
	f.agents.agents["AGT001"] = &domain.Agent{ID: "AGT001", Name: "helper"}
	f.agents.err = errors.New("connection reset")

	conn := f.dial(t, token)
	sendInvoke(t, conn, map[string]any{"agentId": "AGT001", "message": "hello"})

	evt := readEvent(t, conn)
	if evt.Event != EventAgentError {
		t.Fatalf("expected %s, got %s", EventAgentError, evt.Event)
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		t.Fatalf("bad error payload: %s", evt.Data)
	}
	// A backend failure is not the same answer as an unknown agent.
	if payload.Error == "Agent not found" {
		t.Fatalf("infrastructure failure reported as absence")
	}

	// Once the backend recovers the same invoke goes through.
	f.agents.err = nil
	sendInvoke(t, conn, map[string]any{"agentId": "AGT001", "message": "hello"})
	if evt := readEvent(t, conn); evt.Event != EventConversationCreated {
		t.Fatalf("connection unusable after backend failure: got %s", evt.Event)
	}
}

func TestGateway_ExistingConversationReused(t *testing.T) {
	f := newGatewayFixture(t)
	token := f.addUser(t, "U1TEST", true)
	f.agents.agents["AGT001"] = &domain.Agent{ID: "AGT001", Name: "helper"}
	_ = f.convs.Create(context.Background(), &domain.Conversation{
		ID: "conv-1", AgentID: "AGT001", UserID: "U1TEST",
	})

	conn := f.dial(t, token)
	sendInvoke(t, conn, map[string]any{"agentId": "AGT001", "conversationId": "conv-1", "message": "again"})

	// No conversation:created; flow starts with typing.
	for {
		evt := readEvent(t, conn)
		if evt.Event == hooks.BroadcastEvent {
			continue
		}
		if evt.Event == EventConversationCreated {
			t.Fatalf("conversation:created emitted for existing conversation")
		}
		if evt.Event != EventTyping {
			t.Fatalf("expected %s, got %s", EventTyping, evt.Event)
		}
		break
	}
}

func TestGateway_ForeignConversationMasked(t *testing.T) {
	f := newGatewayFixture(t)
	token := f.addUser(t, "U1TEST", true)
	f.agents.agents["AGT001"] = &domain.Agent{ID: "AGT001", Name: "helper"}
	_ = f.convs.Create(context.Background(), &domain.Conversation{
		ID: "conv-x", AgentID: "AGT001", UserID: "SOMEONE",
	})

	conn := f.dial(t, token)
	sendInvoke(t, conn, map[string]any{"agentId": "AGT001", "conversationId": "conv-x", "message": "peek"})

	evt := readEvent(t, conn)
	if evt.Event != EventAgentError {
		t.Fatalf("expected %s, got %s", EventAgentError, evt.Event)
	}
}
