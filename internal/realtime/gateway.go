// Package realtime implements the authenticated duplex gateway: websocket
// admission, per-connection identity binding, and routing of invoke events
// to persistence and hook fan-out.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
	"github.com/Simon2219/BetterIntelligence/internal/core/ports"
	"github.com/Simon2219/BetterIntelligence/internal/hooks"
)

// Outbound event names.
const (
	EventConversationCreated = "conversation:created"
	EventTyping              = "chat:typing"
	EventAgentStream         = "agent:stream"
	EventAgentDone           = "agent:done"
	EventAgentError          = "agent:error"
)

// EventInvoke is the single inbound event the gateway accepts.
const EventInvoke = "agent:invoke"

// placeholderResponse stands in for the generated reply; inference is not
// wired into this core.
const placeholderResponse = "[Streaming placeholder - AI not wired yet]"

// Gateway admits authenticated websocket connections and routes their
// events. Admission reuses the same identity checks as the HTTP auth gate:
// a connection is refused before upgrade unless its handshake token
// verifies and resolves to an active account.
type Gateway struct {
	hub           *Hub
	tokens        ports.TokenService
	users         ports.UserRepository
	agents        ports.AgentRepository
	conversations ports.ConversationRepository
	messages      ports.MessageRepository
	hooks         *hooks.Hub
	upgrader      websocket.Upgrader
	validate      *validator.Validate
	log           zerolog.Logger
}

// NewGateway wires the gateway's collaborators together.
func NewGateway(
	hub *Hub,
	tokens ports.TokenService,
	users ports.UserRepository,
	agents ports.AgentRepository,
	conversations ports.ConversationRepository,
	messages ports.MessageRepository,
	hookHub *hooks.Hub,
	log zerolog.Logger,
) *Gateway {
	return &Gateway{
		hub:           hub,
		tokens:        tokens,
		users:         users,
		agents:        agents,
		conversations: conversations,
		messages:      messages,
		hooks:         hookHub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The SPA and external clients connect cross-origin; bearer
			// auth on the handshake is the admission control.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		validate: validator.New(),
		log:      log,
	}
}

// Handle is the websocket endpoint. The raw access token travels in the
// handshake `token` query parameter, out of band from normal headers.
func (g *Gateway) Handle(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	claims, err := g.tokens.VerifyAccess(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	}

	user, err := g.users.FindByID(c.Request().Context(), claims.UserID)
	if err == domain.ErrUserNotFound {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
	}
	if err != nil {
		return err
	}
	if !user.IsActive {
		return echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	}

	ws, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake failure response.
		return nil
	}

	conn := &Conn{
		id:       uuid.NewString(),
		userID:   user.ID,
		username: user.Username,
		ws:       ws,
		send:     make(chan envelope, sendBuffer),
		log:      g.log,
	}
	g.hub.register(conn)
	g.log.Info().Str("user_id", conn.userID).Str("conn_id", conn.id).Msg("connection admitted")

	go conn.writePump()
	g.readLoop(conn)
	return nil
}

// readLoop consumes inbound events until the transport drops. Every failure
// inside an event handler surfaces as an error event on this connection;
// only a transport error ends the loop.
func (g *Gateway) readLoop(conn *Conn) {
	defer func() {
		g.hub.unregister(conn)
		g.log.Info().Str("user_id", conn.userID).Str("conn_id", conn.id).Msg("connection closed")
	}()

	conn.ws.SetReadLimit(maxMessageSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ws.ReadJSON(&in); err != nil {
			return
		}

		switch in.Event {
		case EventInvoke:
			g.handleInvoke(context.Background(), conn, in.Data)
		default:
			conn.emit(EventAgentError, errorPayload{Error: "unknown event: " + in.Event})
		}
	}
}

type invokePayload struct {
	AgentID        string `json:"agentId" validate:"required"`
	ConversationID string `json:"conversationId"`
	Message        string `json:"message" validate:"required"`
}

type errorPayload struct {
	Error string `json:"error"`
}

type typingPayload struct {
	AgentID        string `json:"agentId"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type streamPayload struct {
	ConversationID string `json:"conversationId"`
	Chunk          string `json:"chunk"`
	Done           bool   `json:"done"`
}

// handleInvoke runs one user-originated invocation end to end. Ownership
// failures are reported as "not found" so a caller cannot probe for other
// users' agents.
func (g *Gateway) handleInvoke(ctx context.Context, conn *Conn, raw json.RawMessage) {
	var in invokePayload
	if err := json.Unmarshal(raw, &in); err != nil {
		conn.emit(EventAgentError, errorPayload{Error: "malformed invoke payload"})
		return
	}
	if err := g.validate.Struct(&in); err != nil {
		conn.emit(EventAgentError, errorPayload{Error: "agentId and message required"})
		return
	}

	agent, err := g.agents.FindByID(ctx, in.AgentID)
	if err != nil && err != domain.ErrAgentNotFound {
		g.log.Error().Err(err).Str("agent_id", in.AgentID).Msg("failed to resolve agent")
		conn.emit(EventAgentError, errorPayload{Error: "failed to resolve agent"})
		return
	}
	// Absence and lack of visibility are deliberately indistinguishable.
	if err != nil || !agent.VisibleTo(conn.userID) {
		conn.emit(EventAgentError, errorPayload{Error: "Agent not found"})
		return
	}

	convID := in.ConversationID
	if convID == "" {
		conv := &domain.Conversation{
			ID:        uuid.NewString(),
			AgentID:   agent.ID,
			UserID:    conn.userID,
			CreatedAt: time.Now().UTC(),
		}
		if err := g.conversations.Create(ctx, conv); err != nil {
			g.log.Error().Err(err).Str("agent_id", agent.ID).Msg("failed to create conversation")
			conn.emit(EventAgentError, errorPayload{Error: "failed to create conversation"})
			return
		}
		convID = conv.ID
		// Announced before any other event so the client can correlate
		// everything that follows.
		conn.emit(EventConversationCreated, map[string]string{"conversationId": convID})
	} else {
		conv, err := g.conversations.FindByID(ctx, convID)
		if err != nil && err != domain.ErrConversationNotFound {
			g.log.Error().Err(err).Str("conversation_id", convID).Msg("failed to load conversation")
			conn.emit(EventAgentError, errorPayload{Error: "failed to load conversation"})
			return
		}
		if err != nil || conv.UserID != conn.userID {
			conn.emit(EventAgentError, errorPayload{Error: "Conversation not found"})
			return
		}
	}

	if err := g.appendMessage(ctx, convID, domain.MessageRoleUser, in.Message); err != nil {
		g.log.Error().Err(err).Str("conversation_id", convID).Msg("failed to persist user message")
		conn.emit(EventAgentError, errorPayload{Error: "failed to persist message"})
		return
	}
	g.hooks.Fire("message_received", map[string]any{
		"agentId":        agent.ID,
		"conversationId": convID,
		"userId":         conn.userID,
		"message":        in.Message,
	})

	conn.emit(EventTyping, typingPayload{AgentID: agent.ID, ConversationID: convID, IsTyping: true})
	conn.emit(EventAgentStream, streamPayload{ConversationID: convID, Chunk: "", Done: false})

	if err := g.appendMessage(ctx, convID, domain.MessageRoleAssistant, placeholderResponse); err != nil {
		g.log.Error().Err(err).Str("conversation_id", convID).Msg("failed to persist assistant message")
	}

	conn.emit(EventAgentStream, streamPayload{ConversationID: convID, Chunk: placeholderResponse, Done: true})
	conn.emit(EventAgentDone, map[string]string{"conversationId": convID, "response": placeholderResponse})
	conn.emit(EventTyping, typingPayload{AgentID: agent.ID, ConversationID: convID, IsTyping: false})

	g.hooks.Fire("agent_response", map[string]any{
		"agentId":        agent.ID,
		"conversationId": convID,
		"userId":         conn.userID,
		"response":       placeholderResponse,
	})
}

func (g *Gateway) appendMessage(ctx context.Context, convID, role, content string) error {
	return g.messages.Append(ctx, &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	})
}
