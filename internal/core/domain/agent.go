package domain

import "time"

// Agent is an AI agent definition. Only the fields the gateway needs are
// modelled here; agent CRUD lives outside this core.
type Agent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"` // empty means shared/public
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// VisibleTo reports whether the agent may be invoked by the given user.
// Agents with no owner are visible to everyone.
func (a *Agent) VisibleTo(userID string) bool {
	return a.UserID == "" || a.UserID == userID
}

// Conversation groups the messages exchanged between one user and one agent.
type Conversation struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Message roles, matching the persisted history.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message is a single entry in a conversation's persisted history.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
