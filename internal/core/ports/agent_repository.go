package ports

import (
	"context"

	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
)

// AgentRepository is the read surface the gateway needs to resolve invoke
// targets. Agent CRUD is handled elsewhere.
type AgentRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Agent, error)
}

// ConversationRepository persists conversations created by the gateway.
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
}

// MessageRepository appends to a conversation's persisted history.
type MessageRepository interface {
	Append(ctx context.Context, msg *domain.Message) error
}
