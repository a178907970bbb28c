package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
)

const (
	agentsCollection        = "ai_agents"
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

// AgentRepository resolves invoke targets. Writes to the agents collection
// happen outside this core.
type AgentRepository struct {
	coll *mongo.Collection
}

func NewAgentRepository(db *mongo.Database) *AgentRepository {
	return &AgentRepository{coll: db.Collection(agentsCollection)}
}

type mongoAgent struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id,omitempty"`
	Name        string    `bson:"name"`
	Description string    `bson:"description,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (r *AgentRepository) FindByID(ctx context.Context, id string) (*domain.Agent, error) {
	var ma mongoAgent
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&ma); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrAgentNotFound
		}
		return nil, fmt.Errorf("find agent: %w", err)
	}
	return &domain.Agent{
		ID:          ma.ID,
		UserID:      ma.UserID,
		Name:        ma.Name,
		Description: ma.Description,
		CreatedAt:   ma.CreatedAt,
	}, nil
}

// ConversationRepository persists conversations created by the gateway.
type ConversationRepository struct {
	coll *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{coll: db.Collection(conversationsCollection)}
}

type mongoConversation struct {
	ID        string    `bson:"_id"`
	AgentID   string    `bson:"agent_id"`
	UserID    string    `bson:"user_id"`
	Title     string    `bson:"title,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	doc := mongoConversation{
		ID:        conv.ID,
		AgentID:   conv.AgentID,
		UserID:    conv.UserID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var mc mongoConversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&mc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &domain.Conversation{
		ID:        mc.ID,
		AgentID:   mc.AgentID,
		UserID:    mc.UserID,
		Title:     mc.Title,
		CreatedAt: mc.CreatedAt,
	}, nil
}

// MessageRepository appends conversation history.
type MessageRepository struct {
	coll *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{coll: db.Collection(messagesCollection)}
}

type mongoMessage struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	Role           string    `bson:"role"`
	Content        string    `bson:"content"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (r *MessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	doc := mongoMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
