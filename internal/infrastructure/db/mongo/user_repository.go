package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
)

const (
	usersCollection = "users"
	rolesCollection = "roles"
)

// UserRepository is the MongoDB identity store. User IDs are persisted in
// canonical upper case, so all lookups are exact-match.
type UserRepository struct {
	users *mongo.Collection
	roles *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		users: db.Collection(usersCollection),
		roles: db.Collection(rolesCollection),
	}
}

type mongoUser struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	Username     string    `bson:"username"`
	DisplayName  string    `bson:"display_name"`
	PasswordHash string    `bson:"password_hash"`
	RoleID       int       `bson:"role_id"`
	IsActive     bool      `bson:"is_active"`
	Settings     string    `bson:"settings"`
	LastSeenAt   time.Time `bson:"last_seen_at,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

type mongoRole struct {
	ID      int    `bson:"_id"`
	Name    string `bson:"name"`
	IsAdmin bool   `bson:"is_admin"`
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	doc := mongoUser{
		ID:           strings.ToUpper(user.ID),
		Email:        user.Email,
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		PasswordHash: user.PasswordHash,
		RoleID:       user.RoleID,
		IsActive:     user.IsActive,
		Settings:     string(user.Settings),
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return r.FindByID(ctx, doc.ID)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": strings.ToUpper(id)})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) SetLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.users.UpdateByID(ctx, strings.ToUpper(id), bson.M{"$set": bson.M{"last_seen_at": at}})
	if err != nil {
		return fmt.Errorf("set last seen: %w", err)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var mu mongoUser
	if err := r.users.FindOne(ctx, filter).Decode(&mu); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	role, err := r.findRole(ctx, mu.RoleID)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		ID:           mu.ID,
		Email:        mu.Email,
		Username:     mu.Username,
		DisplayName:  mu.DisplayName,
		PasswordHash: mu.PasswordHash,
		RoleID:       mu.RoleID,
		Role:         role,
		IsActive:     mu.IsActive,
		Settings:     []byte(mu.Settings),
		LastSeenAt:   mu.LastSeenAt,
		CreatedAt:    mu.CreatedAt,
		UpdatedAt:    mu.UpdatedAt,
	}, nil
}

func (r *UserRepository) findRole(ctx context.Context, id int) (domain.Role, error) {
	var mr mongoRole
	if err := r.roles.FindOne(ctx, bson.M{"_id": id}).Decode(&mr); err != nil {
		if err == mongo.ErrNoDocuments {
			// Unknown role reference degrades to a non-admin tier.
			return domain.Role{ID: id}, nil
		}
		return domain.Role{}, fmt.Errorf("find role: %w", err)
	}
	return domain.Role{ID: mr.ID, Name: mr.Name, IsAdmin: mr.IsAdmin}, nil
}

// seedRoles upserts the two fixed permission tiers.
func seedRoles(ctx context.Context, db *mongo.Database) error {
	roles := db.Collection(rolesCollection)
	for _, role := range []mongoRole{
		{ID: domain.RoleUser, Name: "user", IsAdmin: false},
		{ID: domain.RoleAdmin, Name: "admin", IsAdmin: true},
	} {
		_, err := roles.UpdateByID(ctx, role.ID,
			bson.M{"$setOnInsert": bson.M{"name": role.Name, "is_admin": role.IsAdmin}},
			options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("seed role %q: %w", role.Name, err)
		}
	}
	return nil
}
