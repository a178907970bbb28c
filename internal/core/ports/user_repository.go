package ports

import (
	"context"
	"time"

	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
)

// UserRepository defines the interface for identity persistence. Lookups
// return domain.ErrUserNotFound on absence, never a nil user with nil error.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	SetLastSeen(ctx context.Context, id string, at time.Time) error
}
