package ports

import (
	"context"

	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
)

// SignupInput carries the fields required to create an account.
type SignupInput struct {
	Email       string
	Password    string
	Username    string
	DisplayName string
}

// AuthService implements account signup and the credential lifecycle around
// it.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*domain.User, *domain.TokenPair, error)

	// Login accepts an email or username. Deactivated accounts are rejected
	// even with a correct password.
	Login(ctx context.Context, login, password string) (*domain.User, *domain.TokenPair, error)

	// Refresh rotates a refresh token into a fresh pair.
	Refresh(ctx context.Context, rawRefresh string) (*domain.User, *domain.TokenPair, error)

	// Logout revokes the presented refresh token. Best-effort: an already
	// revoked token is not an error.
	Logout(ctx context.Context, rawRefresh string) error
}
