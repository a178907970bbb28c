package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
	"github.com/Simon2219/BetterIntelligence/internal/core/ports"
)

const (
	userIDLength      = 6
	userIDAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	userIDMaxAttempts = 10

	passwordMinLength = 8
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
)

// AuthService implements signup, login and the refresh/logout lifecycle on
// top of TokenService.
type AuthService struct {
	users  ports.UserRepository
	tokens ports.TokenService
	hasher ports.PasswordHasher
	log    zerolog.Logger
}

// NewAuthService wires the identity repository, token service and password
// hasher together.
func NewAuthService(users ports.UserRepository, tokens ports.TokenService, hasher ports.PasswordHasher, log zerolog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, hasher: hasher, log: log}
}

// Signup validates the input, creates the account and issues the first
// credential pair. New accounts get the non-admin role.
func (s *AuthService) Signup(ctx context.Context, in ports.SignupInput) (*domain.User, *domain.TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	displayName := strings.TrimSpace(in.DisplayName)

	if email == "" || in.Password == "" || username == "" || displayName == "" {
		return nil, nil, fmt.Errorf("%w: email, password, username and display name are required", domain.ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return nil, nil, fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	if !usernamePattern.MatchString(username) {
		return nil, nil, fmt.Errorf("%w: username must be 3-30 alphanumeric/underscore characters", domain.ErrValidation)
	}
	if len(in.Password) < passwordMinLength {
		return nil, nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, passwordMinLength)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, nil, domain.ErrUserExists
	} else if err != domain.ErrUserNotFound {
		return nil, nil, err
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, nil, domain.ErrUserExists
	} else if err != domain.ErrUserNotFound {
		return nil, nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.generateUserID(ctx)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           id,
		Email:        email,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		RoleID:       domain.RoleUser,
		IsActive:     true,
		Settings:     []byte(`{"theme":"dark"}`),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.tokens.Issue(ctx, created)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("user signed up")
	return created, pair, nil
}

// Login resolves the account by email or username, checks the password and
// issues a pair. Lookup failure and password failure both surface as
// ErrCredentialInvalid so login cannot be used to probe account existence.
func (s *AuthService) Login(ctx context.Context, login, password string) (*domain.User, *domain.TokenPair, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: login and password are required", domain.ErrValidation)
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(login))
	if err == domain.ErrUserNotFound {
		user, err = s.users.FindByUsername(ctx, login)
	}
	if err == domain.ErrUserNotFound {
		return nil, nil, domain.ErrCredentialInvalid
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, domain.ErrAccountDeactivated
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, nil, domain.ErrCredentialInvalid
	}

	pair, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.SetLastSeen(ctx, user.ID, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to update last seen")
	}

	return user, pair, nil
}

// Refresh rotates the presented refresh token into a fresh pair.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (*domain.User, *domain.TokenPair, error) {
	userID, err := s.tokens.RefreshSubject(rawRefresh)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err == domain.ErrUserNotFound {
		return nil, nil, domain.ErrCredentialInvalid
	}
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, domain.ErrAccountDeactivated
	}

	pair, err := s.tokens.Rotate(ctx, rawRefresh, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Logout revokes the presented refresh token. Revocation is idempotent, so
// a stale or already rotated token is not an error.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string) error {
	if rawRefresh == "" {
		return nil
	}
	return s.tokens.Revoke(ctx, rawRefresh)
}

// generateUserID produces a fixed-length code over A-Z0-9, already in
// canonical upper case, retrying on the (unlikely) collision.
func (s *AuthService) generateUserID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < userIDMaxAttempts; attempt++ {
		id, err := randomCode(userIDLength)
		if err != nil {
			return "", err
		}
		if _, err := s.users.FindByID(ctx, id); err == domain.ErrUserNotFound {
			return id, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("generate user id: exhausted %d attempts", userIDMaxAttempts)
}

func randomCode(length int) (string, error) {
	max := big.NewInt(int64(len(userIDAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = userIDAlphabet[n.Int64()]
	}
	return string(b), nil
}
