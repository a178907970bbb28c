package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
	"github.com/Simon2219/BetterIntelligence/internal/core/ports"
)

const tokenIssuer = "betterintelligence"

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// TokenService implements the two-token credential model: a short-lived
// stateless access token and a single-use rotating refresh token whose
// digest is tracked server-side.
type TokenService struct {
	store         ports.CredentialStore
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService builds a TokenService. The two secrets are independent;
// rotating either invalidates all outstanding tokens of that kind.
func NewTokenService(store ports.CredentialStore, accessSecret, refreshSecret string, opts ...TokenOption) *TokenService {
	s := &TokenService{
		store:         store,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashToken returns the hex SHA-256 digest of a raw token string. The digest
// is computed over the raw compact form, so a leaked store can neither forge
// tokens nor recover them.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Issue builds and signs both credentials and persists the refresh digest.
// Each token carries a unique jti; IssuedAt alone is second-granular, and two
// pairs issued in the same second must never share a digest.
func (s *TokenService) Issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	now := s.now().UTC()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, domain.AccessClaims{
		UserID:   user.ID,
		Username: user.Username,
		RoleID:   user.RoleID,
		IsAdmin:  user.IsAdmin(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
	accessToken, err := access.SignedString(s.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshExpiry := now.Add(s.refreshTTL)
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, domain.RefreshClaims{
		UserID:    user.ID,
		TokenType: domain.RefreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
	})
	refreshToken, err := refresh.SignedString(s.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.store.Insert(ctx, user.ID, HashToken(refreshToken), refreshExpiry); err != nil {
		return nil, fmt.Errorf("store refresh digest: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// VerifyAccess validates signature, expiry and issuer. Every failure mode
// collapses into domain.ErrCredentialInvalid.
func (s *TokenService) VerifyAccess(token string) (*domain.AccessClaims, error) {
	claims := &domain.AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyfunc(s.accessSecret),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, domain.ErrCredentialInvalid
	}
	return claims, nil
}

// RefreshSubject verifies a refresh token's signature, type and issuer and
// returns its subject user ID without consuming it.
func (s *TokenService) RefreshSubject(token string) (string, error) {
	claims, err := s.verifyRefresh(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// Rotate consumes the refresh token and issues a fresh pair. The store
// delete is the atomicity gate: of two concurrent rotations of the same raw
// token, exactly one observes the row and wins.
func (s *TokenService) Rotate(ctx context.Context, rawRefresh string, user *domain.User) (*domain.TokenPair, error) {
	if _, err := s.verifyRefresh(rawRefresh); err != nil {
		return nil, err
	}

	hash := HashToken(rawRefresh)
	record, err := s.store.FindValid(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup refresh digest: %w", err)
	}
	if record == nil {
		return nil, domain.ErrCredentialInvalid
	}

	deleted, err := s.store.DeleteByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("consume refresh digest: %w", err)
	}
	if !deleted {
		// Lost the race against a concurrent rotation or a revocation.
		return nil, domain.ErrCredentialInvalid
	}

	return s.Issue(ctx, user)
}

// Revoke deletes the digest row for the token. Unknown or already revoked
// tokens are a no-op.
func (s *TokenService) Revoke(ctx context.Context, rawRefresh string) error {
	_, err := s.store.DeleteByHash(ctx, HashToken(rawRefresh))
	return err
}

// RevokeAll deletes every outstanding refresh digest for the user, used on
// account-wide logout and deactivation.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	return s.store.DeleteAllForUser(ctx, userID)
}

func (s *TokenService) verifyRefresh(token string) (*domain.RefreshClaims, error) {
	claims := &domain.RefreshClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyfunc(s.refreshSecret),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, domain.ErrCredentialInvalid
	}
	if claims.TokenType != domain.RefreshTokenType || claims.UserID == "" {
		return nil, domain.ErrCredentialInvalid
	}
	return claims, nil
}

func (s *TokenService) keyfunc(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	}
}
