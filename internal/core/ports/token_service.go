package ports

import (
	"context"

	"github.com/Simon2219/BetterIntelligence/internal/core/domain"
)

// TokenService issues, verifies, rotates and revokes the two credential
// kinds. All verification failures collapse into domain.ErrCredentialInvalid.
type TokenService interface {
	// Issue builds a signed access/refresh pair for the user and persists
	// the refresh token's digest in the credential store.
	Issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error)

	// VerifyAccess checks signature, expiry and issuer. Stateless: no store
	// lookup is performed.
	VerifyAccess(token string) (*domain.AccessClaims, error)

	// RefreshSubject verifies a refresh token's signature, type and issuer
	// and returns the user ID it was issued to. It does not consume the
	// token; callers use it to resolve the identity before Rotate.
	RefreshSubject(token string) (string, error)

	// Rotate redeems a refresh token: its digest must still be present and
	// unexpired in the store. The digest is consumed and a brand-new pair is
	// issued. A second rotation with the same raw token fails.
	Rotate(ctx context.Context, rawRefresh string, user *domain.User) (*domain.TokenPair, error)

	// Revoke deletes the store row matching the token's digest. Idempotent.
	Revoke(ctx context.Context, rawRefresh string) error

	// RevokeAll deletes every outstanding refresh digest for the user.
	RevokeAll(ctx context.Context, userID string) error
}
