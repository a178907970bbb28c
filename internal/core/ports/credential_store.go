package ports

import (
	"context"
	"time"
)

// RefreshRecord is one outstanding refresh credential: the SHA-256 digest of
// the raw token (never the token itself), the identity it belongs to and its
// absolute expiry.
type RefreshRecord struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
}

// CredentialStore persists outstanding refresh-credential digests. The store
// is the server-side half of refresh token validity: a token whose digest is
// absent here is dead regardless of its signature.
type CredentialStore interface {
	Insert(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// FindValid returns the record for the digest, excluding expired rows.
	// Absence is reported as (nil, nil).
	FindValid(ctx context.Context, tokenHash string) (*RefreshRecord, error)

	// DeleteByHash removes the record and reports whether anything was
	// deleted. Rotation uses the returned flag as its atomicity gate: two
	// concurrent rotations of the same token must not both observe true.
	DeleteByHash(ctx context.Context, tokenHash string) (bool, error)

	DeleteAllForUser(ctx context.Context, userID string) error
}
