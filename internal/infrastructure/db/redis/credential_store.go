package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Simon2219/BetterIntelligence/internal/core/ports"
)

// Key layout:
//
//	refresh:<hash>      -> userID        (TTL = digest expiry)
//	refresh_user:<uid>  -> set of hashes (TTL = longest member expiry)
//
// The per-user set exists only to serve DeleteAllForUser; members whose
// value key already expired are harmless because DeleteByHash on them
// reports nothing deleted.
type CredentialStore struct {
	client *redis.Client
}

// NewCredentialStore wraps the given Redis client.
func NewCredentialStore(client *redis.Client) *CredentialStore {
	return &CredentialStore{client: client}
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

func hashKey(tokenHash string) string { return "refresh:" + tokenHash }
func userKey(userID string) string    { return "refresh_user:" + userID }

// Insert stores the digest with a TTL matching its absolute expiry and adds
// it to the user's revocation set.
func (s *CredentialStore) Insert(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("insert refresh digest: expiry %s is in the past", expiresAt)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, hashKey(tokenHash), userID, ttl)
	pipe.SAdd(ctx, userKey(userID), tokenHash)
	pipe.Expire(ctx, userKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert refresh digest: %w", err)
	}
	return nil
}

// FindValid returns the record for the digest. Expiry is enforced by the key
// TTL, so presence implies validity.
func (s *CredentialStore) FindValid(ctx context.Context, tokenHash string) (*ports.RefreshRecord, error) {
	userID, err := s.client.Get(ctx, hashKey(tokenHash)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh digest: %w", err)
	}

	ttl, err := s.client.TTL(ctx, hashKey(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("refresh digest ttl: %w", err)
	}

	return &ports.RefreshRecord{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

// DeleteByHash removes the digest. DEL's reply count is the atomicity gate:
// concurrent deletes of the same key see it exactly once.
func (s *CredentialStore) DeleteByHash(ctx context.Context, tokenHash string) (bool, error) {
	userID, err := s.client.Get(ctx, hashKey(tokenHash)).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("delete refresh digest: %w", err)
	}

	n, err := s.client.Del(ctx, hashKey(tokenHash)).Result()
	if err != nil {
		return false, fmt.Errorf("delete refresh digest: %w", err)
	}
	if n > 0 && userID != "" {
		_ = s.client.SRem(ctx, userKey(userID), tokenHash).Err()
	}
	return n > 0, nil
}

// DeleteAllForUser removes every digest tracked for the user.
func (s *CredentialStore) DeleteAllForUser(ctx context.Context, userID string) error {
	hashes, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("list refresh digests: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, h := range hashes {
		pipe.Del(ctx, hashKey(h))
	}
	pipe.Del(ctx, userKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete refresh digests: %w", err)
	}
	return nil
}
