package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTokenInvalid covers absent, malformed and expired tokens alike. The
// three cases are deliberately indistinguishable to callers so the endpoint
// cannot be used as an expiry oracle.
var ErrTokenInvalid = errors.New("core: token invalid")

const minTokenBytes = 32

// TokenService drives the expiring-credential state machine:
// issued -> (refresh)* -> expired or revoked.
type TokenService struct {
	store      TokenStore
	lifetime   time.Duration
	tokenBytes int
	now        func() time.Time
}

func NewTokenService(store TokenStore, cfg Config) (*TokenService, error) {
	if store == nil {
		return nil, fmt.Errorf("core: token store is required")
	}
	tokenBytes := cfg.tokenBytes()
	if tokenBytes < minTokenBytes {
		return nil, fmt.Errorf("core: token entropy below %d bytes is not allowed", minTokenBytes)
	}
	return &TokenService{
		store:      store,
		lifetime:   cfg.tokenLifetime(),
		tokenBytes: tokenBytes,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Issue generates a fresh URL-safe token value for the principal and
// persists it. The returned string is the only transmission of the raw
// value; the service never reads it back out of the store for a caller.
func (s *TokenService) Issue(ctx context.Context, ownerID int64) (string, error) {
	return s.IssueWithLifetime(ctx, ownerID, s.lifetime)
}

func (s *TokenService) IssueWithLifetime(ctx context.Context, ownerID int64, lifetime time.Duration) (string, error) {
	if s == nil || s.store == nil {
		return "", fmt.Errorf("core: token service is not configured")
	}
	if lifetime <= 0 {
		lifetime = s.lifetime
	}
	value, err := generateTokenValue(s.tokenBytes)
	if err != nil {
		return "", fmt.Errorf("core: generate token value: %w", err)
	}
	if _, err := s.store.Insert(ctx, value, ownerID, s.now().Add(lifetime)); err != nil {
		return "", err
	}
	return value, nil
}

// Validate resolves a token value to its owner identity. Expired tokens are
// treated identically to nonexistent ones.
func (s *TokenService) Validate(ctx context.Context, value string) (int64, error) {
	if s == nil || s.store == nil {
		return 0, fmt.Errorf("core: token service is not configured")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrTokenInvalid
	}
	token, found, err := s.store.FindByValue(ctx, value)
	if err != nil {
		return 0, err
	}
	if !found || !token.Valid(s.now()) {
		return 0, ErrTokenInvalid
	}
	return token.OwnerID, nil
}

// Refresh extends a stored token by lifetime seconds from now. Existence is
// the only precondition: a stored-but-expired token is revived until the
// sweeper removes it, matching the legacy refresh semantics.
func (s *TokenService) Refresh(ctx context.Context, value string) (bool, error) {
	return s.RefreshWithLifetime(ctx, value, s.lifetime)
}

func (s *TokenService) RefreshWithLifetime(ctx context.Context, value string, lifetime time.Duration) (bool, error) {
	if s == nil || s.store == nil {
		return false, fmt.Errorf("core: token service is not configured")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	if lifetime <= 0 {
		lifetime = s.lifetime
	}
	return s.store.UpdateExpiry(ctx, value, s.now().Add(lifetime))
}

// RemainingLifetime reports the seconds until expiry. The value is not
// clamped: a stale token that the sweeper has not collected yet yields a
// negative remainder, as the legacy endpoint did. found=false when absent.
func (s *TokenService) RemainingLifetime(ctx context.Context, value string) (int64, bool, error) {
	if s == nil || s.store == nil {
		return 0, false, fmt.Errorf("core: token service is not configured")
	}
	token, found, err := s.store.FindByValue(ctx, strings.TrimSpace(value))
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	return int64(token.ExpiresAt.Sub(s.now()) / time.Second), true, nil
}

// Revoke deletes the token. Idempotent: revoking an absent value reports
// false without error.
func (s *TokenService) Revoke(ctx context.Context, value string) (bool, error) {
	if s == nil || s.store == nil {
		return false, fmt.Errorf("core: token service is not configured")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	return s.store.Delete(ctx, value)
}

// GarbageCollect removes every token whose expiry is at or before now.
// Safe to call concurrently with validation: a token deleted mid-request
// simply fails its next validate.
func (s *TokenService) GarbageCollect(ctx context.Context, now time.Time, batchSize int) (int, error) {
	if s == nil || s.store == nil {
		return 0, fmt.Errorf("core: token service is not configured")
	}
	if now.IsZero() {
		now = s.now()
	}
	return s.store.DeleteExpired(ctx, now, batchSize)
}

func generateTokenValue(size int) (string, error) {
	if size < minTokenBytes {
		size = minTokenBytes
	}
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
