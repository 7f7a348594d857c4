package phonepewebhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const dedupeProvider = "phonepe"

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookKey(provider, id string) string
}

// IdempotencyGuard suppresses exact redeliveries. PhonePe sends no event id,
// so the key is the SHA-256 of the raw body.
type IdempotencyGuard struct {
	store dedupeStore
	ttl   time.Duration
}

func NewIdempotencyGuard(store dedupeStore, ttl time.Duration) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &IdempotencyGuard{store: store, ttl: ttl}, nil
}

// BodyDigest is the dedupe id for a delivery.
func BodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// CheckAndMark reports whether the delivery was already seen, marking it otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, digest string) (bool, error) {
	if digest == "" {
		return false, errors.New("digest is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookKey(dedupeProvider, digest), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set webhook key: %w", err)
	}
	return !set, nil
}

// Delete forgets a delivery so a retry is processed again.
func (g *IdempotencyGuard) Delete(ctx context.Context, digest string) error {
	if digest == "" {
		return errors.New("digest is required")
	}
	return g.store.Del(ctx, g.store.WebhookKey(dedupeProvider, digest))
}
