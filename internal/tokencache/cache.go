package tokencache

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
	"github.com/angelmondragon/bikerent-backend/pkg/phonepe"
)

const defaultSkew = 60 * time.Second

// TokenFetcher performs the processor credential exchange.
type TokenFetcher interface {
	FetchToken(ctx context.Context) (*phonepe.TokenResponse, error)
}

// Provider hands out a usable access token.
type Provider interface {
	Get(ctx context.Context) (string, error)
}

type CacheParams struct {
	Store   Store
	Fetcher TokenFetcher
	Logger  *logger.Logger
	// Skew treats tokens expiring within this margin as already expired.
	Skew time.Duration
	Now  func() time.Time
}

// Cache returns the newest stored token or mints a new one. There is no
// cross-caller lock: concurrent misses may each mint a token, and every
// minted token is valid, so the only cost is an extra exchange.
type Cache struct {
	store   Store
	fetcher TokenFetcher
	logg    *logger.Logger
	skew    time.Duration
	now     func() time.Time
}

func NewCache(params CacheParams) (*Cache, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("token store required")
	}
	if params.Fetcher == nil {
		return nil, fmt.Errorf("token fetcher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	skew := params.Skew
	if skew < 0 {
		skew = 0
	} else if skew == 0 {
		skew = defaultSkew
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{store: params.Store, fetcher: params.Fetcher, logg: params.Logger, skew: skew, now: now}, nil
}

func (c *Cache) Get(ctx context.Context) (string, error) {
	now := c.now()

	cached, err := c.store.Get(ctx, now.Add(c.skew))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cached token")
	}
	if cached != nil {
		return cached.Token, nil
	}

	fresh, err := c.fetcher.FetchToken(ctx)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return "", err
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeRemoteAPI, err, "fetch access token")
	}

	record := &models.AuthToken{
		Token:     fresh.AccessToken,
		ExpiresAt: time.Unix(fresh.ExpiresAt, 0).UTC(),
	}
	if err := c.store.Set(ctx, record); err != nil {
		// The token is still usable for this call; the next miss mints again.
		c.logg.Error(ctx, "persist access token", err)
	}
	c.logg.Info(c.logg.WithField(ctx, "expires_at", record.ExpiresAt), "minted processor access token")
	return fresh.AccessToken, nil
}
