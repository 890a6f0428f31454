package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/pkg/jwtx"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/slogx"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultJWKSCacheTTL is how long fetched keys are used before a refetch.
	DefaultJWKSCacheTTL = time.Hour
	// DefaultJWKSMinRefreshInterval limits forced refreshes on unknown kids.
	DefaultJWKSMinRefreshInterval = time.Minute
)

// ErrRefreshRateLimited is returned by Refresh when the last forced refresh
// was too recent.
var ErrRefreshRateLimited = errors.New("token: jwks refresh rate limited")

// JWKSSource supplies the keys ID tokens are verified against.
type JWKSSource interface {
	// Keys returns the current key set, fetching it if needed.
	Keys(ctx context.Context) (*jwtx.KeySet, error)
	// Refresh refetches the keys, typically after seeing an unknown kid.
	Refresh(ctx context.Context) (*jwtx.KeySet, error)
}

// JWKSFetcher is the HTTP side, implemented by api.Client.
type JWKSFetcher interface {
	JWKS(ctx context.Context) (jwtx.JWKS, error)
}

// RemoteJWKS caches the identity provider's keys. Concurrent fetches are
// collapsed into one request and forced refreshes are rate limited so a
// flood of tokens with a bogus kid can't hammer the server.
type RemoteJWKS struct {
	fetcher JWKSFetcher
	logger  *slog.Logger
	ttl     time.Duration
	limiter *rate.Limiter
	now     func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	keys      *jwtx.KeySet
	fetchedAt time.Time
}

var _ JWKSSource = (*RemoteJWKS)(nil)

func NewRemoteJWKS(fetcher JWKSFetcher, logger *slog.Logger) *RemoteJWKS {
	return &RemoteJWKS{
		fetcher: fetcher,
		logger:  slogx.OrDefault(logger),
		ttl:     DefaultJWKSCacheTTL,
		limiter: rate.NewLimiter(rate.Every(DefaultJWKSMinRefreshInterval), 1),
		now:     time.Now,
	}
}

func (r *RemoteJWKS) Keys(ctx context.Context) (*jwtx.KeySet, error) {
	r.mu.RLock()
	keys, fetchedAt := r.keys, r.fetchedAt
	r.mu.RUnlock()

	if keys != nil && r.now().Sub(fetchedAt) < r.ttl {
		return keys, nil
	}
	return r.fetch(ctx)
}

func (r *RemoteJWKS) Refresh(ctx context.Context) (*jwtx.KeySet, error) {
	if !r.limiter.Allow() {
		return nil, ErrRefreshRateLimited
	}
	return r.fetch(ctx)
}

func (r *RemoteJWKS) fetch(ctx context.Context) (*jwtx.KeySet, error) {
	v, err, _ := r.group.Do("jwks", func() (any, error) {
		jwks, err := r.fetcher.JWKS(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch jwks: %w", err)
		}

		keys, err := jwtx.KeySetFromJWKS(jwks)
		if err != nil {
			return nil, fmt.Errorf("failed to load jwks: %w", err)
		}

		r.mu.Lock()
		r.keys = keys
		r.fetchedAt = r.now()
		r.mu.Unlock()

		r.logger.Debug("fetched jwks", "keys", keys.Len())
		return keys, nil
	})
	if err != nil {
		r.logger.Warn("jwks fetch failed", "error", err)
		return nil, err
	}
	return v.(*jwtx.KeySet), nil
}

// StaticJWKS is a fixed key set. Refresh never finds anything new.
type StaticJWKS struct {
	Set *jwtx.KeySet
}

func (s StaticJWKS) Keys(context.Context) (*jwtx.KeySet, error) {
	if s.Set == nil {
		return nil, jwtx.ErrNoKey
	}
	return s.Set, nil
}

func (s StaticJWKS) Refresh(ctx context.Context) (*jwtx.KeySet, error) {
	return s.Keys(ctx)
}
