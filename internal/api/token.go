package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// expiryBuffer is how long before expiry a token is considered stale
const expiryBuffer = 60 * time.Second

// TokenCache persists access tokens between runs
type TokenCache interface {
	LoadToken(ctx context.Context) (*oauth2.Token, error)
	SaveToken(ctx context.Context, tok *oauth2.Token) error
}

// CachedTokenSource hands out the cached token while it is fresh and
// fetches and saves a new one from base otherwise
type CachedTokenSource struct {
	base  oauth2.TokenSource
	cache TokenCache
	token *oauth2.Token
	mu    sync.Mutex
}

// NewCachedTokenSource seeds the source from cache. A missing or unreadable
// cached token just means the first call goes to base.
func NewCachedTokenSource(ctx context.Context, base oauth2.TokenSource, cache TokenCache) *CachedTokenSource {
	ts := &CachedTokenSource{base: base, cache: cache}
	if tok, err := cache.LoadToken(ctx); err == nil {
		ts.token = tok
	}
	return ts
}

// Token returns a valid token, fetching a new one if necessary
func (ts *CachedTokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.fresh() {
		return ts.token, nil
	}

	tok, err := ts.base.Token()
	if err != nil {
		return nil, err
	}
	if err := ts.cache.SaveToken(context.Background(), tok); err != nil {
		return nil, err
	}

	ts.token = tok
	return tok, nil
}

func (ts *CachedTokenSource) fresh() bool {
	if ts.token == nil || ts.token.AccessToken == "" {
		return false
	}
	if ts.token.Expiry.IsZero() {
		return true
	}
	return time.Until(ts.token.Expiry) > expiryBuffer
}
