package users

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/folio/pkg/auth"
)

// Resolver loads the caller's user record for the identity stage. Lookups are
// cached briefly; every account mutation calls Invalidate.
type Resolver struct {
	store *Store
	cache *expirable.LRU[int64, *auth.User]
}

// NewResolver creates a resolver. A non-positive ttl disables caching.
func NewResolver(store *Store, size int, ttl time.Duration) *Resolver {
	r := &Resolver{store: store}
	if ttl > 0 {
		if size <= 0 {
			size = 1024
		}
		r.cache = expirable.NewLRU[int64, *auth.User](size, nil, ttl)
	}
	return r
}

// Resolve returns the user with userID, or USER_NOT_FOUND
func (r *Resolver) Resolve(ctx context.Context, userID int64) (*auth.User, error) {
	if r.cache != nil {
		if user, ok := r.cache.Get(userID); ok {
			return user, nil
		}
	}

	user, err := r.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Add(userID, user)
	}
	return user, nil
}

// Invalidate drops any cached record for userID
func (r *Resolver) Invalidate(userID int64) {
	if r.cache != nil {
		r.cache.Remove(userID)
	}
}
