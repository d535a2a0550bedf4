package authz

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zapconecta/session-server/internal/obs"
)

const DefaultTTL = 2 * time.Minute

// Cache holds the authority's allow-list for a bounded freshness window so
// that every authorization request does not hit the upstream spreadsheet
// endpoint. The entry list is only ever replaced wholesale: a refresh either
// fully succeeds or leaves the previous list untouched.
type Cache struct {
	authority Authority
	ttl       time.Duration
	nowTime   func() time.Time

	mu            sync.Mutex
	entries       []AuthorizedUser
	lastFetchedAt time.Time
	populated     bool
}

// CacheOption defines a function type to modify the Cache instance.
type CacheOption func(*Cache)

// WithTTL overrides the default freshness window.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) CacheOption {
	return func(c *Cache) {
		c.nowTime = nowFunc
	}
}

func NewCache(authority Authority, options ...CacheOption) *Cache {
	cache := &Cache{
		authority: authority,
		ttl:       DefaultTTL,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(cache)
	}
	return cache
}

// Lookup answers whether the matricula is on the allow-list, refreshing the
// cache first when it is empty or older than the TTL. A failed refresh is
// tolerated as long as the cache has been populated at least once: stale data
// is preferred over surfacing an upstream outage. With nothing cached the
// failure propagates as UpstreamUnavailableErr, since no authorization can be
// granted without ever having fetched the list.
func (c *Cache) Lookup(ctx context.Context, matricula string) (AuthorizedUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowTime()
	if !c.populated || now.Sub(c.lastFetchedAt) > c.ttl {
		if err := c.refreshLocked(ctx, now); err != nil {
			if !c.populated {
				return AuthorizedUser{}, errors.Wrap(UpstreamUnavailableErr, err.Error())
			}
			log.Warn().Err(err).Msg("allow-list refresh failed, serving stale cache")
		}
	}

	for _, user := range c.entries {
		if user.Matricula == matricula {
			return user, nil
		}
	}
	return AuthorizedUser{}, NotAuthorizedErr
}

func (c *Cache) refreshLocked(ctx context.Context, now time.Time) error {
	log.Debug().Msg("fetching authorized users from the authority")
	users, err := c.authority.FetchAuthorizedUsers(ctx)
	if err != nil {
		obs.AuthorityRefresh("error")
		return errors.Wrap(err, "[refresh] authority fetch")
	}

	c.entries = users
	c.lastFetchedAt = now
	c.populated = true
	obs.AuthorityRefresh("ok")
	log.Info().Int("entries", len(users)).Msg("authorized user cache refreshed")
	return nil
}
