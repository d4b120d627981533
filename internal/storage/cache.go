package storage

import (
	"context"
	"sync"
	"time"

	"surfscale-engine/internal/campaign"
)

// DefaultCacheTTL is how long polled campaigns stay fresh.
const DefaultCacheTTL = 5 * time.Minute

// CampaignCache holds the last reconciled campaign list per (account, period).
type CampaignCache interface {
	Get(ctx context.Context, accountID string, period campaign.Period) ([]campaign.Campaign, bool)
	Put(ctx context.Context, accountID string, period campaign.Period, cs []campaign.Campaign) error
	Invalidate(ctx context.Context, accountID string) error
}

type cacheKey struct {
	account string
	period  campaign.Period
}

type cacheEntry struct {
	campaigns []campaign.Campaign
	at        time.Time
}

// MemoryCache is a process-local CampaignCache.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[cacheKey]cacheEntry
}

var _ CampaignCache = (*MemoryCache)(nil)

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{ttl: ttl, now: time.Now, entries: map[cacheKey]cacheEntry{}}
}

func (c *MemoryCache) Get(_ context.Context, accountID string, period campaign.Period) ([]campaign.Campaign, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey{accountID, period}]
	if !ok || c.now().Sub(e.at) >= c.ttl {
		return nil, false
	}
	return append([]campaign.Campaign(nil), e.campaigns...), true
}

func (c *MemoryCache) Put(_ context.Context, accountID string, period campaign.Period, cs []campaign.Campaign) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{accountID, period}] = cacheEntry{
		campaigns: append([]campaign.Campaign(nil), cs...),
		at:        c.now(),
	}
	return nil
}

// Invalidate drops every period cached for the account.
func (c *MemoryCache) Invalidate(_ context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.account == accountID {
			delete(c.entries, k)
		}
	}
	return nil
}
