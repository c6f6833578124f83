package funnel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gkobilansky/funnel-goat/internal/store"
)

// DefaultCacheTTL bounds how long an operator change (weights, deactivation)
// can go unnoticed by new assignments when Invalidate is not called.
const DefaultCacheTTL = 5 * time.Second

// campaignEntry is what new assignments need: the campaign and its active arms.
type campaignEntry struct {
	campaign *store.Campaign
	active   []*store.VariationSet
	loadedAt time.Time
}

// CampaignCache is a short-lived, explicitly invalidated cache of campaign
// definitions keyed by slug. Concurrent misses for one slug share a load.
type CampaignCache struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]campaignEntry
	// gens counts invalidations per slug. A load only stores its result if
	// no Invalidate happened since it started.
	gens  map[string]uint64
	loads singleflight.Group
}

func NewCampaignCache(s store.Store, ttl time.Duration) *CampaignCache {
	return &CampaignCache{
		store:   s,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]campaignEntry),
		gens:    make(map[string]uint64),
	}
}

// Get returns the campaign for slug and its active variation sets.
// Unknown and inactive campaigns yield ErrCampaignNotFound.
func (c *CampaignCache) Get(ctx context.Context, slug string) (*store.Campaign, []*store.VariationSet, error) {
	if c.ttl > 0 {
		c.mu.RLock()
		e, ok := c.entries[slug]
		c.mu.RUnlock()
		if ok && c.now().Sub(e.loadedAt) < c.ttl {
			return e.campaign, e.active, nil
		}
	}

	v, err, _ := c.loads.Do(slug, func() (any, error) {
		return c.load(ctx, slug)
	})
	if err != nil {
		return nil, nil, err
	}

	e := v.(campaignEntry)
	return e.campaign, e.active, nil
}

func (c *CampaignCache) load(ctx context.Context, slug string) (campaignEntry, error) {
	c.mu.RLock()
	gen := c.gens[slug]
	c.mu.RUnlock()

	campaign, err := c.store.GetCampaignBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return campaignEntry{}, fmt.Errorf("%w: %s", ErrCampaignNotFound, slug)
	}
	if err != nil {
		return campaignEntry{}, err
	}
	if !campaign.Active {
		return campaignEntry{}, fmt.Errorf("%w: %s is inactive", ErrCampaignNotFound, slug)
	}

	active, err := c.store.ListVariationSets(ctx, campaign.ID, true)
	if err != nil {
		return campaignEntry{}, err
	}

	e := campaignEntry{campaign: campaign, active: active, loadedAt: c.now()}
	if c.ttl > 0 {
		c.mu.Lock()
		if c.gens[slug] == gen {
			c.entries[slug] = e
		}
		c.mu.Unlock()
	}
	return e, nil
}

// Invalidate drops the cached entry for slug so the next Get reloads it.
// A load already in flight still answers its callers but is not cached.
func (c *CampaignCache) Invalidate(slug string) {
	c.mu.Lock()
	delete(c.entries, slug)
	c.gens[slug]++
	c.mu.Unlock()
	c.loads.Forget(slug)
}
