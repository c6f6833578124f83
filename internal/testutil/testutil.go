package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gkobilansky/funnel-goat/internal/store"
)

// SetupTestStore creates a test database and returns the store.
// Uses t.TempDir() for automatic cleanup on test completion.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// SeedCampaign creates an active campaign with one variation set per weight.
// Variation sets are named A, B, C... in weight order.
func SeedCampaign(t *testing.T, s *store.SQLiteStore, slug string, weights ...int) (*store.Campaign, []*store.VariationSet) {
	t.Helper()
	ctx := context.Background()

	c, err := s.CreateCampaign(ctx, &store.Campaign{Slug: slug, PresentationID: "pres-" + slug})
	if err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}

	sets := make([]*store.VariationSet, len(weights))
	for i, w := range weights {
		name := string(rune('A' + i))
		vs, err := s.AddVariationSet(ctx, &store.VariationSet{
			CampaignID:    c.ID,
			Name:          name,
			LandingPageID: "lp-" + name,
			Weight:        w,
		})
		if err != nil {
			t.Fatalf("failed to add variation set: %v", err)
		}
		sets[i] = vs
	}

	return c, sets
}
