package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gkobilansky/funnel-goat/internal/funnel"
	"github.com/gkobilansky/funnel-goat/internal/stats"
	"github.com/gkobilansky/funnel-goat/internal/store"
	"github.com/gkobilansky/funnel-goat/internal/testutil"
)

func seedLaunch(t *testing.T) (*store.SQLiteStore, *store.Campaign) {
	t.Helper()

	s := testutil.SetupTestStore(t)
	c, _ := testutil.SeedCampaign(t, s, "launch", 1, 1)
	ctx := context.Background()

	resolver := funnel.NewResolver(s, funnel.NewCampaignCache(s, 0), zap.NewNop())
	recorder := funnel.NewRecorder(s, zap.NewNop())

	for i := 0; i < 40; i++ {
		token := fmt.Sprintf("tok-%02d", i)
		_, err := resolver.Resolve(ctx, funnel.ResolveRequest{Slug: "launch", Token: token})
		require.NoError(t, err)

		if i < 10 {
			_, err = recorder.Record(ctx, token, "launch", "registration", nil)
			require.NoError(t, err)
		}
		if i < 2 {
			amount := int64(9900)
			_, err = recorder.Record(ctx, token, "launch", "sale", &funnel.RawPayload{Amount: &amount})
			require.NoError(t, err)
		}
		if i < 4 {
			offset := float64(60 * (i + 1))
			_, err = recorder.RecordProgress(ctx, token, "launch", 30, &offset)
			require.NoError(t, err)
		}
	}

	_, err := s.AddAdSpend(ctx, &store.AdSpendEntry{CampaignID: c.ID, SpentOn: time.Now(), Amount: 5000, Platform: "facebook"})
	require.NoError(t, err)

	return s, c
}

func TestService_Campaign(t *testing.T) {
	s, _ := seedLaunch(t)
	svc := NewService(s, stats.DefaultThresholds(), "", zap.NewNop())

	got, err := svc.Campaign(context.Background(), "launch", store.Window{}, "")
	require.NoError(t, err)

	assert.Equal(t, store.EventRegistration, got.Goal)
	assert.Equal(t, 40, got.Totals.Visitors)
	assert.Equal(t, 10, got.Totals.Registrations)
	assert.Equal(t, 4, got.Totals.PlayStarts)
	assert.InDelta(t, 25.0, got.Totals.Rates.Registration, 1e-9)
	assert.Equal(t, int64(19800), got.Totals.Revenue)
	require.NotNil(t, got.Totals.CostPerRegistration)
	assert.InDelta(t, 500.0, *got.Totals.CostPerRegistration, 1e-9)
	require.NotNil(t, got.Totals.CostPerSale)
	assert.InDelta(t, 2500.0, *got.Totals.CostPerSale, 1e-9)
	require.NotNil(t, got.Totals.ROI)
	assert.Equal(t, int64(14800), *got.Totals.ROI)
	assert.Len(t, got.Variants, 2)
}

func TestService_CampaignErrors(t *testing.T) {
	s, _ := seedLaunch(t)
	svc := NewService(s, stats.DefaultThresholds(), "", zap.NewNop())
	ctx := context.Background()

	_, err := svc.Campaign(ctx, "missing", store.Window{}, "")
	assert.ErrorIs(t, err, funnel.ErrCampaignNotFound)

	_, err = svc.Campaign(ctx, "launch", store.Window{}, store.EventPageLeave)
	assert.ErrorIs(t, err, ErrInvalidGoal)

	_, err = svc.DropOff(ctx, "launch", store.Window{}, 0)
	assert.ErrorIs(t, err, ErrInvalidBucket)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.Campaign(cancelled, "launch", store.Window{}, "")
	assert.Error(t, err)
}

func TestService_DropOff(t *testing.T) {
	s, _ := seedLaunch(t)
	svc := NewService(s, stats.DefaultThresholds(), "", zap.NewNop())

	points, err := svc.DropOff(context.Background(), "launch", store.Window{}, 60)
	require.NoError(t, err)

	// Offsets 60, 120, 180, 240.
	require.Len(t, points, 5)
	want := []float64{100, 100, 75, 50, 25}
	for i, p := range points {
		assert.InDelta(t, want[i], p.StillWatchingPercent, 1e-9, "at %ds", p.TimeSeconds)
	}
}

func TestService_Overview(t *testing.T) {
	s, _ := seedLaunch(t)
	testutil.SeedCampaign(t, s, "webinar", 1)
	svc := NewService(s, stats.DefaultThresholds(), store.EventCTAClick, zap.NewNop())

	all, err := svc.Overview(context.Background(), store.Window{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, a := range all {
		assert.Equal(t, store.EventCTAClick, a.Goal)
	}
}

func TestWriteCSV(t *testing.T) {
	s, _ := seedLaunch(t)
	svc := NewService(s, stats.DefaultThresholds(), "", zap.NewNop())

	a, err := svc.Campaign(context.Background(), "launch", store.Window{}, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, a))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4) // header, two variants, totals

	header := records[0]
	totals := records[3]
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}

	assert.Equal(t, "total", totals[col("variant_id")])
	assert.Equal(t, "40", totals[col("visitors")])
	assert.Equal(t, "19800", totals[col("revenue")])
	assert.Equal(t, "25.00", totals[col("registration_rate")])
	assert.Equal(t, "500.00", totals[col("cost_per_registration")])
	assert.Equal(t, "2500.00", totals[col("cost_per_sale")])
	assert.Equal(t, "14800", totals[col("roi")])
	assert.Equal(t, "registration", records[1][col("goal")])
}
