package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gkobilansky/funnel-goat/internal/funnel"
	"github.com/gkobilansky/funnel-goat/internal/stats"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

// Service loads campaign data from the store and runs the pure aggregations
// over it. It holds no state between calls.
type Service struct {
	store       store.Store
	thresholds  stats.Thresholds
	defaultGoal store.EventType
	log         *zap.Logger
}

func NewService(s store.Store, thresholds stats.Thresholds, defaultGoal store.EventType, log *zap.Logger) *Service {
	if defaultGoal == "" {
		defaultGoal = DefaultGoal
	}
	return &Service{store: s, thresholds: thresholds, defaultGoal: defaultGoal, log: log}
}

// Campaign aggregates one campaign over window. An empty goal uses the
// service default.
func (s *Service) Campaign(ctx context.Context, slug string, window store.Window, goal store.EventType) (*CampaignAnalytics, error) {
	start := time.Now()
	defer func() {
		queryDuration.WithLabelValues("campaign").Observe(time.Since(start).Seconds())
	}()

	if goal == "" {
		goal = s.defaultGoal
	}
	if !ValidGoal(goal) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGoal, goal)
	}

	campaign, err := s.campaign(ctx, slug)
	if err != nil {
		return nil, err
	}

	sets, err := s.store.ListVariationSets(ctx, campaign.ID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list variation sets: %w", err)
	}
	events, err := s.store.ListEvents(ctx, campaign.ID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	spend, err := s.store.ListAdSpend(ctx, campaign.ID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list ad spend: %w", err)
	}

	result, err := Aggregate(Input{
		Campaign:   campaign,
		Sets:       sets,
		Events:     events,
		Spend:      spend,
		Window:     window,
		Goal:       goal,
		Thresholds: s.thresholds,
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("campaign aggregated",
		zap.String("campaign", slug),
		zap.Int("events", len(events)),
		zap.Int("variants", len(sets)),
		zap.Duration("took", time.Since(start)))

	return result, nil
}

// DropOff builds the campaign's drop-off curve over window.
func (s *Service) DropOff(ctx context.Context, slug string, window store.Window, bucketSeconds int) ([]Point, error) {
	start := time.Now()
	defer func() {
		queryDuration.WithLabelValues("dropoff").Observe(time.Since(start).Seconds())
	}()

	if bucketSeconds <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBucket, bucketSeconds)
	}

	campaign, err := s.campaign(ctx, slug)
	if err != nil {
		return nil, err
	}

	events, err := s.store.ListEvents(ctx, campaign.ID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return DropOffPoints(events, bucketSeconds)
}

// Overview aggregates every campaign with the default goal, newest first.
// Campaigns that fail to aggregate are logged and skipped.
func (s *Service) Overview(ctx context.Context, window store.Window) ([]*CampaignAnalytics, error) {
	campaigns, err := s.store.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	out := make([]*CampaignAnalytics, 0, len(campaigns))
	for _, c := range campaigns {
		a, err := s.Campaign(ctx, c.Slug, window, "")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("failed to aggregate campaign", zap.String("campaign", c.Slug), zap.Error(err))
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Service) campaign(ctx context.Context, slug string) (*store.Campaign, error) {
	campaign, err := s.store.GetCampaignBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", funnel.ErrCampaignNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}
