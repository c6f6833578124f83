package funnel

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gkobilansky/funnel-goat/internal/store"
)

const maxTokenLength = 128

// ResolveRequest is an inbound page visit.
type ResolveRequest struct {
	Slug        string
	Token       string // empty on a first visit without a cookie
	Attribution store.Attribution
}

// Assignment is the sticky result of a resolve.
type Assignment struct {
	Campaign     *store.Campaign
	VariationSet *store.VariationSet
	Visitor      *store.Visitor
	Token        string
	New          bool // true when this call created the visitor
}

// Resolver assigns visitors to variation sets. The assignment is made once per
// (campaign, token) and never re-randomized.
type Resolver struct {
	store     store.Store
	campaigns *CampaignCache
	log       *zap.Logger

	intN     func(n int) int
	newToken func() string
	now      func() time.Time
}

func NewResolver(s store.Store, campaigns *CampaignCache, log *zap.Logger) *Resolver {
	return &Resolver{
		store:     s,
		campaigns: campaigns,
		log:       log,
		intN:      rand.IntN,
		newToken:  func() string { return uuid.NewString() },
		now:       time.Now,
	}
}

// Resolve returns the visitor's variation set, assigning one on first visit,
// and appends a page_view event for it.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*Assignment, error) {
	if len(req.Token) > maxTokenLength {
		req.Token = ""
	}

	campaign, active, err := r.campaigns.Get(ctx, req.Slug)
	if err != nil {
		return nil, err
	}

	var a *Assignment
	if req.Token != "" {
		a, err = r.existing(ctx, campaign, req.Token)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if a == nil {
		a, err = r.assign(ctx, campaign, active, req)
		if err != nil {
			return nil, err
		}
	}

	// New visitors got their page_view in the assignment transaction.
	if !a.New {
		_, _, err = r.store.AppendEvent(ctx, &store.Event{
			CampaignID:     campaign.ID,
			VariationSetID: a.VariationSet.ID,
			VisitorID:      a.Visitor.ID,
			VisitorToken:   a.Token,
			Type:           store.EventPageView,
			CreatedAt:      r.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record page view: %w", err)
		}
	}
	eventsTotal.WithLabelValues(string(store.EventPageView), "stored").Inc()

	return a, nil
}

func (r *Resolver) existing(ctx context.Context, campaign *store.Campaign, token string) (*Assignment, error) {
	v, err := r.store.GetVisitor(ctx, campaign.ID, token)
	if err != nil {
		return nil, err
	}

	vs, err := r.store.GetVariationSet(ctx, v.VariationSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assigned variation set %d: %w", v.VariationSetID, err)
	}

	assignmentsTotal.WithLabelValues("existing").Inc()
	return &Assignment{Campaign: campaign, VariationSet: vs, Visitor: v, Token: token}, nil
}

func (r *Resolver) assign(ctx context.Context, campaign *store.Campaign, active []*store.VariationSet, req ResolveRequest) (*Assignment, error) {
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoActiveVariants, campaign.Slug)
	}

	vs := PickWeighted(active, r.intN)
	token := req.Token
	if token == "" {
		token = r.newToken()
	}

	now := r.now()
	v, _, err := r.store.AssignVisitor(ctx, &store.Visitor{
		CampaignID:     campaign.ID,
		Token:          token,
		VariationSetID: vs.ID,
		Attribution:    req.Attribution,
		CreatedAt:      now,
	}, &store.Event{Type: store.EventPageView, CreatedAt: now})
	if errors.Is(err, store.ErrAssignmentConflict) {
		// A concurrent request with the same token inserted first: its
		// assignment wins. One re-read, no retry loop.
		assignmentsTotal.WithLabelValues("conflict").Inc()
		r.log.Debug("assignment conflict, using stored visitor",
			zap.String("campaign", campaign.Slug),
			zap.Int64("discarded_variation_set", vs.ID))

		a, err := r.existing(ctx, campaign, token)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read visitor after conflict: %w", err)
		}
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to assign visitor: %w", err)
	}

	assignmentsTotal.WithLabelValues("new").Inc()
	r.log.Debug("visitor assigned",
		zap.String("campaign", campaign.Slug),
		zap.Int64("variation_set", vs.ID),
		zap.String("source", req.Attribution.Source))

	return &Assignment{Campaign: campaign, VariationSet: vs, Visitor: v, Token: token, New: true}, nil
}

// PickWeighted selects a variation set with probability weight/sum(weights).
// intN must return a uniform integer in [0, n).
func PickWeighted(sets []*store.VariationSet, intN func(n int) int) *store.VariationSet {
	total := 0
	for _, vs := range sets {
		total += max(vs.Weight, 1)
	}

	r := intN(total)
	for _, vs := range sets {
		r -= max(vs.Weight, 1)
		if r < 0 {
			return vs
		}
	}
	return sets[len(sets)-1]
}
