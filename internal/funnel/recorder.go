package funnel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/gkobilansky/funnel-goat/internal/store"
)

// Recorder validates and appends funnel events for assigned visitors.
type Recorder struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewRecorder(s store.Store, log *zap.Logger) *Recorder {
	return &Recorder{store: s, log: log, now: time.Now}
}

// Record appends one event for the visitor identified by token in the
// campaign. Duplicate once-per-visitor events (play_start, milestones) return
// the stored event without writing.
func (r *Recorder) Record(ctx context.Context, token, slug, eventType string, raw *RawPayload) (*store.Event, error) {
	e, _, err := r.record(ctx, token, slug, eventType, raw)
	return e, err
}

// RecordSale records a sale and reports whether it was new. A sale whose
// order id is already stored for the campaign returns the stored event and
// false.
func (r *Recorder) RecordSale(ctx context.Context, token, slug string, raw *RawPayload) (*store.Event, bool, error) {
	return r.record(ctx, token, slug, string(store.EventSale), raw)
}

func (r *Recorder) record(ctx context.Context, token, slug, eventType string, raw *RawPayload) (*store.Event, bool, error) {
	t, err := ParseEventType(eventType)
	if err != nil {
		eventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return nil, false, err
	}

	payload, err := ParsePayload(t, raw)
	if err != nil {
		eventsTotal.WithLabelValues(string(t), "rejected").Inc()
		return nil, false, err
	}

	v, err := r.visitor(ctx, token, slug)
	if err != nil {
		eventsTotal.WithLabelValues(string(t), "rejected").Inc()
		return nil, false, err
	}

	e, inserted, err := r.appendEvent(ctx, v, t, payload)
	if err != nil {
		return nil, false, err
	}

	if reg, ok := payload.(store.RegistrationPayload); ok {
		if err := r.store.SetVisitorIdentity(ctx, v.ID, reg.Email, reg.FirstName); err != nil {
			r.log.Warn("failed to capture visitor identity",
				zap.String("campaign", slug),
				zap.Int64("visitor", v.ID),
				zap.Error(err))
		}
	}

	return e, inserted, nil
}

// RecordProgress turns a raw watch-progress report into milestone events.
// Only crossings not yet stored for the visitor are written; the returned
// slice holds the newly stored events and is empty for repeated polling.
func (r *Recorder) RecordProgress(ctx context.Context, token, slug string, percent float64, offset *float64) ([]*store.Event, error) {
	if percent < 0 || percent > 100 || math.IsNaN(percent) {
		return nil, fmt.Errorf("%w: percent must be within [0,100]", ErrInvalidPayload)
	}
	if offset != nil && !validOffset(*offset) {
		return nil, fmt.Errorf("%w: offset must be within [0,%d] seconds", ErrInvalidPayload, store.MaxOffsetSeconds)
	}

	v, err := r.visitor(ctx, token, slug)
	if err != nil {
		return nil, err
	}

	crossings := []store.EventType{store.EventPlayStart}
	for _, m := range store.Milestones {
		if percent >= m.Percent {
			crossings = append(crossings, m.Type)
		}
	}

	var stored []*store.Event
	for _, t := range crossings {
		p := store.ProgressPayload{OffsetSeconds: offset}
		if _, ok := t.MilestonePercent(); ok {
			pct := percent
			p.Percent = &pct
		}

		e, inserted, err := r.appendEvent(ctx, v, t, p)
		if err != nil {
			return stored, err
		}
		if inserted {
			stored = append(stored, e)
		}
	}

	return stored, nil
}

func (r *Recorder) visitor(ctx context.Context, token, slug string) (*store.Visitor, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnknownVisitor)
	}

	campaign, err := r.store.GetCampaignBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, slug)
	}
	if err != nil {
		return nil, err
	}

	v, err := r.store.GetVisitor(ctx, campaign.ID, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w in campaign %s", ErrUnknownVisitor, slug)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Recorder) appendEvent(ctx context.Context, v *store.Visitor, t store.EventType, p store.Payload) (*store.Event, bool, error) {
	e, inserted, err := r.store.AppendEvent(ctx, &store.Event{
		CampaignID:     v.CampaignID,
		VariationSetID: v.VariationSetID,
		VisitorID:      v.ID,
		VisitorToken:   v.Token,
		Type:           t,
		Payload:        p,
		CreatedAt:      r.now(),
	})
	if err != nil {
		eventsTotal.WithLabelValues(string(t), "error").Inc()
		return nil, false, err
	}

	if inserted {
		eventsTotal.WithLabelValues(string(t), "stored").Inc()
	} else {
		eventsTotal.WithLabelValues(string(t), "duplicate").Inc()
	}
	return e, inserted, nil
}
