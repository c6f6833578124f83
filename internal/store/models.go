package store

import "time"

type Campaign struct {
	ID               int64
	Slug             string
	Active           bool
	PresentationID   string
	CTAText          string
	CTAURL           string
	CTAAppearSeconds int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// VariationSet is one treatment arm of a campaign.
type VariationSet struct {
	ID            int64
	CampaignID    int64
	Name          string
	LandingPageID string
	Weight        int
	Active        bool
	Control       bool // explicit baseline for significance
	CreatedAt     time.Time
}

type Attribution struct {
	Source      string
	Medium      string
	CampaignTag string
	ContentTag  string
	Term        string
	Referrer    string
}

// Visitor is bound to exactly one VariationSet per campaign for its lifetime.
type Visitor struct {
	ID             int64
	CampaignID     int64
	Token          string
	VariationSetID int64
	Email          string
	FirstName      string
	Attribution    Attribution
	CreatedAt      time.Time
}

type Event struct {
	ID             int64
	CampaignID     int64
	VariationSetID int64
	VisitorID      int64
	VisitorToken   string
	Type           EventType
	Payload        Payload // nil for types without payload
	CreatedAt      time.Time
}

type AdSpendEntry struct {
	ID         int64
	CampaignID int64
	SpentOn    time.Time // date, UTC midnight
	Amount     int64     // minor currency units
	Currency   string
	Platform   string
	CreatedAt  time.Time
}

// Window bounds reads by creation time. Zero values are unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}
