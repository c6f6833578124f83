package store

import "context"

// Store defines the persistence operations of the funnel engine
type Store interface {
	// Campaign operations
	CreateCampaign(ctx context.Context, c *Campaign) (*Campaign, error)
	GetCampaignBySlug(ctx context.Context, slug string) (*Campaign, error)
	ListCampaigns(ctx context.Context) ([]*Campaign, error)
	SetCampaignActive(ctx context.Context, slug string, active bool) error

	// Variation set operations
	AddVariationSet(ctx context.Context, vs *VariationSet) (*VariationSet, error)
	GetVariationSet(ctx context.Context, id int64) (*VariationSet, error)
	ListVariationSets(ctx context.Context, campaignID int64, activeOnly bool) ([]*VariationSet, error)
	UpdateVariationSet(ctx context.Context, id int64, weight *int, active *bool) error

	// Visitor operations
	GetVisitor(ctx context.Context, campaignID int64, token string) (*Visitor, error)
	InsertVisitorIfAbsent(ctx context.Context, v *Visitor) (*Visitor, error)
	AssignVisitor(ctx context.Context, v *Visitor, first *Event) (*Visitor, *Event, error)
	SetVisitorIdentity(ctx context.Context, visitorID int64, email, firstName string) error

	// Event operations
	AppendEvent(ctx context.Context, e *Event) (*Event, bool, error)
	ListEvents(ctx context.Context, campaignID int64, window Window) ([]*Event, error)

	// Ad spend operations
	AddAdSpend(ctx context.Context, entry *AdSpendEntry) (*AdSpendEntry, error)
	ListAdSpend(ctx context.Context, campaignID int64, window Window) ([]*AdSpendEntry, error)

	// Lifecycle
	Close() error
}
