package analytics

import (
	"fmt"

	"github.com/gkobilansky/funnel-goat/internal/stats"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

// DefaultGoal is the event significance is computed on when none is given.
const DefaultGoal = store.EventRegistration

// Input is everything Aggregate needs. Events and Spend may span more than
// Window; entries outside it are ignored.
type Input struct {
	Campaign   *store.Campaign
	Sets       []*store.VariationSet
	Events     []*store.Event
	Spend      []*store.AdSpendEntry
	Window     store.Window
	Goal       store.EventType
	Thresholds stats.Thresholds
}

// Counts are distinct visitors per funnel stage, except Sales which counts
// sale events. Revenue is in minor units.
type Counts struct {
	Visitors      int   `json:"visitors"`
	Registrations int   `json:"registrations"`
	PlayStarts    int   `json:"play_starts"`
	Completions   int   `json:"completions"`
	CTAClicks     int   `json:"cta_clicks"`
	CallsBooked   int   `json:"calls_booked"`
	Sales         int   `json:"sales"`
	Revenue       int64 `json:"revenue"`
}

// Rates are percentages of Visitors, 0 when there are no visitors.
type Rates struct {
	Registration float64 `json:"registration"`
	PlayStart    float64 `json:"play_start"`
	Completion   float64 `json:"completion"`
	CTAClick     float64 `json:"cta_click"`
	CallBooked   float64 `json:"call_booked"`
	Sale         float64 `json:"sale"`
}

type VariantMetrics struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	LandingPageID string `json:"landing_page_id"`
	Active        bool   `json:"active"`
	Control       bool   `json:"control"`

	Counts
	Rates Rates `json:"rates"`

	GoalConversions int     `json:"goal_conversions"`
	GoalRate        float64 `json:"goal_rate"`
	GoalCILower     float64 `json:"goal_ci_lower"`
	GoalCIUpper     float64 `json:"goal_ci_upper"`

	Baseline   bool             `json:"baseline"`
	Confidence stats.Confidence `json:"confidence,omitempty"`
	Z          float64          `json:"z"`
	Level      float64          `json:"level"`
}

type Totals struct {
	Counts
	Rates Rates `json:"rates"`

	AdSpend             int64    `json:"ad_spend"`
	CostPerRegistration *float64 `json:"cost_per_registration"`
	CostPerSale         *float64 `json:"cost_per_sale"`
	ROI                 *int64   `json:"roi"`
}

type CampaignAnalytics struct {
	Campaign *store.Campaign  `json:"-"`
	Slug     string           `json:"slug"`
	Window   store.Window     `json:"-"`
	Goal     store.EventType  `json:"goal"`
	Variants []VariantMetrics `json:"variants"`
	Totals   Totals           `json:"totals"`
}

// ValidGoal reports whether t can serve as a conversion goal.
func ValidGoal(t store.EventType) bool {
	return t.Valid() && t != store.EventPageView && t != store.EventPageLeave
}

type tally struct {
	stages  map[store.EventType]map[int64]struct{}
	sales   int
	revenue int64
}

func newTally() *tally {
	return &tally{stages: make(map[store.EventType]map[int64]struct{})}
}

func (t *tally) mark(et store.EventType, visitorID int64) {
	seen, ok := t.stages[et]
	if !ok {
		seen = make(map[int64]struct{})
		t.stages[et] = seen
	}
	seen[visitorID] = struct{}{}
}

func (t *tally) distinct(et store.EventType) int {
	return len(t.stages[et])
}

// converted counts goal visitors who were also seen on the page in the
// window, so the proportion never exceeds 1.
func (t *tally) converted(goal store.EventType) int {
	n := 0
	views := t.stages[store.EventPageView]
	for id := range t.stages[goal] {
		if _, ok := views[id]; ok {
			n++
		}
	}
	return n
}

func (t *tally) counts() Counts {
	return Counts{
		Visitors:      t.distinct(store.EventPageView),
		Registrations: t.distinct(store.EventRegistration),
		PlayStarts:    t.distinct(store.EventPlayStart),
		Completions:   t.distinct(store.EventPlay100),
		CTAClicks:     t.distinct(store.EventCTAClick),
		CallsBooked:   t.distinct(store.EventCallBooked),
		Sales:         t.sales,
		Revenue:       t.revenue,
	}
}

// Aggregate builds the funnel, revenue and cost metrics for one campaign and
// attaches significance verdicts on the goal event.
func Aggregate(in Input) (*CampaignAnalytics, error) {
	goal := in.Goal
	if goal == "" {
		goal = DefaultGoal
	}
	if !ValidGoal(goal) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGoal, goal)
	}

	tallies := make(map[int64]*tally, len(in.Sets))
	for _, vs := range in.Sets {
		tallies[vs.ID] = newTally()
	}

	for _, e := range in.Events {
		if !in.Window.Contains(e.CreatedAt) {
			continue
		}
		t, ok := tallies[e.VariationSetID]
		if !ok {
			continue
		}
		t.mark(e.Type, e.VisitorID)
		if sale, ok := e.Payload.(store.SalePayload); ok && e.Type == store.EventSale {
			t.sales++
			t.revenue += sale.AmountCents
		}
	}

	out := &CampaignAnalytics{
		Campaign: in.Campaign,
		Window:   in.Window,
		Goal:     goal,
		Variants: make([]VariantMetrics, 0, len(in.Sets)),
	}
	if in.Campaign != nil {
		out.Slug = in.Campaign.Slug
	}

	arms := make([]stats.Arm, 0, len(in.Sets))
	for _, vs := range in.Sets {
		t := tallies[vs.ID]
		c := t.counts()
		conv := t.converted(goal)
		lower, upper := stats.WilsonInterval(conv, c.Visitors, 0.95)

		out.Variants = append(out.Variants, VariantMetrics{
			ID:              vs.ID,
			Name:            vs.Name,
			LandingPageID:   vs.LandingPageID,
			Active:          vs.Active,
			Control:         vs.Control,
			Counts:          c,
			Rates:           rates(c),
			GoalConversions: conv,
			GoalRate:        percent(conv, c.Visitors),
			GoalCILower:     lower * 100,
			GoalCIUpper:     upper * 100,
		})
		arms = append(arms, stats.Arm{ID: vs.ID, Visitors: c.Visitors, Conversions: conv, Control: vs.Control})

		out.Totals.Visitors += c.Visitors
		out.Totals.Registrations += c.Registrations
		out.Totals.PlayStarts += c.PlayStarts
		out.Totals.Completions += c.Completions
		out.Totals.CTAClicks += c.CTAClicks
		out.Totals.CallsBooked += c.CallsBooked
		out.Totals.Sales += c.Sales
		out.Totals.Revenue += c.Revenue
	}
	out.Totals.Rates = rates(out.Totals.Counts)

	classification := stats.Classify(arms, in.Thresholds)
	for i := range out.Variants {
		v := &out.Variants[i]
		if v.ID == classification.BaselineID {
			v.Baseline = true
			continue
		}
		if verdict, ok := classification.Verdict(v.ID); ok {
			v.Confidence = verdict.Confidence
			v.Z = verdict.Z
			v.Level = verdict.Level
		}
	}

	applySpend(&out.Totals, in.Spend, in.Window)
	return out, nil
}

func applySpend(t *Totals, spend []*store.AdSpendEntry, w store.Window) {
	recorded := false
	for _, entry := range spend {
		if !w.Contains(entry.SpentOn) {
			continue
		}
		recorded = true
		t.AdSpend += entry.Amount
	}
	if !recorded {
		return
	}

	t.CostPerRegistration = costPer(t.AdSpend, t.Registrations)
	t.CostPerSale = costPer(t.AdSpend, t.Sales)
	roi := t.Revenue - t.AdSpend
	t.ROI = &roi
}

func costPer(spend int64, n int) *float64 {
	if n == 0 {
		return nil
	}
	c := float64(spend) / float64(n)
	return &c
}

func rates(c Counts) Rates {
	return Rates{
		Registration: percent(c.Registrations, c.Visitors),
		PlayStart:    percent(c.PlayStarts, c.Visitors),
		Completion:   percent(c.Completions, c.Visitors),
		CTAClick:     percent(c.CTAClicks, c.Visitors),
		CallBooked:   percent(c.CallsBooked, c.Visitors),
		Sale:         percent(c.Sales, c.Visitors),
	}
}

func percent(n, visitors int) float64 {
	if visitors == 0 {
		return 0
	}
	return float64(n) / float64(visitors) * 100
}
