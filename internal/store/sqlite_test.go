package store_test

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/gkobilansky/funnel-goat/internal/store"
)

func setupTestDB(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func createCampaign(t *testing.T, s *store.SQLiteStore, slug string) (*store.Campaign, *store.VariationSet) {
	t.Helper()
	ctx := context.Background()

	c, err := s.CreateCampaign(ctx, &store.Campaign{Slug: slug, CTAText: "Book a call", CTAAppearSeconds: 600})
	if err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}
	vs, err := s.AddVariationSet(ctx, &store.VariationSet{CampaignID: c.ID, Name: "A", LandingPageID: "lp-a", Weight: 1})
	if err != nil {
		t.Fatalf("failed to add variation set: %v", err)
	}
	return c, vs
}

func insertVisitor(t *testing.T, s *store.SQLiteStore, c *store.Campaign, vs *store.VariationSet, token string) *store.Visitor {
	t.Helper()

	v, err := s.InsertVisitorIfAbsent(context.Background(), &store.Visitor{
		CampaignID:     c.ID,
		Token:          token,
		VariationSetID: vs.ID,
	})
	if err != nil {
		t.Fatalf("failed to insert visitor: %v", err)
	}
	return v
}

func TestCreateCampaign(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	c, err := s.CreateCampaign(ctx, &store.Campaign{Slug: "launch", PresentationID: "p1"})
	if err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}

	if c.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if !c.Active {
		t.Error("expected new campaign to be active")
	}

	got, err := s.GetCampaignBySlug(ctx, "launch")
	if err != nil {
		t.Fatalf("failed to get campaign: %v", err)
	}
	if got.PresentationID != "p1" {
		t.Errorf("got PresentationID %s, want p1", got.PresentationID)
	}
}

func TestCreateCampaign_DuplicateSlug(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if _, err := s.CreateCampaign(ctx, &store.Campaign{Slug: "launch"}); err != nil {
		t.Fatalf("failed to create first campaign: %v", err)
	}

	_, err := s.CreateCampaign(ctx, &store.Campaign{Slug: "launch"})
	if !errors.Is(err, store.ErrDuplicateSlug) {
		t.Fatalf("expected ErrDuplicateSlug, got %v", err)
	}
}

func TestGetCampaignBySlug_NotFound(t *testing.T) {
	s := setupTestDB(t)

	_, err := s.GetCampaignBySlug(context.Background(), "nonexistent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetCampaignActive(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	createCampaign(t, s, "launch")

	if err := s.SetCampaignActive(ctx, "launch", false); err != nil {
		t.Fatalf("failed to deactivate: %v", err)
	}

	c, err := s.GetCampaignBySlug(ctx, "launch")
	if err != nil {
		t.Fatalf("failed to get campaign: %v", err)
	}
	if c.Active {
		t.Error("expected campaign to be inactive")
	}

	if err := s.SetCampaignActive(ctx, "missing", false); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing campaign, got %v", err)
	}
}

func TestVariationSets_ActiveFilterAndUpdate(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, a := createCampaign(t, s, "launch")

	b, err := s.AddVariationSet(ctx, &store.VariationSet{CampaignID: c.ID, Name: "B", LandingPageID: "lp-b", Weight: 3, Control: true})
	if err != nil {
		t.Fatalf("failed to add variation set: %v", err)
	}

	inactive := false
	if err := s.UpdateVariationSet(ctx, a.ID, nil, &inactive); err != nil {
		t.Fatalf("failed to update variation set: %v", err)
	}

	active, err := s.ListVariationSets(ctx, c.ID, true)
	if err != nil {
		t.Fatalf("failed to list variation sets: %v", err)
	}
	if len(active) != 1 || active[0].ID != b.ID {
		t.Fatalf("expected only B active, got %+v", active)
	}
	if !active[0].Control {
		t.Error("expected B to be flagged as control")
	}

	all, err := s.ListVariationSets(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("failed to list variation sets: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d variation sets, want 2", len(all))
	}
}

func TestVariationSets_RejectZeroWeight(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, a := createCampaign(t, s, "launch")

	if _, err := s.AddVariationSet(ctx, &store.VariationSet{CampaignID: c.ID, LandingPageID: "lp", Weight: 0}); err == nil {
		t.Error("expected error for zero weight")
	}

	zero := 0
	if err := s.UpdateVariationSet(ctx, a.ID, &zero, nil); err == nil {
		t.Error("expected error when updating weight to zero")
	}
}

func TestInsertVisitorIfAbsent_Conflict(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, vs := createCampaign(t, s, "launch")

	first := insertVisitor(t, s, c, vs, "tok-1")

	_, err := s.InsertVisitorIfAbsent(ctx, &store.Visitor{CampaignID: c.ID, Token: "tok-1", VariationSetID: vs.ID + 100})
	if !errors.Is(err, store.ErrAssignmentConflict) {
		t.Fatalf("expected ErrAssignmentConflict, got %v", err)
	}

	got, err := s.GetVisitor(ctx, c.ID, "tok-1")
	if err != nil {
		t.Fatalf("failed to get visitor: %v", err)
	}
	if got.ID != first.ID || got.VariationSetID != vs.ID {
		t.Errorf("conflicting insert changed the stored assignment: %+v", got)
	}
}

func TestInsertVisitorIfAbsent_SameTokenOtherCampaign(t *testing.T) {
	s := setupTestDB(t)
	c1, vs1 := createCampaign(t, s, "launch")
	c2, vs2 := createCampaign(t, s, "relaunch")

	insertVisitor(t, s, c1, vs1, "tok-1")
	insertVisitor(t, s, c2, vs2, "tok-1")
}

func TestSetVisitorIdentity_KeepsExistingValues(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, vs := createCampaign(t, s, "launch")
	v := insertVisitor(t, s, c, vs, "tok-1")

	if err := s.SetVisitorIdentity(ctx, v.ID, "ada@example.com", "Ada"); err != nil {
		t.Fatalf("failed to set identity: %v", err)
	}
	if err := s.SetVisitorIdentity(ctx, v.ID, "", "Augusta"); err != nil {
		t.Fatalf("failed to set identity: %v", err)
	}

	got, err := s.GetVisitor(ctx, c.ID, "tok-1")
	if err != nil {
		t.Fatalf("failed to get visitor: %v", err)
	}
	if got.Email != "ada@example.com" {
		t.Errorf("got Email %q, want ada@example.com", got.Email)
	}
	if got.FirstName != "Augusta" {
		t.Errorf("got FirstName %q, want Augusta", got.FirstName)
	}
	if got.VariationSetID != vs.ID {
		t.Error("identity update must not touch the assignment")
	}
}

func TestAppendEvent_MilestoneDeduplication(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, vs := createCampaign(t, s, "launch")
	v := insertVisitor(t, s, c, vs, "tok-1")

	offset := 120.0
	e := &store.Event{
		CampaignID:     c.ID,
		VariationSetID: vs.ID,
		VisitorID:      v.ID,
		VisitorToken:   v.Token,
		Type:           store.EventPlay50,
		Payload:        store.ProgressPayload{OffsetSeconds: &offset},
	}

	first, inserted, err := s.AppendEvent(ctx, e)
	if err != nil || !inserted {
		t.Fatalf("expected first milestone to insert, inserted=%v err=%v", inserted, err)
	}

	second, inserted, err := s.AppendEvent(ctx, e)
	if err != nil {
		t.Fatalf("failed to append duplicate: %v", err)
	}
	if inserted {
		t.Error("expected duplicate milestone to be ignored")
	}
	if second.ID != first.ID {
		t.Errorf("expected duplicate to return stored event %d, got %d", first.ID, second.ID)
	}

	events, err := s.ListEvents(ctx, c.ID, store.Window{})
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	p, ok := events[0].Payload.(store.ProgressPayload)
	if !ok || p.Offset() != 120 {
		t.Errorf("payload did not round-trip: %#v", events[0].Payload)
	}
}

func TestAppendEvent_RepeatableTypesAreKept(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, vs := createCampaign(t, s, "launch")
	v := insertVisitor(t, s, c, vs, "tok-1")

	for i := 0; i < 3; i++ {
		_, inserted, err := s.AppendEvent(ctx, &store.Event{
			CampaignID: c.ID, VariationSetID: vs.ID, VisitorID: v.ID, VisitorToken: v.Token,
			Type: store.EventPageView,
		})
		if err != nil || !inserted {
			t.Fatalf("page_view %d: inserted=%v err=%v", i, inserted, err)
		}
	}

	events, err := s.ListEvents(ctx, c.ID, store.Window{})
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want 3", len(events))
	}
}

func TestListEvents_Window(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, vs := createCampaign(t, s, "launch")
	v := insertVisitor(t, s, c, vs, "tok-1")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, _, err := s.AppendEvent(ctx, &store.Event{
			CampaignID: c.ID, VariationSetID: vs.ID, VisitorID: v.ID, VisitorToken: v.Token,
			Type:      store.EventPageView,
			CreatedAt: base.AddDate(0, 0, i),
		})
		if err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}

	events, err := s.ListEvents(ctx, c.ID, store.Window{From: base.AddDate(0, 0, 1), To: base.AddDate(0, 0, 3)})
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events in window, want 2", len(events))
	}
}

func TestSalePayloadRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, vs := createCampaign(t, s, "launch")
	v := insertVisitor(t, s, c, vs, "tok-1")

	_, _, err := s.AppendEvent(ctx, &store.Event{
		CampaignID: c.ID, VariationSetID: vs.ID, VisitorID: v.ID, VisitorToken: v.Token,
		Type:    store.EventSale,
		Payload: store.SalePayload{AmountCents: 9900, Currency: "usd", Email: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("failed to append sale: %v", err)
	}

	events, err := s.ListEvents(ctx, c.ID, store.Window{})
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	sale, ok := events[0].Payload.(store.SalePayload)
	if !ok {
		t.Fatalf("expected SalePayload, got %T", events[0].Payload)
	}
	if sale.AmountCents != 9900 || sale.Email != "ada@example.com" {
		t.Errorf("unexpected sale payload: %+v", sale)
	}
}

func TestAppendEvent_SaleOrderIDDeduplication(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, vs := createCampaign(t, s, "launch")
	v := insertVisitor(t, s, c, vs, "tok-1")

	sale := func(orderID string) (*store.Event, bool) {
		t.Helper()
		e, inserted, err := s.AppendEvent(ctx, &store.Event{
			CampaignID: c.ID, VariationSetID: vs.ID, VisitorID: v.ID, VisitorToken: v.Token,
			Type:    store.EventSale,
			Payload: store.SalePayload{AmountCents: 9900, Currency: "usd", OrderID: orderID},
		})
		if err != nil {
			t.Fatalf("failed to append sale %q: %v", orderID, err)
		}
		return e, inserted
	}

	first, inserted := sale("ord_1")
	if !inserted {
		t.Fatal("expected first sale to insert")
	}
	retry, inserted := sale("ord_1")
	if inserted || retry.ID != first.ID {
		t.Errorf("retried order stored again: inserted=%v id=%d want %d", inserted, retry.ID, first.ID)
	}
	if _, inserted := sale("ord_2"); !inserted {
		t.Error("expected a different order to insert")
	}
	// Sales without an order id are never merged.
	sale("")
	sale("")

	events, err := s.ListEvents(ctx, c.ID, store.Window{})
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 4 {
		t.Errorf("got %d sales, want 4", len(events))
	}

	// Order ids are scoped to the campaign.
	c2, vs2 := createCampaign(t, s, "relaunch")
	v2 := insertVisitor(t, s, c2, vs2, "tok-1")
	_, inserted, err = s.AppendEvent(ctx, &store.Event{
		CampaignID: c2.ID, VariationSetID: vs2.ID, VisitorID: v2.ID, VisitorToken: v2.Token,
		Type:    store.EventSale,
		Payload: store.SalePayload{AmountCents: 100, OrderID: "ord_1"},
	})
	if err != nil || !inserted {
		t.Errorf("same order in another campaign: inserted=%v err=%v", inserted, err)
	}
}

func TestOpen_AddsDedupColumnToExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id INTEGER NOT NULL,
		variation_set_id INTEGER NOT NULL,
		visitor_id INTEGER NOT NULL,
		visitor_token TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`)
	db.Close()
	if err != nil {
		t.Fatalf("failed to create old events table: %v", err)
	}

	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("failed to open old database: %v", err)
	}
	defer s.Close()

	c, vs := createCampaign(t, s, "launch")
	v := insertVisitor(t, s, c, vs, "tok-1")
	e := &store.Event{
		CampaignID: c.ID, VariationSetID: vs.ID, VisitorID: v.ID, VisitorToken: v.Token,
		Type:    store.EventSale,
		Payload: store.SalePayload{AmountCents: 100, OrderID: "ord_1"},
	}
	if _, _, err := s.AppendEvent(context.Background(), e); err != nil {
		t.Fatalf("failed to append sale: %v", err)
	}
	if _, inserted, err := s.AppendEvent(context.Background(), e); err != nil || inserted {
		t.Errorf("retried order after migration: inserted=%v err=%v", inserted, err)
	}
}

func TestAssignVisitor_WritesVisitorAndFirstEvent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, vs := createCampaign(t, s, "launch")

	v, e, err := s.AssignVisitor(ctx,
		&store.Visitor{CampaignID: c.ID, Token: "tok-1", VariationSetID: vs.ID},
		&store.Event{Type: store.EventPageView})
	if err != nil {
		t.Fatalf("failed to assign visitor: %v", err)
	}
	if e.VisitorID != v.ID || e.VariationSetID != vs.ID || e.VisitorToken != "tok-1" {
		t.Errorf("first event not tied to visitor: %+v", e)
	}

	events, err := s.ListEvents(ctx, c.ID, store.Window{})
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 1 || events[0].ID != e.ID {
		t.Fatalf("got %d events, want the page_view", len(events))
	}
}

func TestAssignVisitor_ConflictWritesNothing(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, vs := createCampaign(t, s, "launch")
	insertVisitor(t, s, c, vs, "tok-1")

	_, _, err := s.AssignVisitor(ctx,
		&store.Visitor{CampaignID: c.ID, Token: "tok-1", VariationSetID: vs.ID},
		&store.Event{Type: store.EventPageView})
	if !errors.Is(err, store.ErrAssignmentConflict) {
		t.Fatalf("expected ErrAssignmentConflict, got %v", err)
	}

	events, err := s.ListEvents(ctx, c.ID, store.Window{})
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("conflicting assignment wrote %d events", len(events))
	}
}

func TestAssignVisitor_FailedEventRollsBackVisitor(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, vs := createCampaign(t, s, "launch")

	nan := math.NaN()
	_, _, err := s.AssignVisitor(ctx,
		&store.Visitor{CampaignID: c.ID, Token: "tok-1", VariationSetID: vs.ID},
		&store.Event{Type: store.EventPlayStart, Payload: store.ProgressPayload{OffsetSeconds: &nan}})
	if err == nil {
		t.Fatal("expected unencodable payload to fail")
	}

	if _, err := s.GetVisitor(ctx, c.ID, "tok-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("visitor survived a failed assignment: %v", err)
	}

	// The token is still free.
	if _, _, err := s.AssignVisitor(ctx,
		&store.Visitor{CampaignID: c.ID, Token: "tok-1", VariationSetID: vs.ID},
		&store.Event{Type: store.EventPageView}); err != nil {
		t.Errorf("failed to assign after rollback: %v", err)
	}
}

func TestAdSpend(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c, _ := createCampaign(t, s, "launch")

	days := []time.Time{
		time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
	}
	for _, d := range days {
		if _, err := s.AddAdSpend(ctx, &store.AdSpendEntry{CampaignID: c.ID, SpentOn: d, Amount: 1000, Platform: "meta"}); err != nil {
			t.Fatalf("failed to add spend: %v", err)
		}
	}

	all, err := s.ListAdSpend(ctx, c.ID, store.Window{})
	if err != nil {
		t.Fatalf("failed to list spend: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	if all[0].SpentOn.Hour() != 0 || all[0].Currency != "usd" {
		t.Errorf("expected date-truncated usd entry, got %+v", all[0])
	}

	windowed, err := s.ListAdSpend(ctx, c.ID, store.Window{
		From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("failed to list spend: %v", err)
	}
	if len(windowed) != 2 {
		t.Errorf("got %d entries in window, want 2", len(windowed))
	}

	if _, err := s.AddAdSpend(ctx, &store.AdSpendEntry{CampaignID: c.ID, SpentOn: days[0], Amount: -1}); err == nil {
		t.Error("expected error for negative amount")
	}
}
