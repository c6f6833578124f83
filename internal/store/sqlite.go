package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrAssignmentConflict is returned by InsertVisitorIfAbsent and
	// AssignVisitor when another request already persisted a visitor for the
	// same (campaign, token).
	ErrAssignmentConflict = errors.New("visitor already assigned")

	ErrDuplicateSlug = errors.New("slug already exists")
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT UNIQUE NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    presentation_id TEXT NOT NULL DEFAULT '',
    cta_text TEXT NOT NULL DEFAULT '',
    cta_url TEXT NOT NULL DEFAULT '',
    cta_appear_seconds INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS variation_sets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    campaign_id INTEGER NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    landing_page_id TEXT NOT NULL,
    weight INTEGER NOT NULL CHECK (weight >= 1),
    active INTEGER NOT NULL DEFAULT 1,
    control INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (campaign_id) REFERENCES campaigns(id)
);

CREATE INDEX IF NOT EXISTS idx_variation_sets_campaign ON variation_sets(campaign_id, active);

CREATE TABLE IF NOT EXISTS visitors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    campaign_id INTEGER NOT NULL,
    token TEXT NOT NULL,
    variation_set_id INTEGER NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    first_name TEXT NOT NULL DEFAULT '',
    utm_source TEXT NOT NULL DEFAULT '',
    utm_medium TEXT NOT NULL DEFAULT '',
    utm_campaign TEXT NOT NULL DEFAULT '',
    utm_content TEXT NOT NULL DEFAULT '',
    utm_term TEXT NOT NULL DEFAULT '',
    referrer TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (campaign_id) REFERENCES campaigns(id),
    FOREIGN KEY (variation_set_id) REFERENCES variation_sets(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_visitors_campaign_token ON visitors(campaign_id, token);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    campaign_id INTEGER NOT NULL,
    variation_set_id INTEGER NOT NULL,
    visitor_id INTEGER NOT NULL,
    visitor_token TEXT NOT NULL,
    event_type TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '',
    dedup_key TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (visitor_id) REFERENCES visitors(id)
);

CREATE INDEX IF NOT EXISTS idx_events_campaign ON events(campaign_id, created_at);
CREATE INDEX IF NOT EXISTS idx_events_campaign_type ON events(campaign_id, event_type);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_once ON events(visitor_id, event_type)
    WHERE event_type IN ('play_start', 'play_25', 'play_50', 'play_75', 'play_100');

CREATE TABLE IF NOT EXISTS ad_spend (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    campaign_id INTEGER NOT NULL,
    spent_on INTEGER NOT NULL,
    amount INTEGER NOT NULL CHECK (amount >= 0),
    currency TEXT NOT NULL DEFAULT 'usd',
    platform TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (campaign_id) REFERENCES campaigns(id)
);

CREATE INDEX IF NOT EXISTS idx_ad_spend_campaign ON ad_spend(campaign_id, spent_on);
`

// eventsDedupIndex runs after the dedup_key column migration so databases
// created before the column existed get it too.
const eventsDedupIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_dedup ON events(campaign_id, dedup_key)
    WHERE dedup_key IS NOT NULL;
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: writers queue in the pool instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := addColumn(db, "events", "dedup_key", `ALTER TABLE events ADD COLUMN dedup_key TEXT`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate events: %w", err)
	}
	if _, err := db.Exec(eventsDedupIndex); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// addColumn runs ddl unless table already has column.
func addColumn(db *sql.DB, table, column, ddl string) error {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err = db.Exec(ddl)
	return err
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Campaigns

const campaignColumns = `id, slug, active, presentation_id, cta_text, cta_url, cta_appear_seconds, created_at, updated_at`

func (s *SQLiteStore) CreateCampaign(ctx context.Context, c *Campaign) (*Campaign, error) {
	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (slug, active, presentation_id, cta_text, cta_url, cta_appear_seconds, created_at, updated_at)
		 VALUES (?, 1, ?, ?, ?, ?, ?, ?)`,
		c.Slug, c.PresentationID, c.CTAText, c.CTAURL, c.CTAAppearSeconds, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("failed to insert campaign: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	created := *c
	created.ID = id
	created.Active = true
	created.CreatedAt = time.Unix(now, 0)
	created.UpdatedAt = time.Unix(now, 0)
	return &created, nil
}

func (s *SQLiteStore) GetCampaignBySlug(ctx context.Context, slug string) (*Campaign, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE slug = ?`, slug)

	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context) ([]*Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, rows.Err()
}

func (s *SQLiteStore) SetCampaignActive(ctx context.Context, slug string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET active = ?, updated_at = ? WHERE slug = ?`,
		boolToInt(active), time.Now().Unix(), slug,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	return expectAffected(result)
}

// Variation sets

const variationSetColumns = `id, campaign_id, name, landing_page_id, weight, active, control, created_at`

func (s *SQLiteStore) AddVariationSet(ctx context.Context, vs *VariationSet) (*VariationSet, error) {
	if vs.Weight < 1 {
		return nil, fmt.Errorf("weight must be >= 1, got %d", vs.Weight)
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO variation_sets (campaign_id, name, landing_page_id, weight, active, control, created_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		vs.CampaignID, vs.Name, vs.LandingPageID, vs.Weight, boolToInt(vs.Control), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert variation set: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	created := *vs
	created.ID = id
	created.Active = true
	created.CreatedAt = time.Unix(now, 0)
	return &created, nil
}

func (s *SQLiteStore) GetVariationSet(ctx context.Context, id int64) (*VariationSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+variationSetColumns+` FROM variation_sets WHERE id = ?`, id)

	vs, err := scanVariationSet(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get variation set: %w", err)
	}
	return vs, nil
}

func (s *SQLiteStore) ListVariationSets(ctx context.Context, campaignID int64, activeOnly bool) ([]*VariationSet, error) {
	query := `SELECT ` + variationSetColumns + ` FROM variation_sets WHERE campaign_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variation sets: %w", err)
	}
	defer rows.Close()

	var sets []*VariationSet
	for rows.Next() {
		vs, err := scanVariationSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variation set: %w", err)
		}
		sets = append(sets, vs)
	}

	return sets, rows.Err()
}

func (s *SQLiteStore) UpdateVariationSet(ctx context.Context, id int64, weight *int, active *bool) error {
	var sets []string
	var args []any

	if weight != nil {
		if *weight < 1 {
			return fmt.Errorf("weight must be >= 1, got %d", *weight)
		}
		sets = append(sets, "weight = ?")
		args = append(args, *weight)
	}
	if active != nil {
		sets = append(sets, "active = ?")
		args = append(args, boolToInt(*active))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	result, err := s.db.ExecContext(ctx,
		`UPDATE variation_sets SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update variation set: %w", err)
	}
	return expectAffected(result)
}

// Visitors

const visitorColumns = `id, campaign_id, token, variation_set_id, email, first_name,
	utm_source, utm_medium, utm_campaign, utm_content, utm_term, referrer, created_at`

func (s *SQLiteStore) GetVisitor(ctx context.Context, campaignID int64, token string) (*Visitor, error) {
	var v Visitor
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT `+visitorColumns+` FROM visitors WHERE campaign_id = ? AND token = ?`,
		campaignID, token,
	).Scan(&v.ID, &v.CampaignID, &v.Token, &v.VariationSetID, &v.Email, &v.FirstName,
		&v.Attribution.Source, &v.Attribution.Medium, &v.Attribution.CampaignTag,
		&v.Attribution.ContentTag, &v.Attribution.Term, &v.Attribution.Referrer, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visitor: %w", err)
	}

	v.CreatedAt = time.Unix(createdAt, 0)
	return &v, nil
}

// InsertVisitorIfAbsent atomically inserts v unless a visitor with the same
// (campaign, token) exists. On conflict nothing is written and
// ErrAssignmentConflict is returned; the caller re-reads the existing row.
func (s *SQLiteStore) InsertVisitorIfAbsent(ctx context.Context, v *Visitor) (*Visitor, error) {
	return insertVisitor(ctx, s.db, v)
}

// AssignVisitor inserts v and its first event in one transaction, so a
// visitor never exists without the event. first's visitor fields are filled
// from the inserted row. On (campaign, token) conflict nothing is written and
// ErrAssignmentConflict is returned.
func (s *SQLiteStore) AssignVisitor(ctx context.Context, v *Visitor, first *Event) (*Visitor, *Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := insertVisitor(ctx, tx, v)
	if err != nil {
		return nil, nil, err
	}

	e := *first
	e.CampaignID = inserted.CampaignID
	e.VariationSetID = inserted.VariationSetID
	e.VisitorID = inserted.ID
	e.VisitorToken = inserted.Token
	stored, _, err := insertEvent(ctx, tx, &e)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit assignment: %w", err)
	}
	return inserted, stored, nil
}

func insertVisitor(ctx context.Context, q queryer, v *Visitor) (*Visitor, error) {
	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	a := v.Attribution
	result, err := q.ExecContext(ctx,
		`INSERT INTO visitors (campaign_id, token, variation_set_id, email, first_name,
			utm_source, utm_medium, utm_campaign, utm_content, utm_term, referrer, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (campaign_id, token) DO NOTHING`,
		v.CampaignID, v.Token, v.VariationSetID, v.Email, v.FirstName,
		a.Source, a.Medium, a.CampaignTag, a.ContentTag, a.Term, a.Referrer, createdAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert visitor: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrAssignmentConflict
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	inserted := *v
	inserted.ID = id
	inserted.CreatedAt = time.Unix(createdAt.Unix(), 0)
	return &inserted, nil
}

// SetVisitorIdentity fills identity fields captured after assignment. Empty
// values never overwrite stored ones.
func (s *SQLiteStore) SetVisitorIdentity(ctx context.Context, visitorID int64, email, firstName string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE visitors SET
			email = CASE WHEN ? <> '' THEN ? ELSE email END,
			first_name = CASE WHEN ? <> '' THEN ? ELSE first_name END
		 WHERE id = ?`,
		email, email, firstName, firstName, visitorID,
	)
	if err != nil {
		return fmt.Errorf("failed to update visitor identity: %w", err)
	}
	return expectAffected(result)
}

// Events

// AppendEvent appends e. For once-per-visitor types and for sales carrying an
// order id an existing row wins: it is returned with inserted=false and
// nothing is written.
func (s *SQLiteStore) AppendEvent(ctx context.Context, e *Event) (*Event, bool, error) {
	return insertEvent(ctx, s.db, e)
}

// dedupKey is the per-campaign idempotency key of e, or nil.
func dedupKey(e *Event) any {
	if p, ok := e.Payload.(SalePayload); ok && p.OrderID != "" {
		return "order:" + p.OrderID
	}
	return nil
}

func insertEvent(ctx context.Context, q queryer, e *Event) (*Event, bool, error) {
	payload, err := encodePayload(e.Payload)
	if err != nil {
		return nil, false, err
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	// INSERT OR IGNORE deduplicates through the partial unique indexes
	key := dedupKey(e)
	result, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (campaign_id, variation_set_id, visitor_id, visitor_token, event_type, payload, dedup_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CampaignID, e.VariationSetID, e.VisitorID, e.VisitorToken, string(e.Type), payload, key, createdAt.Unix(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record event: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		var existing *Event
		if key != nil {
			existing, err = getEvent(ctx, q, `campaign_id = ? AND dedup_key = ?`, e.CampaignID, key)
		} else {
			existing, err = getEvent(ctx, q, `visitor_id = ? AND event_type = ?`, e.VisitorID, string(e.Type))
		}
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get last insert id: %w", err)
	}

	stored := *e
	stored.ID = id
	stored.CreatedAt = time.Unix(createdAt.Unix(), 0)
	return &stored, true, nil
}

const eventColumns = `id, campaign_id, variation_set_id, visitor_id, visitor_token, event_type, payload, created_at`

func getEvent(ctx context.Context, q queryer, where string, args ...any) (*Event, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events[0], nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, campaignID int64, window Window) ([]*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE campaign_id = ?`
	args := []any{campaignID}
	query, args = appendWindow(query, args, "created_at", window)
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var e Event
		var eventType, payload string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.VariationSetID, &e.VisitorID, &e.VisitorToken, &eventType, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = EventType(eventType)
		p, err := decodePayload(e.Type, payload)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		e.Payload = p
		e.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Ad spend

func (s *SQLiteStore) AddAdSpend(ctx context.Context, entry *AdSpendEntry) (*AdSpendEntry, error) {
	if entry.Amount < 0 {
		return nil, fmt.Errorf("amount must be >= 0, got %d", entry.Amount)
	}
	currency := entry.Currency
	if currency == "" {
		currency = "usd"
	}

	now := time.Now().Unix()
	spentOn := truncateDay(entry.SpentOn)
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO ad_spend (campaign_id, spent_on, amount, currency, platform, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.CampaignID, spentOn.Unix(), entry.Amount, currency, entry.Platform, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ad spend: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	created := *entry
	created.ID = id
	created.SpentOn = spentOn
	created.Currency = currency
	created.CreatedAt = time.Unix(now, 0)
	return &created, nil
}

func (s *SQLiteStore) ListAdSpend(ctx context.Context, campaignID int64, window Window) ([]*AdSpendEntry, error) {
	query := `SELECT id, campaign_id, spent_on, amount, currency, platform, created_at FROM ad_spend WHERE campaign_id = ?`
	args := []any{campaignID}
	query, args = appendWindow(query, args, "spent_on", window)
	query += ` ORDER BY spent_on, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ad spend: %w", err)
	}
	defer rows.Close()

	var entries []*AdSpendEntry
	for rows.Next() {
		var e AdSpendEntry
		var spentOn, createdAt int64
		if err := rows.Scan(&e.ID, &e.CampaignID, &spentOn, &e.Amount, &e.Currency, &e.Platform, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ad spend: %w", err)
		}
		e.SpentOn = time.Unix(spentOn, 0).UTC()
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*Campaign, error) {
	var c Campaign
	var active int
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.Slug, &active, &c.PresentationID, &c.CTAText, &c.CTAURL, &c.CTAAppearSeconds, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Active = active == 1
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

func scanVariationSet(row rowScanner) (*VariationSet, error) {
	var vs VariationSet
	var active, control int
	var createdAt int64
	if err := row.Scan(&vs.ID, &vs.CampaignID, &vs.Name, &vs.LandingPageID, &vs.Weight, &active, &control, &createdAt); err != nil {
		return nil, err
	}
	vs.Active = active == 1
	vs.Control = control == 1
	vs.CreatedAt = time.Unix(createdAt, 0)
	return &vs, nil
}

func appendWindow(query string, args []any, column string, w Window) (string, []any) {
	if !w.From.IsZero() {
		query += ` AND ` + column + ` >= ?`
		args = append(args, w.From.Unix())
	}
	if !w.To.IsZero() {
		query += ` AND ` + column + ` < ?`
		args = append(args, w.To.Unix())
	}
	return query, args
}

func expectAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
