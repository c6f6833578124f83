package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/gkobilansky/funnel-goat/internal/analytics"
	"github.com/gkobilansky/funnel-goat/internal/funnel"
	"github.com/gkobilansky/funnel-goat/internal/store"
	"github.com/gkobilansky/funnel-goat/internal/testutil"
)

// runCLI executes a fresh command tree against db and returns its output.
func runCLI(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--db", db}, args...))

	err := cmd.Execute()
	return buf.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cli.db")
}

// seedLaunch creates "launch" with two variation sets and drives visitors
// through the funnel engine: 6 visitors, 2 registrations, 1 sale.
func seedLaunch(t *testing.T, db string) {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(db)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	testutil.SeedCampaign(t, s, "launch", 1, 1)

	resolver := funnel.NewResolver(s, funnel.NewCampaignCache(s, 0), zap.NewNop())
	recorder := funnel.NewRecorder(s, zap.NewNop())

	for i := 0; i < 6; i++ {
		a, err := resolver.Resolve(ctx, funnel.ResolveRequest{Slug: "launch"})
		if err != nil {
			t.Fatalf("failed to resolve: %v", err)
		}

		offset := float64(30 * (i + 1))
		if _, err := recorder.RecordProgress(ctx, a.Token, "launch", 30, &offset); err != nil {
			t.Fatalf("failed to record progress: %v", err)
		}

		if i < 2 {
			if _, err := recorder.Record(ctx, a.Token, "launch", "registration", nil); err != nil {
				t.Fatalf("failed to record registration: %v", err)
			}
		}
		if i == 0 {
			amount := int64(49700)
			if _, err := recorder.Record(ctx, a.Token, "launch", "sale", &funnel.RawPayload{Amount: &amount}); err != nil {
				t.Fatalf("failed to record sale: %v", err)
			}
		}
	}
}

func TestCampaignCreateAndList(t *testing.T) {
	db := tempDB(t)

	out, err := runCLI(t, db, "campaign", "create", "launch", "--landing-pages", "lp-hero, lp-story", "--presentation", "webinar-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for _, want := range []string{"Created campaign 'launch'", "A: lp-hero", "B: lp-story"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	out, err = runCLI(t, db, "campaign", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "launch") || !strings.Contains(out, "ACTIVE") || !strings.Contains(out, "2/2") {
		t.Errorf("unexpected list output:\n%s", out)
	}

	if _, err := runCLI(t, db, "campaign", "create", "launch"); err == nil {
		t.Error("expected error for duplicate slug")
	}
}

func TestCampaignList_Empty(t *testing.T) {
	out, err := runCLI(t, tempDB(t), "campaign", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "No campaigns yet") {
		t.Errorf("expected empty hint, got:\n%s", out)
	}
}

func TestCommandTreesDoNotShareFlags(t *testing.T) {
	first, second := tempDB(t), tempDB(t)
	t.Setenv("FG_DB_PATH", second)

	a, b := newRootCmd(), newRootCmd()
	a.SetOut(&bytes.Buffer{})
	a.SetArgs([]string{"--db", first, "campaign", "create", "launch"})
	var out bytes.Buffer
	b.SetOut(&out)
	b.SetArgs([]string{"campaign", "list"})

	if err := a.Execute(); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := b.Execute(); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), "No campaigns yet") {
		t.Errorf("second tree used the first tree's --db:\n%s", out.String())
	}
}

func TestCampaignDeactivate(t *testing.T) {
	db := tempDB(t)
	runCLI(t, db, "campaign", "create", "launch")

	out, err := runCLI(t, db, "campaign", "deactivate", "launch", "--yes")
	if err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if !strings.Contains(out, "deactivated") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, _ = runCLI(t, db, "campaign", "list")
	if !strings.Contains(out, "INACTIVE") {
		t.Errorf("expected campaign to be inactive, got:\n%s", out)
	}

	if _, err := runCLI(t, db, "campaign", "deactivate", "missing", "--yes"); err == nil {
		t.Error("expected error for unknown campaign")
	}
}

func TestVariantAddAndSet(t *testing.T) {
	db := tempDB(t)
	runCLI(t, db, "campaign", "create", "launch")

	out, err := runCLI(t, db, "variant", "add", "launch", "A", "--landing-page", "lp-hero", "--control")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !strings.Contains(out, "[control]") {
		t.Errorf("expected control marker, got:\n%s", out)
	}

	if _, err := runCLI(t, db, "variant", "add", "launch", "B", "--landing-page", "lp-story", "--weight", "3"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"duplicate name", []string{"variant", "add", "launch", "A", "--landing-page", "lp-x"}},
		{"second control", []string{"variant", "add", "launch", "C", "--landing-page", "lp-x", "--control"}},
		{"zero weight", []string{"variant", "add", "launch", "C", "--landing-page", "lp-x", "--weight", "0"}},
		{"missing landing page", []string{"variant", "add", "launch", "C"}},
		{"unknown campaign", []string{"variant", "add", "nope", "C", "--landing-page", "lp-x"}},
		{"nothing to set", []string{"variant", "set", "launch", "B"}},
		{"unknown variant", []string{"variant", "set", "launch", "Z", "--weight", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, db, tt.args...); err == nil {
				t.Errorf("expected error for %v", tt.args)
			}
		})
	}

	out, err = runCLI(t, db, "variant", "set", "launch", "B", "--weight", "1", "--active=false")
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !strings.Contains(out, "weight 1, inactive") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSpendAddAndList(t *testing.T) {
	db := tempDB(t)
	runCLI(t, db, "campaign", "create", "launch")

	out, err := runCLI(t, db, "spend", "add", "launch", "--amount", "25000", "--date", "2026-03-01", "--platform", "facebook")
	if err != nil {
		t.Fatalf("spend add failed: %v", err)
	}
	if !strings.Contains(out, "250.00 usd") || !strings.Contains(out, "2026-03-01") {
		t.Errorf("unexpected output:\n%s", out)
	}
	runCLI(t, db, "spend", "add", "launch", "--amount", "1050", "--date", "2026-03-02")

	out, err = runCLI(t, db, "spend", "list", "launch")
	if err != nil {
		t.Fatalf("spend list failed: %v", err)
	}
	if !strings.Contains(out, "facebook") || !strings.Contains(out, "260.50") {
		t.Errorf("unexpected list output:\n%s", out)
	}

	out, _ = runCLI(t, db, "spend", "list", "launch", "--from", "2026-03-02")
	if strings.Contains(out, "facebook") {
		t.Errorf("expected windowed list to exclude March 1st, got:\n%s", out)
	}

	if _, err := runCLI(t, db, "spend", "add", "launch", "--amount", "-1"); err == nil {
		t.Error("expected error for negative amount")
	}
	if _, err := runCLI(t, db, "spend", "add", "launch", "--amount", "1", "--date", "tomorrow"); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestReport(t *testing.T) {
	db := tempDB(t)
	seedLaunch(t, db)
	runCLI(t, db, "spend", "add", "launch", "--amount", "10000")

	out, err := runCLI(t, db, "report", "launch")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	for _, want := range []string{
		"CAMPAIGN: launch",
		"GOAL: registration",
		"baseline",
		"Visitors: 6",
		"Registrations: 2",
		"Revenue: 497.00",
		"Ad spend: 100.00",
		"Cost/registration: 50.00",
		"Cost/sale: 100.00",
		"ROI: 397.00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected report to contain %q, got:\n%s", want, out)
		}
	}

	if _, err := runCLI(t, db, "report", "launch", "--goal", "page_view"); err == nil {
		t.Error("expected error for page_view goal")
	}
	if _, err := runCLI(t, db, "report", "missing"); err == nil {
		t.Error("expected error for unknown campaign")
	}
}

func TestDropOff(t *testing.T) {
	db := tempDB(t)
	seedLaunch(t, db)

	out, err := runCLI(t, db, "dropoff", "launch", "--bucket", "60")
	if err != nil {
		t.Fatalf("dropoff failed: %v", err)
	}

	// offsets 30..180: still watching at 0, 60, 120, 180 is 6, 5, 3, 1 of 6
	for _, want := range []string{"  0:00   100.0%", "  1:00    83.3%", "  2:00    50.0%", "  3:00    16.7%"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected drop-off to contain %q, got:\n%s", want, out)
		}
	}

	if _, err := runCLI(t, db, "dropoff", "launch", "--bucket", "0"); err == nil {
		t.Error("expected error for zero bucket")
	}
}

func TestExport(t *testing.T) {
	db := tempDB(t)
	seedLaunch(t, db)

	out, err := runCLI(t, db, "export", "launch")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header, 2 variants and totals, got %d rows", len(records))
	}
	if records[0][0] != "variant_id" || records[3][0] != "total" {
		t.Errorf("unexpected CSV layout: %v", records)
	}

	out, err = runCLI(t, db, "export", "launch", "--format", "json", "--goal", "cta_click")
	if err != nil {
		t.Fatalf("json export failed: %v", err)
	}
	var a analytics.CampaignAnalytics
	if err := json.Unmarshal([]byte(out), &a); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if a.Goal != store.EventCTAClick || a.Totals.Visitors != 6 {
		t.Errorf("unexpected export: goal %s, visitors %d", a.Goal, a.Totals.Visitors)
	}

	if _, err := runCLI(t, db, "export", "launch", "--format", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestToken(t *testing.T) {
	db := tempDB(t)

	if _, err := runCLI(t, db, "token"); err == nil {
		t.Error("expected error without a token file")
	}

	tokenFile := filepath.Join(filepath.Dir(db), ".funnel-goat-token")
	if err := os.WriteFile(tokenFile, []byte("abc123\n"), 0600); err != nil {
		t.Fatalf("failed to write token file: %v", err)
	}

	out, err := runCLI(t, db, "token")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	if !strings.Contains(out, "/dashboard?token=abc123\n") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{formatNumber(999), "999"},
		{formatNumber(12345), "12,345"},
		{formatNumber(1234567), "1,234,567"},
		{formatMoney(49700), "497.00"},
		{formatMoney(-1205), "-12.05"},
		{formatOptionalMoney(nil), "n/a"},
		{formatPercent(0), "0%"},
		{formatPercent(33.333), "33.33%"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
