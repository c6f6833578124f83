package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gkobilansky/funnel-goat/internal/analytics"
	"github.com/gkobilansky/funnel-goat/internal/dashboard"
	"github.com/gkobilansky/funnel-goat/internal/stats"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

const defaultDropOffBucket = 30

// Dashboard template data structures
type layoutData struct {
	Title   string
	CSS     template.CSS
	Content template.HTML
}

type listData struct {
	Campaigns []campaignListItem
}

type campaignListItem struct {
	Slug             string
	Active           bool
	VariantCount     int
	Visitors         int
	Registrations    int
	RegistrationRate string
	Sales            int
	Revenue          string
	CreatedAt        string
}

type detailData struct {
	Slug      string
	Active    bool
	Goal      string
	CreatedAt string
	Totals    detailTotals
	Variants  []detailVariant
	DropOff   []dropOffBar
}

type detailTotals struct {
	Visitors            int
	Registrations       int
	Sales               int
	Revenue             string
	AdSpend             string
	CostPerRegistration string
	CostPerSale         string
	ROI                 string
}

type detailVariant struct {
	Name             string
	LandingPageID    string
	Active           bool
	Visitors         int
	Registrations    int
	RegistrationRate string
	PlayStarts       int
	Completions      int
	CTAClicks        int
	CallsBooked      int
	Sales            int
	Revenue          string
	GoalRate         string
	CILower          string
	CIUpper          string
	Verdict          string
	VerdictClass     string
}

type dropOffBar struct {
	Label   string
	Percent string
	Height  string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	// Handle logout
	if r.URL.Query().Get("logout") == "1" {
		http.SetCookie(w, &http.Cookie{
			Name:   tokenCookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	overview, err := s.analytics.Overview(r.Context(), store.Window{})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	items := make([]campaignListItem, len(overview))
	for i, a := range overview {
		items[i] = campaignListItem{
			Slug:             a.Slug,
			Active:           a.Campaign.Active,
			VariantCount:     len(a.Variants),
			Visitors:         a.Totals.Visitors,
			Registrations:    a.Totals.Registrations,
			RegistrationRate: formatPercentage(a.Totals.Rates.Registration),
			Sales:            a.Totals.Sales,
			Revenue:          formatMoney(a.Totals.Revenue),
			CreatedAt:        a.Campaign.CreatedAt.Format("Jan 2, 2006"),
		}
	}

	s.renderDashboard(w, "Dashboard", "list.html", listData{Campaigns: items})
}

func (s *Server) handleDashboardCampaign(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	goal := store.EventType(r.URL.Query().Get("goal"))

	slug := r.PathValue("slug")
	a, err := s.analytics.Campaign(r.Context(), slug, window, goal)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	points, err := s.analytics.DropOff(r.Context(), slug, window, defaultDropOffBucket)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	data := detailData{
		Slug:      a.Slug,
		Active:    a.Campaign.Active,
		Goal:      string(a.Goal),
		CreatedAt: a.Campaign.CreatedAt.Format("Jan 2, 2006"),
		Totals: detailTotals{
			Visitors:            a.Totals.Visitors,
			Registrations:       a.Totals.Registrations,
			Sales:               a.Totals.Sales,
			Revenue:             formatMoney(a.Totals.Revenue),
			AdSpend:             formatMoney(a.Totals.AdSpend),
			CostPerRegistration: formatOptionalMoney(a.Totals.CostPerRegistration),
			CostPerSale:         formatOptionalMoney(a.Totals.CostPerSale),
			ROI:                 "n/a",
		},
		Variants: make([]detailVariant, len(a.Variants)),
		DropOff:  make([]dropOffBar, len(points)),
	}
	if a.Totals.ROI != nil {
		data.Totals.ROI = formatMoney(*a.Totals.ROI)
	}

	for i, v := range a.Variants {
		label, class := verdictLabel(v)
		data.Variants[i] = detailVariant{
			Name:             v.Name,
			LandingPageID:    v.LandingPageID,
			Active:           v.Active,
			Visitors:         v.Visitors,
			Registrations:    v.Registrations,
			RegistrationRate: formatPercentage(v.Rates.Registration),
			PlayStarts:       v.PlayStarts,
			Completions:      v.Completions,
			CTAClicks:        v.CTAClicks,
			CallsBooked:      v.CallsBooked,
			Sales:            v.Sales,
			Revenue:          formatMoney(v.Revenue),
			GoalRate:         formatPercentage(v.GoalRate),
			CILower:          formatPercentage(v.GoalCILower),
			CIUpper:          formatPercentage(v.GoalCIUpper),
			Verdict:          label,
			VerdictClass:     class,
		}
	}

	for i, p := range points {
		data.DropOff[i] = dropOffBar{
			Label:   formatSeconds(p.TimeSeconds),
			Percent: formatPercentage(p.StillWatchingPercent),
			Height:  strconv.FormatFloat(p.StillWatchingPercent, 'f', 1, 64),
		}
	}

	s.renderDashboard(w, a.Slug, "detail.html", data)
}

func (s *Server) handleCampaignsAPI(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	overview, err := s.analytics.Overview(r.Context(), window)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"campaigns": overview})
}

func (s *Server) handleAnalyticsAPI(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a, err := s.analytics.Campaign(r.Context(), r.PathValue("slug"), window, store.EventType(r.URL.Query().Get("goal")))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDropOffAPI(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bucket := defaultDropOffBucket
	if b := r.URL.Query().Get("bucket"); b != "" {
		bucket, err = strconv.Atoi(b)
		if err != nil {
			http.Error(w, "Invalid bucket", http.StatusBadRequest)
			return
		}
	}

	points, err := s.analytics.DropOff(r.Context(), r.PathValue("slug"), window, bucket)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bucket_seconds": bucket, "points": points})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slug := r.PathValue("slug")
	a, err := s.analytics.Campaign(r.Context(), slug, window, store.EventType(r.URL.Query().Get("goal")))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := analytics.WriteCSV(&buf, a); err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", slug+".csv"))
	w.Write(buf.Bytes())
}

func (s *Server) renderDashboard(w http.ResponseWriter, title, contentTemplate string, data any) {
	cssBytes, err := dashboard.Assets.ReadFile("assets/style.css")
	if err != nil {
		http.Error(w, "Failed to load styles", http.StatusInternalServerError)
		return
	}

	contentTmpl, err := template.ParseFS(dashboard.Templates, "templates/"+contentTemplate)
	if err != nil {
		http.Error(w, "Failed to parse template", http.StatusInternalServerError)
		return
	}

	var contentBuf bytes.Buffer
	if err := contentTmpl.Execute(&contentBuf, data); err != nil {
		http.Error(w, fmt.Sprintf("Failed to render template: %v", err), http.StatusInternalServerError)
		return
	}

	layoutTmpl, err := template.ParseFS(dashboard.Templates, "templates/layout.html")
	if err != nil {
		http.Error(w, "Failed to parse layout", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := layoutTmpl.Execute(w, layoutData{
		Title:   title,
		CSS:     template.CSS(cssBytes),
		Content: template.HTML(contentBuf.String()),
	}); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func parseWindow(r *http.Request) (store.Window, error) {
	q := r.URL.Query()
	return analytics.ParseWindow(q.Get("from"), q.Get("to"))
}

func verdictLabel(v analytics.VariantMetrics) (label, class string) {
	if v.Baseline {
		return "Baseline", "baseline"
	}
	switch v.Confidence {
	case stats.Winner:
		return fmt.Sprintf("Winner (%.0f%% confident)", v.Level*100), "winner"
	case stats.Trending:
		return "Trending", "trending"
	default:
		return "Need more data", "need-data"
	}
}

func formatPercentage(p float64) string {
	if p < 0.01 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", p)
}

func formatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func formatOptionalMoney(minor *float64) string {
	if minor == nil {
		return "n/a"
	}
	return formatMoney(int64(*minor + 0.5))
}

func formatSeconds(sec int) string {
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}
