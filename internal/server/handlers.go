package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gkobilansky/funnel-goat/internal/analytics"
	"github.com/gkobilansky/funnel-goat/internal/funnel"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

const (
	visitorCookieName = "fg_vid"
	maxBodyBytes      = 16 << 10
)

type HealthResponse struct {
	Status         string `json:"status"`
	CampaignsCount int    `json:"campaigns_count"`
	DBSizeBytes    int64  `json:"db_size_bytes"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	campaigns, err := s.store.ListCampaigns(ctx)
	if err != nil {
		s.log.Error("health check failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var dbSize int64
	row := s.store.DB().QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	if err := row.Scan(&dbSize); err != nil {
		s.log.Warn("failed to read database size", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		CampaignsCount: len(campaigns),
		DBSizeBytes:    dbSize,
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
	})
}

// ResolveResponse tells the landing page which variation set to render.
type ResolveResponse struct {
	Token            string `json:"token"`
	VariationSetID   int64  `json:"variation_set_id"`
	VariationSet     string `json:"variation_set"`
	LandingPageID    string `json:"landing_page_id"`
	PresentationID   string `json:"presentation_id,omitempty"`
	CTAText          string `json:"cta_text,omitempty"`
	CTAURL           string `json:"cta_url,omitempty"`
	CTAAppearSeconds int    `json:"cta_appear_seconds,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	token := q.Get("vid")
	if token == "" {
		if cookie, err := r.Cookie(visitorCookieName); err == nil {
			token = cookie.Value
		}
	}

	referrer := q.Get("ref")
	if referrer == "" {
		referrer = r.Referer()
	}

	a, err := s.resolver.Resolve(r.Context(), funnel.ResolveRequest{
		Slug:  r.PathValue("slug"),
		Token: token,
		Attribution: store.Attribution{
			Source:      q.Get("utm_source"),
			Medium:      q.Get("utm_medium"),
			CampaignTag: q.Get("utm_campaign"),
			ContentTag:  q.Get("utm_content"),
			Term:        q.Get("utm_term"),
			Referrer:    referrer,
		},
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookieName,
		Value:    a.Token,
		Path:     "/",
		MaxAge:   int(365 * 24 * time.Hour / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, ResolveResponse{
		Token:            a.Token,
		VariationSetID:   a.VariationSet.ID,
		VariationSet:     a.VariationSet.Name,
		LandingPageID:    a.VariationSet.LandingPageID,
		PresentationID:   a.Campaign.PresentationID,
		CTAText:          a.Campaign.CTAText,
		CTAURL:           a.Campaign.CTAURL,
		CTAAppearSeconds: a.Campaign.CTAAppearSeconds,
	})
}

// EventRequest is a funnel event reported by the client script
type EventRequest struct {
	Campaign  string             `json:"c"`
	VisitorID string             `json:"vid"`
	EventType string             `json:"e"`
	Payload   *funnel.RawPayload `json:"p,omitempty"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Campaign == "" || req.VisitorID == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	// Sales come from the payment webhook, never from the browser
	if req.EventType == string(store.EventSale) {
		http.Error(w, "Sales must be recorded through the admin API", http.StatusForbidden)
		return
	}

	if _, err := s.recorder.Record(r.Context(), req.VisitorID, req.Campaign, req.EventType, req.Payload); err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ProgressRequest is a raw watch-progress poll
type ProgressRequest struct {
	Campaign  string   `json:"c"`
	VisitorID string   `json:"vid"`
	Percent   *float64 `json:"pct"`
	Offset    *float64 `json:"t,omitempty"`
}

type ProgressResponse struct {
	Recorded []store.EventType `json:"recorded"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Campaign == "" || req.VisitorID == "" || req.Percent == nil {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	events, err := s.recorder.RecordProgress(r.Context(), req.VisitorID, req.Campaign, *req.Percent, req.Offset)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	resp := ProgressResponse{Recorded: make([]store.EventType, 0, len(events))}
	for _, e := range events {
		resp.Recorded = append(resp.Recorded, e.Type)
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeEngineError maps engine errors to status codes. Nothing has been
// recorded when any of these is returned.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, funnel.ErrInvalidEventType),
		errors.Is(err, funnel.ErrInvalidPayload),
		errors.Is(err, analytics.ErrInvalidGoal),
		errors.Is(err, analytics.ErrInvalidBucket):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case funnel.IsNotFound(err), errors.Is(err, store.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, context.Canceled):
		s.log.Debug("request cancelled", zap.String("path", r.URL.Path))
	default:
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
