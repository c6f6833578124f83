package server

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gkobilansky/funnel-goat/internal/analytics"
	"github.com/gkobilansky/funnel-goat/internal/funnel"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

// SaleRequest is the payment webhook hand-off. The visitor token travels
// through checkout as metadata. OrderID makes retried deliveries idempotent.
type SaleRequest struct {
	VisitorID string `json:"vid"`
	Amount    *int64 `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	Email     string `json:"email,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
}

type SaleResponse struct {
	EventID        int64 `json:"event_id"`
	VariationSetID int64 `json:"variation_set_id"`
	Duplicate      bool  `json:"duplicate,omitempty"`
}

func (s *Server) handleRecordSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.VisitorID == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	slug := r.PathValue("slug")
	e, inserted, err := s.recorder.RecordSale(r.Context(), req.VisitorID, slug, &funnel.RawPayload{
		Amount:   req.Amount,
		Currency: req.Currency,
		Email:    req.Email,
		OrderID:  req.OrderID,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	if !inserted {
		s.log.Info("duplicate sale ignored",
			zap.String("campaign", slug),
			zap.String("order_id", req.OrderID),
			zap.Int64("event_id", e.ID))
		writeJSON(w, http.StatusOK, SaleResponse{EventID: e.ID, VariationSetID: e.VariationSetID, Duplicate: true})
		return
	}

	s.log.Info("sale recorded",
		zap.String("campaign", slug),
		zap.Int64("variation_set", e.VariationSetID),
		zap.Int64("amount", *req.Amount))

	writeJSON(w, http.StatusCreated, SaleResponse{EventID: e.ID, VariationSetID: e.VariationSetID})
}

type SpendRequest struct {
	Date     string `json:"date"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type SpendResponse struct {
	ID      int64  `json:"id"`
	SpentOn string `json:"spent_on"`
	Amount  int64  `json:"amount"`
}

func (s *Server) handleAddSpend(w http.ResponseWriter, r *http.Request) {
	var req SpendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	spentOn := time.Now()
	if req.Date != "" {
		d, err := analytics.ParseDate(req.Date)
		if err != nil {
			http.Error(w, "Invalid date", http.StatusBadRequest)
			return
		}
		spentOn = d
	}
	if req.Amount < 0 {
		http.Error(w, "Amount must be >= 0", http.StatusBadRequest)
		return
	}

	campaign, err := s.store.GetCampaignBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	entry, err := s.store.AddAdSpend(r.Context(), &store.AdSpendEntry{
		CampaignID: campaign.ID,
		SpentOn:    spentOn,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Platform:   req.Platform,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, SpendResponse{
		ID:      entry.ID,
		SpentOn: entry.SpentOn.Format("2006-01-02"),
		Amount:  entry.Amount,
	})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if err := s.store.SetCampaignActive(r.Context(), slug, false); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.campaigns.Invalidate(slug)

	s.log.Info("campaign deactivated", zap.String("campaign", slug))
	w.WriteHeader(http.StatusNoContent)
}

type VariantUpdateRequest struct {
	Weight *int  `json:"weight,omitempty"`
	Active *bool `json:"active,omitempty"`
}

func (s *Server) handleUpdateVariant(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid variant id", http.StatusBadRequest)
		return
	}

	var req VariantUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Weight != nil && *req.Weight < 1 {
		http.Error(w, "Weight must be >= 1", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	campaign, err := s.store.GetCampaignBySlug(ctx, slug)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	vs, err := s.store.GetVariationSet(ctx, id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if vs.CampaignID != campaign.ID {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	if err := s.store.UpdateVariationSet(ctx, id, req.Weight, req.Active); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.campaigns.Invalidate(slug)

	w.WriteHeader(http.StatusNoContent)
}
