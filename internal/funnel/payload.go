package funnel

import (
	"fmt"
	"math"
	"strings"

	"github.com/gkobilansky/funnel-goat/internal/store"
)

// RawPayload is the loosely typed payload as it arrives from a client or a
// webhook. ParsePayload turns it into the store's tagged union.
type RawPayload struct {
	Amount        *int64   `json:"amount,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Email         string   `json:"email,omitempty"`
	FirstName     string   `json:"first_name,omitempty"`
	OffsetSeconds *float64 `json:"offset,omitempty"`
	Percent       *float64 `json:"percent,omitempty"`
	OrderID       string   `json:"order_id,omitempty"`
}

func (r RawPayload) empty() bool {
	return r.Amount == nil && r.Currency == "" && r.Email == "" && r.FirstName == "" &&
		r.OffsetSeconds == nil && r.Percent == nil && r.OrderID == ""
}

func validOffset(o float64) bool {
	return o >= 0 && o <= store.MaxOffsetSeconds && !math.IsNaN(o)
}

// ParseEventType validates s against the closed event enumeration.
func ParseEventType(s string) (store.EventType, error) {
	t := store.EventType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventType, s)
	}
	return t, nil
}

// ParsePayload validates raw for event type t. A nil raw means "no payload".
func ParsePayload(t store.EventType, raw *RawPayload) (store.Payload, error) {
	if raw == nil {
		raw = &RawPayload{}
	}

	switch {
	case t == store.EventSale:
		return parseSale(raw)
	case t == store.EventRegistration:
		if raw.Amount != nil || raw.Currency != "" || raw.OffsetSeconds != nil || raw.Percent != nil || raw.OrderID != "" {
			return nil, fmt.Errorf("%w: registration accepts only email and first_name", ErrInvalidPayload)
		}
		if raw.Email == "" && raw.FirstName == "" {
			return nil, nil
		}
		return store.RegistrationPayload{Email: strings.TrimSpace(raw.Email), FirstName: strings.TrimSpace(raw.FirstName)}, nil
	case t.OncePerVisitor():
		return parseProgress(t, raw)
	default:
		if !raw.empty() {
			return nil, fmt.Errorf("%w: %s carries no payload", ErrInvalidPayload, t)
		}
		return nil, nil
	}
}

func parseSale(raw *RawPayload) (store.Payload, error) {
	if raw.Amount == nil {
		return nil, fmt.Errorf("%w: sale requires amount", ErrInvalidPayload)
	}
	if *raw.Amount < 0 {
		return nil, fmt.Errorf("%w: sale amount must be >= 0, got %d", ErrInvalidPayload, *raw.Amount)
	}
	if raw.OffsetSeconds != nil || raw.Percent != nil || raw.FirstName != "" {
		return nil, fmt.Errorf("%w: sale accepts only amount, currency, email and order_id", ErrInvalidPayload)
	}

	currency := strings.ToLower(strings.TrimSpace(raw.Currency))
	if currency == "" {
		currency = "usd"
	}
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code, got %q", ErrInvalidPayload, raw.Currency)
	}

	return store.SalePayload{
		AmountCents: *raw.Amount,
		Currency:    currency,
		Email:       strings.TrimSpace(raw.Email),
		OrderID:     strings.TrimSpace(raw.OrderID),
	}, nil
}

func parseProgress(t store.EventType, raw *RawPayload) (store.Payload, error) {
	if raw.Amount != nil || raw.Currency != "" || raw.Email != "" || raw.FirstName != "" || raw.OrderID != "" {
		return nil, fmt.Errorf("%w: %s accepts only offset and percent", ErrInvalidPayload, t)
	}
	if raw.OffsetSeconds == nil && raw.Percent == nil {
		return nil, nil
	}

	if o := raw.OffsetSeconds; o != nil && !validOffset(*o) {
		return nil, fmt.Errorf("%w: offset must be within [0,%d] seconds", ErrInvalidPayload, store.MaxOffsetSeconds)
	}
	if p := raw.Percent; p != nil {
		if *p < 0 || *p > 100 || math.IsNaN(*p) {
			return nil, fmt.Errorf("%w: percent must be within [0,100]", ErrInvalidPayload)
		}
		if threshold, ok := t.MilestonePercent(); ok && *p < threshold {
			return nil, fmt.Errorf("%w: %s reported at %.1f%%", ErrInvalidPayload, t, *p)
		}
	}

	return store.ProgressPayload{OffsetSeconds: raw.OffsetSeconds, Percent: raw.Percent}, nil
}
