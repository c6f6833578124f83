package store

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventPageView     EventType = "page_view"
	EventRegistration EventType = "registration"
	EventPlayStart    EventType = "play_start"
	EventPlay25       EventType = "play_25"
	EventPlay50       EventType = "play_50"
	EventPlay75       EventType = "play_75"
	EventPlay100      EventType = "play_100"
	EventCTAClick     EventType = "cta_click"
	EventCallBooked   EventType = "call_booked"
	EventSale         EventType = "sale"
	EventPageLeave    EventType = "page_leave"
)

var eventTypes = []EventType{
	EventPageView, EventRegistration, EventPlayStart,
	EventPlay25, EventPlay50, EventPlay75, EventPlay100,
	EventCTAClick, EventCallBooked, EventSale, EventPageLeave,
}

// EventTypes returns the closed set of accepted event types.
func EventTypes() []EventType {
	out := make([]EventType, len(eventTypes))
	copy(out, eventTypes)
	return out
}

func (t EventType) Valid() bool {
	for _, et := range eventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Milestones are the watch-progress crossings in ascending order.
var Milestones = []struct {
	Type    EventType
	Percent float64
}{
	{EventPlay25, 25},
	{EventPlay50, 50},
	{EventPlay75, 75},
	{EventPlay100, 100},
}

// MilestonePercent returns the progress threshold for a milestone type.
func (t EventType) MilestonePercent() (float64, bool) {
	for _, m := range Milestones {
		if m.Type == t {
			return m.Percent, true
		}
	}
	return 0, false
}

// OncePerVisitor reports whether at most one event of this type is kept per visitor.
func (t EventType) OncePerVisitor() bool {
	if t == EventPlayStart {
		return true
	}
	_, ok := t.MilestonePercent()
	return ok
}

// Payload is the tagged union of event payloads. The event type is the tag.
type Payload interface {
	payloadTag() string
}

// SalePayload is a purchase. OrderID, when set, makes the sale idempotent
// per campaign: a retried webhook with the same order is stored once.
type SalePayload struct {
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Email       string `json:"email,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
}

// MaxOffsetSeconds bounds watch-time offsets accepted from clients.
const MaxOffsetSeconds = 24 * 60 * 60

type ProgressPayload struct {
	OffsetSeconds *float64 `json:"offset,omitempty"`
	Percent       *float64 `json:"percent,omitempty"`
}

type RegistrationPayload struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

func (SalePayload) payloadTag() string         { return "sale" }
func (ProgressPayload) payloadTag() string     { return "progress" }
func (RegistrationPayload) payloadTag() string { return "registration" }

// Offset returns the watch-time offset or 0 when absent.
func (p ProgressPayload) Offset() float64 {
	if p.OffsetSeconds == nil {
		return 0
	}
	return *p.OffsetSeconds
}

func encodePayload(p Payload) (string, error) {
	if p == nil {
		return "", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return string(b), nil
}

func decodePayload(t EventType, raw string) (Payload, error) {
	if raw == "" {
		return nil, nil
	}

	switch {
	case t == EventSale:
		var p SalePayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sale payload: %w", err)
		}
		return p, nil
	case t == EventRegistration:
		var p RegistrationPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal registration payload: %w", err)
		}
		return p, nil
	case t == EventPlayStart || t.OncePerVisitor():
		var p ProgressPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal progress payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unexpected payload for event type %s", t)
	}
}
