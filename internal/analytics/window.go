package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/gkobilansky/funnel-goat/internal/store"
)

const dateLayout = "2006-01-02"

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ParseWindow builds a Window from optional from/to bounds. A date-only to
// is inclusive: to=2026-03-31 covers all of March 31st.
func ParseWindow(from, to string) (store.Window, error) {
	var w store.Window

	if from != "" {
		t, err := ParseDate(from)
		if err != nil {
			return w, fmt.Errorf("invalid from: %q", from)
		}
		w.From = t
	}
	if to != "" {
		t, err := ParseDate(to)
		if err != nil {
			return w, fmt.Errorf("invalid to: %q", to)
		}
		if len(strings.TrimSpace(to)) == len(dateLayout) {
			t = t.AddDate(0, 0, 1)
		}
		w.To = t
	}
	if !w.From.IsZero() && !w.To.IsZero() && !w.From.Before(w.To) {
		return w, fmt.Errorf("from must be before to")
	}
	return w, nil
}
