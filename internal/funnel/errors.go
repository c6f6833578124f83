package funnel

import "errors"

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNoActiveVariants = errors.New("campaign has no active variants")
	ErrUnknownVisitor   = errors.New("unknown visitor")
	ErrInvalidEventType = errors.New("invalid event type")
	ErrInvalidPayload   = errors.New("invalid payload")
)

// IsNotFound reports whether err should be shown to the visitor as a generic
// "not found" state.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrNoActiveVariants) ||
		errors.Is(err, ErrUnknownVisitor)
}
