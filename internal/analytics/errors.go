package analytics

import "errors"

var (
	ErrInvalidGoal   = errors.New("invalid goal event")
	ErrInvalidBucket = errors.New("bucket must be a positive number of seconds")
)
