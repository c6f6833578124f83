package analytics

import (
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/gkobilansky/funnel-goat/internal/store"
)

// Point is one sample of the drop-off curve.
type Point struct {
	TimeSeconds          int     `json:"time_seconds"`
	StillWatchingPercent float64 `json:"still_watching_percent"`
}

// BuildDropOff returns the survival curve of viewers (visitors with a
// play_start) sampled every bucketSeconds from 0 up to the furthest known
// offset. A viewer's last known offset is the largest offset reported on any
// of their progress events, clamped to store.MaxOffsetSeconds.
func BuildDropOff(events []*store.Event, bucketSeconds int) (iter.Seq[Point], error) {
	if bucketSeconds <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBucket, bucketSeconds)
	}

	started := make(map[int64]struct{})
	last := make(map[int64]float64)
	for _, e := range events {
		if !e.Type.OncePerVisitor() {
			continue
		}
		if e.Type == store.EventPlayStart {
			started[e.VisitorID] = struct{}{}
		}
		var offset float64
		if p, ok := e.Payload.(store.ProgressPayload); ok {
			offset = min(p.Offset(), store.MaxOffsetSeconds)
		}
		last[e.VisitorID] = max(last[e.VisitorID], offset)
	}

	offsets := make([]float64, 0, len(started))
	for id := range started {
		offsets = append(offsets, last[id])
	}
	sort.Float64s(offsets)

	return func(yield func(Point) bool) {
		if len(offsets) == 0 {
			return
		}
		viewers := len(offsets)
		n := int(offsets[viewers-1]) / bucketSeconds

		for i := 0; i <= n; i++ {
			b := i * bucketSeconds
			// Viewers whose last offset is at or past b.
			below := sort.SearchFloat64s(offsets, float64(b))
			p := Point{
				TimeSeconds:          b,
				StillWatchingPercent: float64(viewers-below) / float64(viewers) * 100,
			}
			if !yield(p) {
				return
			}
		}
	}, nil
}

// DropOffPoints collects BuildDropOff into a slice.
func DropOffPoints(events []*store.Event, bucketSeconds int) ([]Point, error) {
	seq, err := BuildDropOff(events, bucketSeconds)
	if err != nil {
		return nil, err
	}
	return slices.AppendSeq(make([]Point, 0), seq), nil
}
