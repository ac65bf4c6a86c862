// Package interval defines the busy-interval model shared by the merge
// engine, the orchestrator, and the calendar providers.
package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval is returned when an interval has Start >= End.
var ErrInvalidInterval = errors.New("invalid interval: start must be before end")

// Kind classifies how an interval got onto a calendar.
type Kind int

const (
	// Original is a user-authored event. Never created or deleted by us.
	Original Kind = iota
	// Synthetic is a busy-block this system created (or is about to
	// create) to mirror another calendar's busy time.
	Synthetic
)

func (k Kind) String() string {
	switch k {
	case Original:
		return "original"
	case Synthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// BusyInterval is one time-bounded busy entry on a calendar.
// Immutable once constructed.
type BusyInterval struct {
	// CalendarID is the calendar the interval currently lives on.
	CalendarID string `json:"calendar_id"`
	// EventID is the provider-assigned event identifier, empty for
	// intervals not yet written to a calendar.
	EventID string    `json:"event_id,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Subject string    `json:"subject"`
	// Category tags Synthetic intervals on providers that support
	// event categories. Empty for Original intervals.
	Category string `json:"category,omitempty"`
	Kind     Kind   `json:"kind"`
	// Private marks intervals whose subject must never propagate to
	// another calendar.
	Private bool `json:"private,omitempty"`
	// SourceCalendarID identifies the calendar a Synthetic interval
	// mirrors. Empty for Original intervals.
	SourceCalendarID string `json:"source_calendar_id,omitempty"`
}

// Validate checks that the interval has a positive duration.
func (iv BusyInterval) Validate() error {
	if !iv.Start.Before(iv.End) {
		return fmt.Errorf("%w (start=%s end=%s)", ErrInvalidInterval,
			iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
	}
	return nil
}

// Duration returns the interval length.
func (iv BusyInterval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two intervals overlap. Half-open semantics:
// touching endpoints do not overlap.
func Overlaps(a, b BusyInterval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// OverlapsAny reports whether iv overlaps any interval in set.
func OverlapsAny(iv BusyInterval, set []BusyInterval) bool {
	for _, other := range set {
		if Overlaps(iv, other) {
			return true
		}
	}
	return false
}

// Intersect returns the overlapping sub-range of a and b. ok is false
// when the intervals do not overlap.
func Intersect(a, b BusyInterval) (start, end time.Time, ok bool) {
	if !Overlaps(a, b) {
		return time.Time{}, time.Time{}, false
	}
	start = a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end = a.End
	if b.End.Before(end) {
		end = b.End
	}
	return start, end, true
}

// SameBounds reports whether two intervals cover exactly the same range.
func SameBounds(a, b BusyInterval) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

// IntersectsWindow reports whether iv intersects [windowStart, windowEnd).
func (iv BusyInterval) IntersectsWindow(windowStart, windowEnd time.Time) bool {
	return iv.Start.Before(windowEnd) && windowStart.Before(iv.End)
}

// PropagatedSubject returns the subject a synthetic mirror of iv must
// carry on another calendar: always the bare configured label. A source
// event's subject never leaves its own calendar, private or not.
func (iv BusyInterval) PropagatedSubject(blockSubject string) string {
	return blockSubject
}
