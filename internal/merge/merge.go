// Package merge computes the busy-block delta between calendars. It is
// pure: no I/O, no clocks, no shared state.
package merge

import (
	"sort"
	"time"

	"github.com/jmorrell/busysync/internal/interval"
)

// Options controls block construction.
type Options struct {
	// BlockSubject is the label every new synthetic block carries.
	BlockSubject string
	// BlockCategory tags new synthetic blocks on providers that
	// support event categories.
	BlockCategory string
	// WindowStart/WindowEnd bound the day being reconciled. Candidates
	// outside the window are ignored.
	WindowStart time.Time
	WindowEnd   time.Time
}

// ConflictReport records an overlap between a candidate mirror and a
// real event already on the target calendar.
type ConflictReport struct {
	CalendarID       string    `json:"calendar_id"`
	SourceCalendarID string    `json:"source_calendar_id"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	WithSubject      string    `json:"with_subject"`
}

// Delta is the per-calendar outcome of a plan.
type Delta struct {
	ToCreate []interval.BusyInterval
	ToDelete []interval.BusyInterval
}

// Plan is the full outcome of one engine run.
type Plan struct {
	Deltas    map[string]Delta
	Conflicts []ConflictReport
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	for _, d := range p.Deltas {
		if len(d.ToCreate) > 0 || len(d.ToDelete) > 0 {
			return false
		}
	}
	return true
}

// Compute reconciles every enabled calendar against the others.
//
// For each enabled target T it collects the Original intervals of every
// other enabled calendar, reports the ones that overlap an Original
// already on T (never shadow a real event), and derives synthetic blocks
// for the rest unless an existing Synthetic with exactly matching source
// and bounds already covers them. Synthetic blocks on T whose source no
// longer produces a candidate are marked stale and deleted.
//
// The caller guarantees len(enabledIDs) >= 2 and that every interval
// passed validation at ingestion.
func Compute(perCalendarEvents map[string][]interval.BusyInterval, enabledIDs []string, opts Options) Plan {
	plan := Plan{Deltas: make(map[string]Delta, len(enabledIDs))}

	for _, targetID := range enabledIDs {
		existing := perCalendarEvents[targetID]

		var originals, synthetics []interval.BusyInterval
		for _, iv := range existing {
			if iv.Kind == interval.Original {
				originals = append(originals, iv)
			} else {
				synthetics = append(synthetics, iv)
			}
		}

		candidates := collectCandidates(perCalendarEvents, enabledIDs, targetID, opts)

		var delta Delta
		// Indices into synthetics still required after this pass.
		// Anything not re-claimed is stale.
		claimed := make(map[int]bool, len(synthetics))

		for _, cand := range candidates {
			conflicting := false
			for _, orig := range originals {
				if !interval.Overlaps(cand, orig) {
					continue
				}
				conflicting = true
				start, end, _ := interval.Intersect(cand, orig)
				plan.Conflicts = append(plan.Conflicts, ConflictReport{
					CalendarID:       targetID,
					SourceCalendarID: cand.CalendarID,
					Start:            start,
					End:              end,
					WithSubject:      orig.Subject,
				})
			}
			if conflicting {
				continue
			}

			if idx := findCovering(cand, synthetics, claimed); idx >= 0 {
				claimed[idx] = true
				continue
			}

			delta.ToCreate = append(delta.ToCreate, interval.BusyInterval{
				CalendarID:       targetID,
				Start:            cand.Start,
				End:              cand.End,
				Subject:          cand.PropagatedSubject(opts.BlockSubject),
				Category:         opts.BlockCategory,
				Kind:             interval.Synthetic,
				Private:          true,
				SourceCalendarID: cand.CalendarID,
			})
		}

		for idx, syn := range synthetics {
			if !claimed[idx] {
				delta.ToDelete = append(delta.ToDelete, syn)
			}
		}

		plan.Deltas[targetID] = delta
	}

	return plan
}

// collectCandidates gathers the Original intervals of every enabled
// calendar other than targetID that intersect the window. Order is
// deterministic: by source calendar, then start time.
func collectCandidates(perCalendarEvents map[string][]interval.BusyInterval, enabledIDs []string, targetID string, opts Options) []interval.BusyInterval {
	sources := make([]string, 0, len(enabledIDs)-1)
	for _, id := range enabledIDs {
		if id != targetID {
			sources = append(sources, id)
		}
	}
	sort.Strings(sources)

	var candidates []interval.BusyInterval
	for _, sourceID := range sources {
		events := perCalendarEvents[sourceID]
		var fromSource []interval.BusyInterval
		for _, iv := range events {
			if iv.Kind != interval.Original {
				continue
			}
			if !opts.WindowStart.IsZero() && !iv.IntersectsWindow(opts.WindowStart, opts.WindowEnd) {
				continue
			}
			fromSource = append(fromSource, iv)
		}
		sort.Slice(fromSource, func(i, j int) bool {
			return fromSource[i].Start.Before(fromSource[j].Start)
		})
		candidates = append(candidates, fromSource...)
	}
	return candidates
}

// findCovering returns the index of an unclaimed Synthetic block that
// covers cand, or -1. A block covers a candidate only when its recorded
// source and bounds match exactly; a moved source event invalidates its
// old block. Claimed indices are skipped so duplicate source events
// each claim a distinct block.
func findCovering(cand interval.BusyInterval, synthetics []interval.BusyInterval, claimed map[int]bool) int {
	for idx, syn := range synthetics {
		if claimed[idx] {
			continue
		}
		if syn.SourceCalendarID == cand.CalendarID && interval.SameBounds(syn, cand) {
			return idx
		}
	}
	return -1
}
