package weather

import (
	"sort"

	"agendabot/internal/types"
)

// ConsolidateWindows merges rain windows into maximal contiguous ranges.
//
// Windows are sorted by start hour ascending, then merged in a single
// left-to-right sweep: a window joins the running group if and only if the
// running group's end exactly equals the window's start. Overlapping but not
// adjacent windows, and gapped windows, start a new group.
//
// The empty input yields an empty output, a single window is returned
// unchanged, and the operation is idempotent.
func ConsolidateWindows(windows []types.RainWindow) []types.RainWindow {
	if len(windows) == 0 {
		return nil
	}

	sorted := make([]types.RainWindow, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	var out []types.RainWindow
	current := sorted[0]
	for _, w := range sorted[1:] {
		if current.End == w.Start {
			current.End = w.End
			continue
		}
		out = append(out, current)
		current = w
	}
	out = append(out, current)
	return out
}

// Consolidate renders the consolidated windows as "HH-HH" strings with
// two-digit zero-padded hours.
func Consolidate(windows []types.RainWindow) []string {
	merged := ConsolidateWindows(windows)
	if len(merged) == 0 {
		return nil
	}
	out := make([]string, 0, len(merged))
	for _, w := range merged {
		out = append(out, w.String())
	}
	return out
}
