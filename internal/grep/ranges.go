package grep

import (
	"sort"
	"strconv"
	"strings"
)

// RangeRun is a maximal run of consecutive matching revision numbers.
// Runs produced by Coalesce are never adjacent or overlapping.
type RangeRun struct {
	Lo, Hi int
}

// Coalesce compacts a set of revision numbers into the smallest list of
// maximal consecutive runs. The input need not be sorted or unique.
func Coalesce(revs []int) []RangeRun {
	if len(revs) == 0 {
		return nil
	}

	sorted := append([]int(nil), revs...)
	sort.Ints(sorted)

	runs := []RangeRun{{Lo: sorted[0], Hi: sorted[0]}}
	for _, rev := range sorted[1:] {
		last := &runs[len(runs)-1]
		switch {
		case rev <= last.Hi:
			// duplicate
		case rev == last.Hi+1:
			last.Hi = rev
		default:
			runs = append(runs, RangeRun{Lo: rev, Hi: rev})
		}
	}
	return runs
}

// Expand is the inverse of Coalesce: the sorted set of revisions the runs
// cover.
func Expand(runs []RangeRun) []int {
	var revs []int
	for _, run := range runs {
		for rev := run.Lo; rev <= run.Hi; rev++ {
			revs = append(revs, rev)
		}
	}
	return revs
}

// FormatRuns renders runs for files-with-matches output: a comma-joined
// list where a run of length one collapses to a single revision number
// and a longer run becomes "lo,hi".
func FormatRuns(runs []RangeRun) string {
	parts := make([]string, 0, len(runs))
	for _, run := range runs {
		if run.Lo == run.Hi {
			parts = append(parts, strconv.Itoa(run.Lo))
		} else {
			parts = append(parts, strconv.Itoa(run.Lo)+","+strconv.Itoa(run.Hi))
		}
	}
	return strings.Join(parts, ",")
}
