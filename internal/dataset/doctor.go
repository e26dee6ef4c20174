package dataset

import (
	"sort"
	"strings"
)

// LabelCount is the number of records carrying a label.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Report summarises label health in a dataset.
type Report struct {
	Total   int          `json:"total"`
	Invalid int          `json:"invalid"`
	Labels  []LabelCount `json:"labels"`
	Lonely  []LabelCount `json:"lonely"`
}

// Analyze counts labels and flags those with fewer than lonelyMin examples.
// Records with blank text or label are counted as invalid and excluded.
func Analyze(records []Record, lonelyMin int) Report {
	counts := make(map[string]int)
	rep := Report{Total: len(records)}
	for _, r := range records {
		if !r.Valid() {
			rep.Invalid++
			continue
		}
		counts[r.Label]++
	}

	rep.Labels = make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		rep.Labels = append(rep.Labels, LabelCount{Label: label, Count: n})
	}
	sort.Slice(rep.Labels, func(i, j int) bool {
		if rep.Labels[i].Count != rep.Labels[j].Count {
			return rep.Labels[i].Count > rep.Labels[j].Count
		}
		return rep.Labels[i].Label < rep.Labels[j].Label
	})

	rep.Lonely = []LabelCount{}
	for _, lc := range rep.Labels {
		if lc.Count < lonelyMin {
			rep.Lonely = append(rep.Lonely, lc)
		}
	}
	return rep
}

// Fixes are the corrections doctor can apply.
type Fixes struct {
	Relabel     map[string]string // from -> to
	Drop        []string          // labels whose records are removed
	DropInvalid bool
}

// Empty reports whether no fix is requested.
func (f Fixes) Empty() bool {
	return len(f.Relabel) == 0 && len(f.Drop) == 0 && !f.DropInvalid
}

// FixStats counts what Apply changed.
type FixStats struct {
	Relabeled int `json:"relabeled"`
	Dropped   int `json:"dropped"`
}

// Apply returns a corrected copy of records. Drops are evaluated against the
// original label, before any relabel. Relabeling can create duplicate texts
// only if they already existed, so no dedup pass is needed here.
func Apply(records []Record, fixes Fixes) ([]Record, FixStats) {
	drop := make(map[string]bool, len(fixes.Drop))
	for _, l := range fixes.Drop {
		drop[strings.TrimSpace(l)] = true
	}

	var stats FixStats
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if drop[r.Label] || (fixes.DropInvalid && !r.Valid()) {
			stats.Dropped++
			continue
		}
		if to, ok := fixes.Relabel[r.Label]; ok && to != r.Label {
			r.Label = to
			stats.Relabeled++
		}
		out = append(out, r)
	}
	return out, stats
}
