package catalog

import (
	"sort"

	"github.com/poiesic/advisor/core"
)

// Diff classifies fetched records against the previous run by source hash.
type Diff struct {
	New       []string
	Changed   []string
	Unchanged []string
	Removed   []string
}

// diffRecords compares current records with the previous artifact, keyed by
// catalog ID.
func diffRecords(previous map[string]*core.EnrichedRecord, current []core.CatalogRecord) *Diff {
	d := &Diff{}
	seen := make(map[string]bool, len(current))
	for i := range current {
		rec := &current[i]
		seen[rec.ID] = true
		prev, ok := previous[rec.ID]
		switch {
		case !ok:
			d.New = append(d.New, rec.ID)
		case prev.SourceHash != core.SourceHash(rec):
			d.Changed = append(d.Changed, rec.ID)
		default:
			d.Unchanged = append(d.Unchanged, rec.ID)
		}
	}
	for id := range previous {
		if !seen[id] {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Strings(d.Removed)
	return d
}
