package reconciler

import (
	"sort"

	"cforge/internal/buildjob"
	"cforge/internal/schedule"
	cforgev1 "cforge/pkg/apis/cforge/v1"
)

// Replacement pairs a declared project with the stale definition it replaces.
type Replacement struct {
	Project  cforgev1.Project
	Observed buildjob.Definition
}

// Changes is the classification of declared projects against observed
// definitions. Every declared name lands in exactly one of Unchanged,
// ToCreate or ToReplace; every observed definition without a declared
// project lands in ToDelete.
type Changes struct {
	Unchanged []string
	ToCreate  []cforgev1.Project
	ToReplace []Replacement
	ToDelete  []buildjob.Definition
}

// IsEmpty reports whether applying c would touch the cluster.
func (c Changes) IsEmpty() bool {
	return len(c.ToCreate) == 0 && len(c.ToReplace) == 0 && len(c.ToDelete) == 0
}

// Diff classifies desired against observed. desired must not contain
// duplicate names. The first three lists follow desired order; ToDelete is
// sorted by name.
func Diff(desired []cforgev1.Project, observed []buildjob.Definition) Changes {
	byName := make(map[string]buildjob.Definition, len(observed))
	for _, def := range observed {
		byName[def.Name] = def
	}

	var changes Changes
	declared := make(map[string]bool, len(desired))

	for _, p := range desired {
		declared[p.Name] = true

		def, ok := byName[p.Name]
		switch {
		case !ok:
			changes.ToCreate = append(changes.ToCreate, p)
		case hasDrifted(p, def):
			changes.ToReplace = append(changes.ToReplace, Replacement{Project: p, Observed: def})
		default:
			changes.Unchanged = append(changes.Unchanged, p.Name)
		}
	}

	for _, def := range observed {
		if !declared[def.Name] {
			changes.ToDelete = append(changes.ToDelete, def)
		}
	}
	sort.Slice(changes.ToDelete, func(i, j int) bool {
		return changes.ToDelete[i].Name < changes.ToDelete[j].Name
	})

	return changes
}

// hasDrifted reports whether def no longer matches p. Both schedules are
// normalized before comparing.
func hasDrifted(p cforgev1.Project, def buildjob.Definition) bool {
	if def.RepoURL != p.RepoURL {
		return true
	}
	if !schedule.Equal(def.Schedule, p.Schedule) {
		return true
	}
	return def.Suspended != schedule.IsSuspended(p.Schedule)
}
