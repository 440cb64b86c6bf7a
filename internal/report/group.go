package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/mabhi256/jlinkcheck/internal/descriptor"
	"github.com/mabhi256/jlinkcheck/internal/linkage"
)

// Summary describes the run a conflict list came from
type Summary struct {
	Project          string
	Checked          []string // artifacts whose code was validated
	KnownClasses     int
	ReachableClasses int
	CheckedClasses   int
	Filtered         int // conflicts dropped by the filter
	Elapsed          time.Duration
}

// NewSummary fills the class counts from a verification result
func NewSummary(project string, checked []string, result *linkage.Result) Summary {
	return Summary{
		Project:          project,
		Checked:          checked,
		KnownClasses:     result.World.Len(),
		ReachableClasses: result.Reachable.Len(),
		CheckedClasses:   result.Checked,
		Elapsed:          result.Elapsed,
	}
}

type CategoryGroup struct {
	Category  linkage.Category
	Artifacts []ArtifactGroup
	Count     int
}

type ArtifactGroup struct {
	Artifact string
	Classes  []ClassGroup
	Count    int
}

type ClassGroup struct {
	Class     descriptor.ClassType
	Conflicts []linkage.Conflict
}

// Group nests conflicts by category, then the artifact using the target, then
// the referencing class. Empty categories are left out. Conflicts keep their order.
func Group(conflicts []linkage.Conflict) []CategoryGroup {
	var groups []CategoryGroup
	for _, category := range linkage.Categories() {
		byArtifact := make(map[string]map[descriptor.ClassType][]linkage.Conflict)
		count := 0
		for _, c := range conflicts {
			if c.Category != category {
				continue
			}
			classes, ok := byArtifact[c.UsedBy]
			if !ok {
				classes = make(map[descriptor.ClassType][]linkage.Conflict)
				byArtifact[c.UsedBy] = classes
			}
			classes[c.Dependency.FromClass] = append(classes[c.Dependency.FromClass], c)
			count++
		}
		if count == 0 {
			continue
		}

		group := CategoryGroup{Category: category, Count: count}
		for artifact, classes := range byArtifact {
			ag := ArtifactGroup{Artifact: artifact}
			for class, list := range classes {
				ag.Classes = append(ag.Classes, ClassGroup{Class: class, Conflicts: list})
				ag.Count += len(list)
			}
			slices.SortFunc(ag.Classes, func(a, b ClassGroup) int {
				return cmp.Compare(a.Class.Name(), b.Class.Name())
			})
			group.Artifacts = append(group.Artifacts, ag)
		}
		slices.SortFunc(group.Artifacts, func(a, b ArtifactGroup) int {
			return cmp.Compare(a.Artifact, b.Artifact)
		})
		groups = append(groups, group)
	}
	return groups
}

// Count is one labelled tally
type Count struct {
	Label string
	Value int
}

// CountByArtifact tallies conflicts per using artifact, largest first
func CountByArtifact(conflicts []linkage.Conflict) []Count {
	tally := make(map[string]int)
	for _, c := range conflicts {
		tally[c.UsedBy]++
	}

	counts := make([]Count, 0, len(tally))
	for label, value := range tally {
		counts = append(counts, Count{Label: label, Value: value})
	}
	slices.SortFunc(counts, func(a, b Count) int {
		return cmp.Or(cmp.Compare(b.Value, a.Value), cmp.Compare(a.Label, b.Label))
	})
	return counts
}

// CountByCategory tallies conflicts per category, in category order, including zeros
func CountByCategory(conflicts []linkage.Conflict) []Count {
	counts := make([]Count, 0, 3)
	for _, category := range linkage.Categories() {
		n := 0
		for _, c := range conflicts {
			if c.Category == category {
				n++
			}
		}
		counts = append(counts, Count{Label: category.Title(), Value: n})
	}
	return counts
}
