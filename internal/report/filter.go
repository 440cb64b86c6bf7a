package report

import (
	"strings"

	"github.com/mabhi256/jlinkcheck/internal/linkage"
)

// Filter drops conflicts by the package of the referencing or referenced class.
// Package names use dots ("com.example").
type Filter struct {
	IgnoreSource      []string // drop conflicts raised from these packages
	IgnoreDestination []string // drop conflicts about classes in these packages
	TargetSource      []string // when set, keep only conflicts raised from these packages

	// Match subpackages of every listed package as well
	IncludeSubpackages bool
}

func (f Filter) IsEmpty() bool {
	return len(f.IgnoreSource) == 0 && len(f.IgnoreDestination) == 0 && len(f.TargetSource) == 0
}

func (f Filter) Apply(conflicts []linkage.Conflict) []linkage.Conflict {
	if f.IsEmpty() {
		return conflicts
	}

	kept := make([]linkage.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		if f.Keep(c) {
			kept = append(kept, c)
		}
	}
	return kept
}

func (f Filter) Keep(c linkage.Conflict) bool {
	source := c.Dependency.FromClass.Package()
	target := c.Dependency.TargetClass.Package()

	if len(f.TargetSource) > 0 && !f.matchesAny(source, f.TargetSource) {
		return false
	}
	if f.matchesAny(source, f.IgnoreSource) {
		return false
	}
	return !f.matchesAny(target, f.IgnoreDestination)
}

func (f Filter) matchesAny(pkg string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.TrimSuffix(strings.TrimSpace(p), ".")
		if pkg == p {
			return true
		}
		if f.IncludeSubpackages && strings.HasPrefix(pkg, p+".") {
			return true
		}
	}
	return false
}
