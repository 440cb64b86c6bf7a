package model

import (
	"slices"

	"github.com/mabhi256/jlinkcheck/internal/descriptor"
)

// UnknownArtifactName is reported as the supplier of classes no artifact provides
const UnknownArtifactName = "<unknown>"

// Artifact is a named, immutable set of declared classes
type Artifact struct {
	name    string
	classes map[descriptor.ClassType]*DeclaredClass
}

// NewArtifact indexes classes by name. When two entries share a name the later one wins,
// which is how multi-release layering overrides lower versions.
func NewArtifact(name string, classes []*DeclaredClass) *Artifact {
	index := make(map[descriptor.ClassType]*DeclaredClass, len(classes))
	for _, c := range classes {
		index[c.Name()] = c
	}
	return &Artifact{name: name, classes: index}
}

// UnknownArtifact is the sentinel supplier for unresolved classes
func UnknownArtifact() *Artifact {
	return NewArtifact(UnknownArtifactName, nil)
}

func (a *Artifact) Name() string { return a.name }
func (a *Artifact) Len() int     { return len(a.classes) }

func (a *Artifact) Class(name descriptor.ClassType) (*DeclaredClass, bool) {
	c, ok := a.classes[name]
	return c, ok
}

// ClassNames returns the declared class names sorted
func (a *Artifact) ClassNames() []descriptor.ClassType {
	names := make([]descriptor.ClassType, 0, len(a.classes))
	for name := range a.classes {
		names = append(names, name)
	}
	slices.SortFunc(names, compareClass)
	return names
}

// Classes returns declared classes sorted by name
func (a *Artifact) Classes() []*DeclaredClass {
	names := a.ClassNames()
	classes := make([]*DeclaredClass, len(names))
	for i, name := range names {
		classes[i] = a.classes[name]
	}
	return classes
}
