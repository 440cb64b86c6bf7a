package linkage

import (
	"github.com/mabhi256/jlinkcheck/internal/descriptor"
	"github.com/mabhi256/jlinkcheck/internal/model"
)

// World is the canonical view of every known class, as a classloader would
// see it when searching the artifacts in order and stopping at the first hit
type World struct {
	classes  map[descriptor.ClassType]*model.DeclaredClass
	sourceOf map[descriptor.ClassType]string
}

// BuildWorld merges artifacts in order. The first artifact to declare a class
// supplies it; later declarations are shadowed.
func BuildWorld(artifacts []*model.Artifact) *World {
	size := 0
	for _, a := range artifacts {
		size += a.Len()
	}

	w := &World{
		classes:  make(map[descriptor.ClassType]*model.DeclaredClass, size),
		sourceOf: make(map[descriptor.ClassType]string, size),
	}
	for _, a := range artifacts {
		for _, c := range a.Classes() {
			if _, exists := w.classes[c.Name()]; exists {
				continue
			}
			w.classes[c.Name()] = c
			w.sourceOf[c.Name()] = a.Name()
		}
	}
	return w
}

func (w *World) Class(name descriptor.ClassType) (*model.DeclaredClass, bool) {
	c, ok := w.classes[name]
	return c, ok
}

// SourceOf names the artifact that supplies the class
func (w *World) SourceOf(name descriptor.ClassType) (string, bool) {
	s, ok := w.sourceOf[name]
	return s, ok
}

// SourceOrUnknown is SourceOf with the unknown-artifact sentinel for missing classes
func (w *World) SourceOrUnknown(name descriptor.ClassType) string {
	if s, ok := w.sourceOf[name]; ok {
		return s
	}
	return model.UnknownArtifactName
}

func (w *World) Len() int {
	return len(w.classes)
}
