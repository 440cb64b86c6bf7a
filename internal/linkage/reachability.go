package linkage

import (
	"github.com/mabhi256/jlinkcheck/internal/descriptor"
	"github.com/mabhi256/jlinkcheck/internal/model"
)

// EdgeKind is how a class was first reached
type EdgeKind int

const (
	EdgeSeed EdgeKind = iota
	EdgeParent
	EdgeLoad
	EdgeCall
	EdgeField
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeSeed:
		return "seed"
	case EdgeParent:
		return "extends"
	case EdgeLoad:
		return "loads"
	case EdgeCall:
		return "calls"
	case EdgeField:
		return "accesses"
	default:
		return "unknown"
	}
}

// Edge records the predecessor a class was first reached from
type Edge struct {
	From descriptor.ClassType
	Kind EdgeKind
}

// PathStep is one hop of a reachability path. The first step is always a seed.
type PathStep struct {
	Class descriptor.ClassType
	Via   EdgeKind
}

// ReachableSet is the closure computed by Reachable. It is immutable.
type ReachableSet struct {
	via   map[descriptor.ClassType]Edge
	order []descriptor.ClassType
}

type workItem struct {
	class *model.DeclaredClass
	edge  Edge
}

// Reachable computes every class transitively referenced from the seeds through
// parents, class literals, call owners and field owners. Targets missing from
// the world are not expanded.
func Reachable(seeds []*model.DeclaredClass, world *World) *ReachableSet {
	set := &ReachableSet{via: make(map[descriptor.ClassType]Edge)}

	queue := make([]workItem, 0, len(seeds))
	for _, s := range seeds {
		queue = append(queue, workItem{class: s, edge: Edge{Kind: EdgeSeed}})
	}

	enqueue := func(from descriptor.ClassType, target descriptor.ClassType, kind EdgeKind) {
		if _, seen := set.via[target]; seen {
			return
		}
		if c, ok := world.Class(target); ok {
			queue = append(queue, workItem{class: c, edge: Edge{From: from, Kind: kind}})
		}
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		name := item.class.Name()
		if _, seen := set.via[name]; seen {
			continue
		}
		set.via[name] = item.edge
		set.order = append(set.order, name)

		for _, p := range item.class.Parents() {
			enqueue(name, p, EdgeParent)
		}
		for _, l := range item.class.LoadedClasses() {
			enqueue(name, l, EdgeLoad)
		}
		for _, m := range item.class.Methods() {
			for _, call := range m.Calls {
				enqueue(name, call.Owner, EdgeCall)
			}
			for _, f := range m.Fields {
				enqueue(name, f.Owner, EdgeField)
			}
		}
	}

	return set
}

func (s *ReachableSet) Contains(name descriptor.ClassType) bool {
	_, ok := s.via[name]
	return ok
}

func (s *ReachableSet) Len() int {
	return len(s.order)
}

// Classes returns reachable classes in the order they were reached
func (s *ReachableSet) Classes() []descriptor.ClassType {
	return append([]descriptor.ClassType(nil), s.order...)
}

// PathTo explains why a class is reachable, from a seed down to the class.
// It returns nil for classes outside the set.
func (s *ReachableSet) PathTo(name descriptor.ClassType) []PathStep {
	edge, ok := s.via[name]
	if !ok {
		return nil
	}

	path := []PathStep{{Class: name, Via: edge.Kind}}
	for edge.Kind != EdgeSeed {
		prev := edge.From
		edge = s.via[prev]
		path = append(path, PathStep{Class: prev, Via: edge.Kind})
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
