package linkage

import (
	"fmt"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/mabhi256/jlinkcheck/internal/descriptor"
	"github.com/mabhi256/jlinkcheck/internal/model"
)

var log = commonlog.GetLogger("jlinkcheck.linkage")

// Code guarded by these handlers already copes with the failure at run time
var (
	classNotFoundGuards = []descriptor.ClassType{
		descriptor.MustClassName("java.lang.NoClassDefFoundError"),
		descriptor.MustClassName("java.lang.ClassNotFoundException"),
	}
	noSuchMethodGuards = []descriptor.ClassType{
		descriptor.MustClassName("java.lang.NoSuchMethodError"),
	}
)

// Result is everything one verification run produced
type Result struct {
	Conflicts []Conflict
	World     *World
	Reachable *ReachableSet
	Checked   int // classes validated
	Elapsed   time.Duration
}

// Checker validates artifacts. The zero value checks sequentially.
type Checker struct {
	// Jobs > 1 validates that many artifacts concurrently; the output order is unchanged
	Jobs int
}

// Check is the sequential entry point
func Check(project *model.Artifact, toCheck, all []*model.Artifact) []Conflict {
	return (&Checker{}).Run(project, toCheck, all).Conflicts
}

// Run builds the world from all, restricts it to what project reaches and
// validates every reachable class declared in toCheck. Conflicts are ordered by
// artifact (argument order), class, method, then calls before field accesses.
func (c *Checker) Run(project *model.Artifact, toCheck, all []*model.Artifact) *Result {
	start := time.Now()

	world := BuildWorld(all)
	reachable := Reachable(project.Classes(), world)
	log.Debugf("world has %d classes, %d reachable from %s", world.Len(), reachable.Len(), project.Name())

	perArtifact := make([][]Conflict, len(toCheck))
	checked := make([]int, len(toCheck))

	var g errgroup.Group
	if c.Jobs > 0 {
		g.SetLimit(c.Jobs)
	} else {
		g.SetLimit(1)
	}
	for i, artifact := range toCheck {
		g.Go(func() error {
			v := &verifier{world: world, artifact: artifact}
			for _, class := range artifact.Classes() {
				if !reachable.Contains(class.Name()) {
					continue
				}
				v.checkClass(class)
				checked[i]++
			}
			perArtifact[i] = v.conflicts
			log.Debugf("%s: %d reachable classes checked, %d conflicts", artifact.Name(), checked[i], len(v.conflicts))
			return nil
		})
	}
	// Workers never fail
	_ = g.Wait()

	result := &Result{World: world, Reachable: reachable}
	for i := range toCheck {
		result.Conflicts = append(result.Conflicts, perArtifact[i]...)
		result.Checked += checked[i]
	}
	result.Elapsed = time.Since(start)
	return result
}

// verifier collects the conflicts of one artifact
type verifier struct {
	world     *World
	artifact  *model.Artifact
	conflicts []Conflict
}

func (v *verifier) checkClass(class *model.DeclaredClass) {
	for _, m := range class.Methods() {
		for _, call := range m.Calls {
			v.checkCall(class, m, call)
		}
		for _, field := range m.Fields {
			v.checkField(class, m, field)
		}
	}
}

func (v *verifier) checkCall(class *model.DeclaredClass, m *model.DeclaredMethod, call model.CalledMethod) {
	target := call.Method
	dep := Dependency{
		FromClass:    class.Name(),
		FromMethod:   m.Descriptor,
		Line:         call.Line,
		TargetClass:  call.Owner,
		TargetMethod: &target,
	}

	owner, ok := v.world.Class(call.Owner)
	if !ok {
		if call.Catches(classNotFoundGuards...) {
			return
		}
		v.report(ClassNotFound, dep, fmt.Sprintf("Class not found: %s", call.Owner))
		return
	}

	// The key includes the return type, so covariant overrides do not match
	if !v.methodMissing(owner, call.Method, make(map[descriptor.ClassType]bool)) {
		return
	}
	if call.Catches(noSuchMethodGuards...) {
		return
	}
	v.report(MethodSignatureNotFound, dep, "Method not found: "+dep.Target())
}

// Field accesses are never suppressed by catch blocks
func (v *verifier) checkField(class *model.DeclaredClass, m *model.DeclaredMethod, access model.AccessedField) {
	target := access.Field
	dep := Dependency{
		FromClass:   class.Name(),
		FromMethod:  m.Descriptor,
		Line:        access.Line,
		TargetClass: access.Owner,
		TargetField: &target,
	}

	owner, ok := v.world.Class(access.Owner)
	if !ok {
		v.report(ClassNotFound, dep, fmt.Sprintf("Class not found: %s", access.Owner))
		return
	}

	if v.fieldMissing(owner, access.Field, make(map[descriptor.ClassType]bool)) {
		v.report(FieldNotFound, dep, fmt.Sprintf("Field not found: %s (%s)", dep.Target(), access.Field.Type()))
	}
}

// methodMissing searches the class and then its parents depth first. The
// static flag is only compared on the first class declaring the descriptor.
// Unresolvable parents count as not declaring it.
func (v *verifier) methodMissing(class *model.DeclaredClass, m descriptor.Method, visited map[descriptor.ClassType]bool) bool {
	if visited[class.Name()] {
		return true
	}
	visited[class.Name()] = true

	if declared, ok := class.Method(m); ok {
		return declared.IsStatic() != m.IsStatic()
	}

	for _, p := range class.Parents() {
		parent, ok := v.world.Class(p)
		if !ok {
			continue
		}
		if !v.methodMissing(parent, m, visited) {
			return false
		}
	}
	return true
}

func (v *verifier) fieldMissing(class *model.DeclaredClass, f descriptor.Field, visited map[descriptor.ClassType]bool) bool {
	if visited[class.Name()] {
		return true
	}
	visited[class.Name()] = true

	if class.HasField(f) {
		return false
	}

	for _, p := range class.Parents() {
		parent, ok := v.world.Class(p)
		if !ok {
			continue
		}
		if !v.fieldMissing(parent, f, visited) {
			return false
		}
	}
	return true
}

func (v *verifier) report(category Category, dep Dependency, reason string) {
	v.conflicts = append(v.conflicts, Conflict{
		Category:   category,
		Dependency: dep,
		UsedBy:     v.artifact.Name(),
		ExistsIn:   v.world.SourceOrUnknown(dep.TargetClass),
		Reason:     reason,
	})
}
