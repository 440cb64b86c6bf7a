package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jlinkcheck/internal/descriptor"
	"github.com/mabhi256/jlinkcheck/internal/linkage"
	"github.com/mabhi256/jlinkcheck/internal/model"
)

var mainMethod = descriptor.NewMethod("main",
	descriptor.Void, []descriptor.Type{descriptor.NewArrayType(descriptor.MustClassName("java.lang.String"), 1)}, true)

func missingClass(usedBy, from, target string) linkage.Conflict {
	return linkage.Conflict{
		Category: linkage.ClassNotFound,
		Dependency: linkage.Dependency{
			FromClass:   descriptor.MustClassName(from),
			FromMethod:  mainMethod,
			Line:        7,
			TargetClass: descriptor.MustClassName(target),
		},
		UsedBy:   usedBy,
		ExistsIn: model.UnknownArtifactName,
		Reason:   "Class not found: " + target,
	}
}

func missingMethod(usedBy, from, target string) linkage.Conflict {
	m := descriptor.NewMethod("foo", descriptor.Int, []descriptor.Type{descriptor.Long}, false)
	return linkage.Conflict{
		Category: linkage.MethodSignatureNotFound,
		Dependency: linkage.Dependency{
			FromClass:    descriptor.MustClassName(from),
			FromMethod:   mainMethod,
			TargetClass:  descriptor.MustClassName(target),
			TargetMethod: &m,
		},
		UsedBy:   usedBy,
		ExistsIn: "dep.jar",
		Reason:   "Method not found: " + target + ".foo(long)",
	}
}

func missingField(usedBy, from, target string) linkage.Conflict {
	f := descriptor.NewField("count", descriptor.Int)
	return linkage.Conflict{
		Category: linkage.FieldNotFound,
		Dependency: linkage.Dependency{
			FromClass:   descriptor.MustClassName(from),
			FromMethod:  mainMethod,
			Line:        9,
			TargetClass: descriptor.MustClassName(target),
			TargetField: &f,
		},
		UsedBy:   usedBy,
		ExistsIn: "dep.jar",
		Reason:   "Field not found: " + target + ".count (int)",
	}
}

func sampleConflicts() []linkage.Conflict {
	return []linkage.Conflict{
		missingMethod("b.jar", "com.b.Caller", "com.dep.Api"),
		missingClass("b.jar", "com.b.Caller", "com.gone.Missing"),
		missingClass("a.jar", "com.a.Zed", "com.gone.Missing"),
		missingClass("a.jar", "com.a.Alpha", "com.gone.Other"),
		missingField("a.jar", "com.a.Alpha", "com.dep.Api"),
	}
}

func TestFilter(t *testing.T) {
	conflicts := []linkage.Conflict{
		missingClass("app", "com.shop.web.Controller", "org.gone.Lib"),
		missingClass("app", "com.shop.generated.Stub", "org.gone.Lib"),
		missingClass("app", "org.vendor.Util", "sun.misc.Unsafe"),
		missingClass("app", "Default", "org.gone.Lib"),
	}

	t.Run("empty keeps everything", func(t *testing.T) {
		assert.Equal(t, conflicts, Filter{}.Apply(conflicts))
	})

	t.Run("ignore source with subpackages", func(t *testing.T) {
		f := Filter{IgnoreSource: []string{"com.shop"}, IncludeSubpackages: true}
		kept := f.Apply(conflicts)
		require.Len(t, kept, 2)
		assert.Equal(t, "org.vendor.Util", kept[0].Dependency.FromClass.Name())
		assert.Equal(t, "Default", kept[1].Dependency.FromClass.Name())
	})

	t.Run("exact package match only", func(t *testing.T) {
		f := Filter{IgnoreSource: []string{"com.shop"}}
		assert.Len(t, f.Apply(conflicts), 4)

		f = Filter{IgnoreSource: []string{"com.shop.generated."}}
		assert.Len(t, f.Apply(conflicts), 3)
	})

	t.Run("ignore destination", func(t *testing.T) {
		f := Filter{IgnoreDestination: []string{"sun.misc"}}
		kept := f.Apply(conflicts)
		assert.Len(t, kept, 3)
		for _, c := range kept {
			assert.NotEqual(t, "sun.misc.Unsafe", c.Dependency.TargetClass.Name())
		}
	})

	t.Run("target source", func(t *testing.T) {
		f := Filter{
			TargetSource:       []string{"com.shop"},
			IgnoreSource:       []string{"com.shop.generated"},
			IncludeSubpackages: true,
		}
		kept := f.Apply(conflicts)
		require.Len(t, kept, 1)
		assert.Equal(t, "com.shop.web.Controller", kept[0].Dependency.FromClass.Name())
	})
}

func TestGroup(t *testing.T) {
	groups := Group(sampleConflicts())
	require.Len(t, groups, 3)

	classes := groups[0]
	assert.Equal(t, linkage.ClassNotFound, classes.Category)
	assert.Equal(t, 3, classes.Count)
	require.Len(t, classes.Artifacts, 2)
	assert.Equal(t, "a.jar", classes.Artifacts[0].Artifact)
	assert.Equal(t, 2, classes.Artifacts[0].Count)
	require.Len(t, classes.Artifacts[0].Classes, 2)
	assert.Equal(t, "com.a.Alpha", classes.Artifacts[0].Classes[0].Class.Name())
	assert.Equal(t, "com.a.Zed", classes.Artifacts[0].Classes[1].Class.Name())
	assert.Equal(t, "b.jar", classes.Artifacts[1].Artifact)

	assert.Equal(t, linkage.MethodSignatureNotFound, groups[1].Category)
	assert.Equal(t, linkage.FieldNotFound, groups[2].Category)

	assert.Empty(t, Group(nil))
	only := Group([]linkage.Conflict{missingField("a.jar", "com.a.A", "com.dep.Api")})
	require.Len(t, only, 1)
	assert.Equal(t, linkage.FieldNotFound, only[0].Category)
}

func TestCounts(t *testing.T) {
	conflicts := sampleConflicts()

	assert.Equal(t, []Count{{"a.jar", 3}, {"b.jar", 2}}, CountByArtifact(conflicts))
	assert.Equal(t, []Count{
		{"Class not found", 3},
		{"Method not found", 1},
		{"Field not found", 1},
	}, CountByCategory(conflicts))
	assert.Equal(t, []Count{
		{"Class not found", 0},
		{"Method not found", 0},
		{"Field not found", 0},
	}, CountByCategory(nil))
}

func TestWriteText(t *testing.T) {
	summary := Summary{
		Project:          "shop",
		Checked:          []string{"shop", "a.jar", "b.jar"},
		KnownClasses:     120,
		ReachableClasses: 40,
		CheckedClasses:   12,
		Filtered:         2,
		Elapsed:          1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, summary, sampleConflicts()))
	out := buf.String()

	assert.Contains(t, out, "🔍 Linkage Check: shop")
	assert.Contains(t, out, "Artifacts: 3 checked  |  Classes: 120 known, 40 reachable, 12 checked  |  Duration: 1.5s")
	assert.Contains(t, out, "🔴 CLASS NOT FOUND (3)")
	assert.Contains(t, out, "⚠️ FIELD NOT FOUND (1)")
	assert.Contains(t, out, "📦 a.jar")
	assert.Contains(t, out, "✗ Class not found: com.gone.Other")
	assert.Contains(t, out, "from com.a.Alpha.main(java.lang.String[]):7")
	assert.Contains(t, out, "target class in dep.jar")
	assert.Contains(t, out, "🎯 5 conflicts (2 hidden by package filters)")

	// a.jar sorts before b.jar inside a category
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("com.a.Alpha")), bytes.Index(buf.Bytes(), []byte("com.b.Caller")))
}

func TestWriteText_NoConflicts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Summary{Project: "shop"}, nil))
	assert.Contains(t, buf.String(), "✅ No linkage conflicts found")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestWriteJSON(t *testing.T) {
	summary := Summary{Project: "shop", KnownClasses: 10, Elapsed: 2 * time.Second}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, summary, sampleConflicts()))

	var doc struct {
		Project string `json:"project"`
		Summary struct {
			Artifacts     []string `json:"artifacts"`
			KnownClasses  int      `json:"knownClasses"`
			Conflicts     int      `json:"conflicts"`
			ElapsedMillis int64    `json:"elapsedMillis"`
		} `json:"summary"`
		Conflicts []map[string]any `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "shop", doc.Project)
	assert.NotNil(t, doc.Summary.Artifacts)
	assert.Equal(t, 10, doc.Summary.KnownClasses)
	assert.Equal(t, 5, doc.Summary.Conflicts)
	assert.Equal(t, int64(2000), doc.Summary.ElapsedMillis)
	require.Len(t, doc.Conflicts, 5)

	method := doc.Conflicts[0]
	assert.Equal(t, "method-not-found", method["category"])
	assert.Equal(t, "com.dep.Api", method["targetClass"])
	assert.Equal(t, "int foo(long)", method["targetMethod"])
	assert.NotContains(t, method, "line")
	assert.NotContains(t, method, "targetField")

	field := doc.Conflicts[4]
	assert.Equal(t, "field-not-found", field["category"])
	assert.Equal(t, "count", field["targetField"])
	assert.Equal(t, "int", field["targetFieldType"])
	assert.Equal(t, float64(9), field["line"])
	assert.Equal(t, "main(java.lang.String[])", field["sourceMethod"])

	assert.Equal(t, model.UnknownArtifactName, doc.Conflicts[1]["existsIn"])
}
