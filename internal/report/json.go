package report

import (
	"encoding/json"
	"io"

	"github.com/mabhi256/jlinkcheck/internal/linkage"
)

type jsonReport struct {
	Project   string         `json:"project"`
	Summary   jsonSummary    `json:"summary"`
	Conflicts []jsonConflict `json:"conflicts"`
}

type jsonSummary struct {
	Artifacts        []string `json:"artifacts"`
	KnownClasses     int      `json:"knownClasses"`
	ReachableClasses int      `json:"reachableClasses"`
	CheckedClasses   int      `json:"checkedClasses"`
	Conflicts        int      `json:"conflicts"`
	Filtered         int      `json:"filtered"`
	ElapsedMillis    int64    `json:"elapsedMillis"`
}

type jsonConflict struct {
	Category        linkage.Category `json:"category"`
	Reason          string           `json:"reason"`
	UsedBy          string           `json:"usedBy"`
	ExistsIn        string           `json:"existsIn"`
	SourceClass     string           `json:"sourceClass"`
	SourceMethod    string           `json:"sourceMethod"`
	Line            int              `json:"line,omitempty"`
	TargetClass     string           `json:"targetClass"`
	TargetMethod    string           `json:"targetMethod,omitempty"`
	TargetField     string           `json:"targetField,omitempty"`
	TargetFieldType string           `json:"targetFieldType,omitempty"`
}

// WriteJSON emits the report as one indented JSON document
func WriteJSON(w io.Writer, summary Summary, conflicts []linkage.Conflict) error {
	checked := summary.Checked
	if checked == nil {
		checked = []string{}
	}

	doc := jsonReport{
		Project: summary.Project,
		Summary: jsonSummary{
			Artifacts:        checked,
			KnownClasses:     summary.KnownClasses,
			ReachableClasses: summary.ReachableClasses,
			CheckedClasses:   summary.CheckedClasses,
			Conflicts:        len(conflicts),
			Filtered:         summary.Filtered,
			ElapsedMillis:    summary.Elapsed.Milliseconds(),
		},
		Conflicts: make([]jsonConflict, 0, len(conflicts)),
	}

	for _, c := range conflicts {
		dep := c.Dependency
		jc := jsonConflict{
			Category:     c.Category,
			Reason:       c.Reason,
			UsedBy:       c.UsedBy,
			ExistsIn:     c.ExistsIn,
			SourceClass:  dep.FromClass.Name(),
			SourceMethod: dep.FromMethod.PrettyWithoutReturn(),
			Line:         dep.Line,
			TargetClass:  dep.TargetClass.Name(),
		}
		if dep.TargetMethod != nil {
			jc.TargetMethod = dep.TargetMethod.String()
		}
		if dep.TargetField != nil {
			jc.TargetField = dep.TargetField.Name()
			jc.TargetFieldType = dep.TargetField.Type().String()
		}
		doc.Conflicts = append(doc.Conflicts, jc)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
