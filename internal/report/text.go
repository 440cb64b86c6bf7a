package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mabhi256/jlinkcheck/internal/linkage"
	"github.com/mabhi256/jlinkcheck/utils"
)

// Severity maps a category onto the shared severity levels used for icons and styles
func Severity(c linkage.Category) string {
	switch c {
	case linkage.ClassNotFound, linkage.MethodSignatureNotFound:
		return "critical"
	default:
		return "warning"
	}
}

// WriteText prints the human readable report
func WriteText(w io.Writer, summary Summary, conflicts []linkage.Conflict) error {
	p := &printer{w: w}

	p.printf("🔍 Linkage Check: %s\n", summary.Project)
	p.printf("Artifacts: %d checked  |  Classes: %d known, %d reachable, %d checked  |  Duration: %s\n",
		len(summary.Checked), summary.KnownClasses, summary.ReachableClasses, summary.CheckedClasses,
		utils.FormatDuration(summary.Elapsed))
	p.println(strings.Repeat("═", 65))

	if len(conflicts) == 0 {
		p.printf("\n%s No linkage conflicts found\n", utils.GetSeverityIcon("good"))
		if summary.Filtered > 0 {
			p.printf("   %d conflicts hidden by package filters\n", summary.Filtered)
		}
		return p.err
	}

	for _, group := range Group(conflicts) {
		p.printf("\n%s %s (%d)\n", utils.GetSeverityIcon(Severity(group.Category)),
			strings.ToUpper(group.Category.Title()), group.Count)
		p.println(strings.Repeat("─", 35))

		for _, ag := range group.Artifacts {
			p.printf("📦 %s\n", ag.Artifact)
			for _, cg := range ag.Classes {
				p.printf("   %s\n", cg.Class)
				for _, c := range cg.Conflicts {
					p.printf("     ✗ %s\n", c.Reason)
					p.printf("       from %s\n", c.Dependency.Source())
					if c.Category != linkage.ClassNotFound {
						p.printf("       target class in %s\n", c.ExistsIn)
					}
				}
			}
		}
	}

	p.printf("\n🎯 %d conflicts", len(conflicts))
	if summary.Filtered > 0 {
		p.printf(" (%d hidden by package filters)", summary.Filtered)
	}
	p.println()
	return p.err
}

// printer remembers the first write error
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, args...)
}
