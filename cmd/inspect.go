package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mabhi256/jlinkcheck/internal/artifact"
	"github.com/mabhi256/jlinkcheck/internal/bytecode"
	"github.com/mabhi256/jlinkcheck/internal/descriptor"
	"github.com/mabhi256/jlinkcheck/internal/model"
	"github.com/mabhi256/jlinkcheck/utils"
)

var inspectClass string

var (
	classColor  = color.New(color.FgCyan, color.Bold)
	methodColor = color.New(color.FgYellow)
	mutedColor  = color.New(color.FgHiBlack)
)

var inspectCmd = &cobra.Command{
	Use:               "inspect [artifact]",
	Short:             "Print the decoded shape of classes in a jar, directory or classfile",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: utils.CompleteFilesByExtension(artifactExtensions...),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := &artifact.Loader{Decoder: bytecode.NewDecoder(nil), Jobs: 1}
		a, err := loader.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		classes := a.Classes()
		if inspectClass != "" {
			name, err := descriptor.NewCache(0).ParseClassName(inspectClass)
			if err != nil {
				return fmt.Errorf("invalid class name %q: %w", inspectClass, err)
			}
			class, ok := a.Class(name)
			if !ok {
				return fmt.Errorf("class %s not found in %s", name, a.Name())
			}
			classes = []*model.DeclaredClass{class}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "📦 %s: %d classes\n", a.Name(), a.Len())
		for _, class := range classes {
			printClass(out, class)
		}
		return nil
	},
}

func printClass(out io.Writer, class *model.DeclaredClass) {
	fmt.Fprintf(out, "\n📄 %s\n", classColor.Sprint(class.Name()))
	if parents := class.Parents(); len(parents) > 0 {
		fmt.Fprintf(out, "   extends: %s\n", joinClasses(parents))
	}
	if loaded := class.LoadedClasses(); len(loaded) > 0 {
		fmt.Fprintf(out, "   loads:   %s\n", joinClasses(loaded))
	}
	for _, f := range class.Fields() {
		fmt.Fprintf(out, "   field    %s\n", f)
	}

	for _, m := range class.Methods() {
		line := ""
		if m.Line > 0 {
			line = mutedColor.Sprintf("  (line %d)", m.Line)
		}
		fmt.Fprintf(out, "   method   %s%s\n", methodColor.Sprint(m.Descriptor), line)

		for _, call := range m.Calls {
			kind := "calls"
			if call.IsStatic() {
				kind = "calls static"
			}
			fmt.Fprintf(out, "     → %s %s%s\n", kind, call, siteSuffix(call.Line, call.CaughtExceptions))
		}
		for _, access := range m.Fields {
			kind := "field"
			if access.IsStatic {
				kind = "static field"
			}
			fmt.Fprintf(out, "     → %s %s%s\n", kind, access, siteSuffix(access.Line, access.CaughtExceptions))
		}
	}
}

func siteSuffix(line int, caught []descriptor.ClassType) string {
	var parts []string
	if line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", line))
	}
	if len(caught) > 0 {
		parts = append(parts, "catches "+joinClasses(caught))
	}
	if len(parts) == 0 {
		return ""
	}
	return mutedColor.Sprintf(" [%s]", strings.Join(parts, ", "))
}

func joinClasses(classes []descriptor.ClassType) string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.Name()
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectClass, "class", "", "Only print this class (dotted or slashed name)")
}
