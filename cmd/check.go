package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/mabhi256/jlinkcheck/internal/artifact"
	"github.com/mabhi256/jlinkcheck/internal/bytecode"
	"github.com/mabhi256/jlinkcheck/internal/config"
	"github.com/mabhi256/jlinkcheck/internal/linkage"
	"github.com/mabhi256/jlinkcheck/internal/model"
	"github.com/mabhi256/jlinkcheck/internal/report"
	"github.com/mabhi256/jlinkcheck/internal/tui"
	"github.com/mabhi256/jlinkcheck/utils"
)

var log = commonlog.GetLogger("jlinkcheck.cmd")

// Exit status when conflicts are found and fail-on-conflicts is set
const conflictsExitCode = 2

var artifactExtensions = []string{".jar", ".zip", ".class"}

var checkOpts struct {
	configPath      string
	project         string
	classpath       []string
	provided        []string
	platform        []string
	output          string
	jobs            int
	release         int
	failOnConflicts bool
	noCache         bool
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a project against its classpath for linkage conflicts",
	Long: `Loads the project classes and every classpath artifact, walks the classes
reachable from the project and reports references that do not resolve.

Settings come from jlinkcheck.toml (or --config), then .env and JLINKCHECK_*
environment variables, then flags.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("output") && !slices.Contains(config.OutputFormats, checkOpts.output) {
			return fmt.Errorf("invalid output format: %s. Valid options: %v", checkOpts.output, config.OutputFormats)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadCheckConfig(cmd)
		if err != nil {
			return err
		}
		return runCheck(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func loadCheckConfig(cmd *cobra.Command) (*config.Config, error) {
	path := checkOpts.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultFileName); err == nil {
			path = config.DefaultFileName
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("project") {
		cfg.Project.Classes = absPath(checkOpts.project)
	}
	if flags.Changed("classpath") {
		cfg.Classpath.Runtime = splitPathLists(checkOpts.classpath)
	}
	if flags.Changed("provided") {
		cfg.Classpath.Provided = splitPathLists(checkOpts.provided)
	}
	if flags.Changed("platform") {
		cfg.Classpath.Platform = splitPathLists(checkOpts.platform)
	}
	if flags.Changed("output") {
		cfg.Runtime.Output = checkOpts.output
	}
	if flags.Changed("jobs") {
		cfg.Runtime.Jobs = checkOpts.jobs
	}
	if flags.Changed("release") {
		cfg.Runtime.Release = checkOpts.release
	}
	if flags.Changed("fail-on-conflicts") {
		cfg.Check.FailOnConflicts = checkOpts.failOnConflicts
	}
	if flags.Changed("no-cache") {
		cfg.Runtime.NoCache = checkOpts.noCache
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitPathLists accepts repeated flags as well as "a.jar:b.jar" lists.
// Flag paths are relative to the working directory, not the config file.
func splitPathLists(values []string) []string {
	var paths []string
	for _, v := range values {
		for _, p := range filepath.SplitList(v) {
			if p != "" {
				paths = append(paths, absPath(p))
			}
		}
	}
	return paths
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func newLoader(cfg *config.Config) *artifact.Loader {
	loader := &artifact.Loader{
		Decoder: bytecode.NewDecoder(nil),
		Jobs:    cfg.Runtime.Jobs,
		Release: cfg.Runtime.Release,
	}
	if cfg.Runtime.NoCache {
		return loader
	}

	dir := cfg.CacheDir()
	if dir == "" {
		var err error
		if dir, err = artifact.DefaultCacheDir(); err != nil {
			log.Warningf("artifact cache disabled: %s", err)
			return loader
		}
	}
	cache, err := artifact.NewDiskCache(dir)
	if err != nil {
		log.Warningf("artifact cache disabled: %s", err)
		return loader
	}
	loader.Cache = cache
	return loader
}

func runCheck(ctx context.Context, cfg *config.Config, out io.Writer) error {
	loader := newLoader(cfg)

	known := cfg.KnownPaths()
	project, err := loader.LoadNamed(ctx, cfg.ProjectName(), known[0])
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	libraries, err := loader.LoadAll(ctx, known[1:])
	if err != nil {
		return fmt.Errorf("failed to load classpath: %w", err)
	}

	// Runtime artifacts come first in KnownPaths and are the only libraries checked
	all := append([]*model.Artifact{project}, libraries...)
	checked := 1 + len(cfg.RuntimePaths())
	toCheck := all[:checked:checked]
	log.Infof("loaded %d artifacts, checking %d", len(all), len(toCheck))

	checker := &linkage.Checker{Jobs: cfg.Runtime.Jobs}
	result := checker.Run(project, toCheck, all)

	filter := report.Filter{
		IgnoreSource:       cfg.Check.IgnoreSourcePackages,
		IgnoreDestination:  cfg.Check.IgnoreDestinationPackages,
		TargetSource:       cfg.Check.TargetSourcePackages,
		IncludeSubpackages: cfg.Check.IncludeSubpackages,
	}
	conflicts := filter.Apply(result.Conflicts)

	names := make([]string, len(toCheck))
	for i, a := range toCheck {
		names[i] = a.Name()
	}
	summary := report.NewSummary(project.Name(), names, result)
	summary.Filtered = len(result.Conflicts) - len(conflicts)

	switch cfg.Runtime.Output {
	case "json":
		err = report.WriteJSON(out, summary, conflicts)
	case "tui":
		err = tui.Run(tui.Input{Summary: summary, Conflicts: conflicts, Reachable: result.Reachable})
	default:
		err = report.WriteText(out, summary, conflicts)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.Check.FailOnConflicts && len(conflicts) > 0 {
		return &exitError{code: conflictsExitCode}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)

	flags := checkCmd.Flags()
	flags.StringVarP(&checkOpts.configPath, "config", "c", "", "Config file (default ./"+config.DefaultFileName+" when present)")
	flags.StringVarP(&checkOpts.project, "project", "p", "", "Project classes directory or jar")
	flags.StringSliceVar(&checkOpts.classpath, "classpath", nil, "Runtime artifacts to check, repeatable or path-list separated")
	flags.StringSliceVar(&checkOpts.provided, "provided", nil, "Artifacts present at runtime but not checked")
	flags.StringSliceVar(&checkOpts.platform, "platform", nil, "Platform artifacts, searched last")
	flags.StringVarP(&checkOpts.output, "output", "o", "cli", "Output format")
	flags.IntVarP(&checkOpts.jobs, "jobs", "j", runtime.NumCPU(), "Parallel decode and check workers")
	flags.IntVar(&checkOpts.release, "release", 0, "Java release the code runs on (0 accepts any classfile version)")
	flags.BoolVar(&checkOpts.failOnConflicts, "fail-on-conflicts", false, fmt.Sprintf("Exit with status %d when conflicts are found", conflictsExitCode))
	flags.BoolVar(&checkOpts.noCache, "no-cache", false, "Do not read or write the artifact cache")

	checkCmd.RegisterFlagCompletionFunc("config", utils.CompleteFilesByExtension(".toml"))
	for _, name := range []string{"project", "classpath", "provided", "platform"} {
		checkCmd.RegisterFlagCompletionFunc(name, utils.CompleteFilesByExtension(artifactExtensions...))
	}
	checkCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return config.OutputFormats, cobra.ShellCompDirectiveNoFileComp
	})
}
