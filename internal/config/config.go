package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jlinkcheck.config")

const DefaultFileName = "jlinkcheck.toml"

// Environment overrides, read from the process or from a .env next to the config file
const (
	EnvJobs     = "JLINKCHECK_JOBS"
	EnvCacheDir = "JLINKCHECK_CACHE_DIR"
	EnvRelease  = "JLINKCHECK_RELEASE"
	EnvOutput   = "JLINKCHECK_OUTPUT"
	EnvNoCache  = "JLINKCHECK_NO_CACHE"
)

var OutputFormats = []string{"cli", "json", "tui"}

type Config struct {
	Project   ProjectConfig   `toml:"project"`
	Classpath ClasspathConfig `toml:"classpath"`
	Check     CheckConfig     `toml:"check"`
	Runtime   RuntimeConfig   `toml:"runtime"`

	// Directory relative paths are resolved against
	baseDir string
}

type ProjectConfig struct {
	Name    string `toml:"name"`
	Classes string `toml:"classes"` // directory or jar with the project's own classes
}

// ClasspathConfig lists artifacts in search order
type ClasspathConfig struct {
	Runtime  []string `toml:"runtime"`  // checked and known
	Provided []string `toml:"provided"` // known only
	Platform []string `toml:"platform"` // known only, searched last
}

type CheckConfig struct {
	IgnoreSourcePackages      []string `toml:"ignore-source-packages"`
	IgnoreDestinationPackages []string `toml:"ignore-destination-packages"`
	TargetSourcePackages      []string `toml:"target-source-packages"`
	IncludeSubpackages        bool     `toml:"include-subpackages"`
	FailOnConflicts           bool     `toml:"fail-on-conflicts"`
}

type RuntimeConfig struct {
	Jobs     int    `toml:"jobs"`
	Release  int    `toml:"release"` // 0 accepts classes of any version
	CacheDir string `toml:"cache-dir"`
	NoCache  bool   `toml:"no-cache"`
	Output   string `toml:"output"`
}

func Default() *Config {
	return &Config{
		Check: CheckConfig{
			IncludeSubpackages: true,
		},
		Runtime: RuntimeConfig{
			Jobs:   runtime.NumCPU(),
			Output: "cli",
		},
		baseDir: ".",
	}
}

// Load applies defaults, then the TOML file (skipped when path is empty), then
// the .env file beside it and finally the process environment
func Load(path string) (*Config, error) {
	cfg := Default()

	envDir := "."
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		for _, key := range md.Undecoded() {
			log.Warningf("unknown config key %q in %s", key.String(), path)
		}
		cfg.baseDir = filepath.Dir(path)
		envDir = cfg.baseDir
	}

	env, err := readDotEnv(filepath.Join(envDir, ".env"))
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := env[key]
		return v, ok
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readDotEnv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return env, nil
}

// ApplyEnv overrides runtime settings from the given lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvJobs); ok {
		jobs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvJobs, v, err)
		}
		c.Runtime.Jobs = jobs
	}
	if v, ok := lookup(EnvRelease); ok {
		release, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRelease, v, err)
		}
		c.Runtime.Release = release
	}
	if v, ok := lookup(EnvNoCache); ok {
		noCache, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvNoCache, v, err)
		}
		c.Runtime.NoCache = noCache
	}
	if v, ok := lookup(EnvCacheDir); ok {
		c.Runtime.CacheDir = v
	}
	if v, ok := lookup(EnvOutput); ok {
		c.Runtime.Output = strings.TrimSpace(v)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Project.Classes == "" {
		return errors.New("project classes are not set (project.classes or --project)")
	}
	if !slices.Contains(OutputFormats, c.Runtime.Output) {
		return fmt.Errorf("invalid output format: %s. Valid options: %v", c.Runtime.Output, OutputFormats)
	}
	if c.Runtime.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Runtime.Jobs)
	}
	if c.Runtime.Release != 0 && c.Runtime.Release < 8 {
		return fmt.Errorf("release must be 8 or newer, got %d", c.Runtime.Release)
	}
	return nil
}

// ProjectName falls back to the base name of the classes location
func (c *Config) ProjectName() string {
	if c.Project.Name != "" {
		return c.Project.Name
	}
	return filepath.Base(c.Project.Classes)
}

func (c *Config) ProjectPath() string {
	return c.resolve(c.Project.Classes)
}

func (c *Config) RuntimePaths() []string  { return c.resolveAll(c.Classpath.Runtime) }
func (c *Config) ProvidedPaths() []string { return c.resolveAll(c.Classpath.Provided) }
func (c *Config) PlatformPaths() []string { return c.resolveAll(c.Classpath.Platform) }

// CacheDir is empty when caching is disabled
func (c *Config) CacheDir() string {
	if c.Runtime.NoCache || c.Runtime.CacheDir == "" {
		return ""
	}
	return c.resolve(c.Runtime.CacheDir)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

func (c *Config) resolveAll(paths []string) []string {
	resolved := make([]string, len(paths))
	for i, p := range paths {
		resolved[i] = c.resolve(p)
	}
	return resolved
}

// KnownPaths lists every artifact in classloader search order:
// project, runtime, provided, then platform
func (c *Config) KnownPaths() []string {
	paths := []string{c.ProjectPath()}
	paths = append(paths, c.RuntimePaths()...)
	paths = append(paths, c.ProvidedPaths()...)
	return append(paths, c.PlatformPaths()...)
}
