package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jlinkcheck/internal/bytecode"
	"github.com/mabhi256/jlinkcheck/internal/bytecode/classtest"
	"github.com/mabhi256/jlinkcheck/internal/config"
)

// fixture lays out a project directory calling into lib.jar
func fixture(t *testing.T) (projectDir, libJar string) {
	t.Helper()
	dir := t.TempDir()

	projectDir = filepath.Join(dir, "classes")
	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, "com", "app"), 0o755))
	main := classtest.New("com/app/Main", "java/lang/Object").
		Method(classtest.AccPublic|classtest.AccStatic, "main", "([Ljava/lang/String;)V", func(c *classtest.Code) {
			c.Line(5).InvokeStatic("com/lib/Util", "help", "()V")
			c.Line(6).InvokeStatic("com/lib/Util", "absent", "()V")
			c.Line(7).GetStatic("com/lib/Util", "count", "I").Pop()
			c.Line(8).InvokeStatic("com/gone/Missing", "run", "()V")
			c.Return()
		}).
		Bytes()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "com", "app", "Main.class"), main, 0o644))

	libJar = filepath.Join(dir, "lib.jar")
	util := classtest.New("com/lib/Util", "java/lang/Object").
		Method(classtest.AccPublic|classtest.AccStatic, "help", "()V", func(c *classtest.Code) { c.Return() }).
		Bytes()

	f, err := os.Create(libJar)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("com/lib/Util.class")
	require.NoError(t, err)
	_, err = w.Write(util)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	return projectDir, libJar
}

func testConfig(projectDir string, runtime ...string) *config.Config {
	cfg := config.Default()
	cfg.Project.Name = "app"
	cfg.Project.Classes = projectDir
	cfg.Classpath.Runtime = runtime
	cfg.Runtime.NoCache = true
	cfg.Runtime.Jobs = 2
	return cfg
}

func TestRunCheck_JSON(t *testing.T) {
	projectDir, libJar := fixture(t)
	cfg := testConfig(projectDir, libJar)
	cfg.Runtime.Output = "json"

	var out bytes.Buffer
	require.NoError(t, runCheck(context.Background(), cfg, &out))

	var doc struct {
		Project string `json:"project"`
		Summary struct {
			Artifacts      []string `json:"artifacts"`
			CheckedClasses int      `json:"checkedClasses"`
		} `json:"summary"`
		Conflicts []struct {
			Category    string `json:"category"`
			TargetClass string `json:"targetClass"`
			Line        int    `json:"line"`
			UsedBy      string `json:"usedBy"`
		} `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))

	assert.Equal(t, "app", doc.Project)
	assert.Equal(t, []string{"app", "lib.jar"}, doc.Summary.Artifacts)
	assert.Equal(t, 2, doc.Summary.CheckedClasses)

	require.Len(t, doc.Conflicts, 3)
	categories := map[string]string{}
	for _, c := range doc.Conflicts {
		categories[c.Category] = c.TargetClass
		assert.Equal(t, "app", c.UsedBy)
	}
	assert.Equal(t, map[string]string{
		"method-not-found": "com.lib.Util",
		"field-not-found":  "com.lib.Util",
		"class-not-found":  "com.gone.Missing",
	}, categories)
}

func TestRunCheck_FiltersAndExitStatus(t *testing.T) {
	projectDir, libJar := fixture(t)

	cfg := testConfig(projectDir, libJar)
	cfg.Check.FailOnConflicts = true

	var out bytes.Buffer
	err := runCheck(context.Background(), cfg, &out)
	var exit *exitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, conflictsExitCode, exit.code)
	assert.Contains(t, out.String(), "🎯 3 conflicts")

	cfg.Check.IgnoreSourcePackages = []string{"com.app"}
	out.Reset()
	require.NoError(t, runCheck(context.Background(), cfg, &out))
	assert.Contains(t, out.String(), "No linkage conflicts found")
	assert.Contains(t, out.String(), "3 conflicts hidden by package filters")
}

func TestRunCheck_MissingArtifact(t *testing.T) {
	projectDir, _ := fixture(t)
	cfg := testConfig(projectDir, filepath.Join(t.TempDir(), "nope.jar"))

	err := runCheck(context.Background(), cfg, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, errors.As(err, new(*exitError)))
}

func TestRunCheck_ProvidedOnlyResolves(t *testing.T) {
	projectDir, libJar := fixture(t)
	cfg := testConfig(projectDir)
	cfg.Classpath.Provided = []string{libJar}
	cfg.Runtime.Output = "json"

	var out bytes.Buffer
	require.NoError(t, runCheck(context.Background(), cfg, &out))
	assert.Contains(t, out.String(), `"artifacts": [
      "app"
    ]`)
	assert.Contains(t, out.String(), `"conflicts": 3`)
}

func TestSplitPathLists(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	got := splitPathLists([]string{"a.jar" + string(os.PathListSeparator) + "b.jar", "/abs/c.jar", ""})
	assert.Equal(t, []string{filepath.Join(wd, "a.jar"), filepath.Join(wd, "b.jar"), "/abs/c.jar"}, got)
}

func TestPrintClass(t *testing.T) {
	class, err := bytecode.NewDecoder(nil).Decode(classtest.New("com/app/Main", "java/lang/Object").
		Field(classtest.AccPublic, "name", "Ljava/lang/String;").
		Method(classtest.AccPublic|classtest.AccStatic, "main", "([Ljava/lang/String;)V", func(c *classtest.Code) {
			start := c.PC()
			c.Line(5).InvokeStatic("com/lib/Util", "help", "()V")
			end := c.PC()
			c.Return()
			c.Try(start, end, c.PC(), "java/lang/NoSuchMethodError")
			c.Pop().Return()
		}).
		Bytes())
	require.NoError(t, err)

	var out bytes.Buffer
	printClass(&out, class)
	text := out.String()

	assert.Contains(t, text, "com.app.Main")
	assert.Contains(t, text, "extends: java.lang.Object")
	assert.Contains(t, text, "field    java.lang.String name")
	assert.Contains(t, text, "static void main(java.lang.String[])")
	assert.Contains(t, text, "calls static com.lib.Util.help()")
	assert.Contains(t, text, "line 5, catches java.lang.NoSuchMethodError")
}

func TestCheckFlags_JobsDefault(t *testing.T) {
	jobs := checkCmd.Flags().Lookup("jobs")
	require.NotNil(t, jobs)
	assert.Equal(t, strconv.Itoa(runtime.NumCPU()), jobs.DefValue)
	assert.Equal(t, runtime.NumCPU(), config.Default().Runtime.Jobs)
}

func TestRunCheck_ProvidedAndPlatformNotChecked(t *testing.T) {
	projectDir, libJar := fixture(t)
	cfg := testConfig(projectDir)
	cfg.Classpath.Platform = []string{libJar}
	cfg.Runtime.Output = "json"

	var out bytes.Buffer
	require.NoError(t, runCheck(context.Background(), cfg, &out))

	var doc struct {
		Summary struct {
			Artifacts    []string `json:"artifacts"`
			KnownClasses int      `json:"knownClasses"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, []string{"app"}, doc.Summary.Artifacts)
	assert.Equal(t, 2, doc.Summary.KnownClasses)
}
