package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500.0μs", FormatDuration(500*time.Microsecond))
	assert.Equal(t, "12.5ms", FormatDuration(12500*time.Microsecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "1m 30s", FormatDuration(90*time.Second))
	assert.Equal(t, "2h 5m", FormatDuration(2*time.Hour+5*time.Minute))
}

func TestEnumCycling(t *testing.T) {
	type tab int
	current := tab(0)
	CycleEnumPtr(&current, -1, tab(2))
	assert.Equal(t, tab(2), current)
	CycleEnumPtr(&current, 1, tab(2))
	assert.Equal(t, tab(0), current)

	assert.Equal(t, tab(0), GetNextEnum(tab(2), tab(2)))
	assert.Equal(t, tab(2), GetPrevEnum(tab(0), tab(2)))
	assert.Equal(t, tab(1), GetNextEnum(tab(0), tab(2)))

	CycleEnumPtr(&current, 5, tab(2))
	assert.Equal(t, tab(2), current)
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 5))
	assert.Equal(t, "ab...", TruncateString("abcdefgh", 5))
	assert.Equal(t, "..", TruncateString("abcdefgh", 2))

	lines := WrapText("Method not found: com.example.Service.call(int, java.lang.String)", 20)
	require.Len(t, lines, 3)
	assert.Equal(t, "Method not found:", lines[0])

	assert.Equal(t, []string{""}, WrapText("   ", 20))
}

func TestCompleteFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jar", "b.JAR", "c.txt", ".hidden.jar"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "lib"), 0o755))

	complete := CompleteFilesByExtension(".jar", ".class")
	got, directive := complete(&cobra.Command{}, nil, dir+"/")
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.jar"),
		filepath.Join(dir, "b.JAR"),
		filepath.Join(dir, "lib") + "/",
	}, got)
}
