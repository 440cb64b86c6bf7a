package artifact

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jlinkcheck/internal/bytecode"
	"github.com/mabhi256/jlinkcheck/internal/bytecode/classtest"
	"github.com/mabhi256/jlinkcheck/internal/descriptor"
)

type jarEntry struct {
	name string
	data []byte
}

func writeJar(t *testing.T, path string, entries ...jarEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func classWithField(name, field string, major uint16) []byte {
	return classtest.New(name, "java/lang/Object").
		Version(major).
		Field(classtest.AccPublic, field, "I").
		Bytes()
}

func newLoader(release int) *Loader {
	return &Loader{
		Decoder: bytecode.NewDecoder(descriptor.NewCache(0)),
		Jobs:    4,
		Release: release,
	}
}

func TestLoad_MultiReleaseJar(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "lib-1.0.jar")
	writeJar(t, jar,
		jarEntry{"META-INF/MANIFEST.MF", []byte("Manifest-Version: 1.0\r\nMulti-Release: true\r\n")},
		jarEntry{"com/lib/Api.class", classWithField("com/lib/Api", "base", 52)},
		jarEntry{"com/lib/Util.class", classWithField("com/lib/Util", "base", 52)},
		jarEntry{"META-INF/versions/21/com/lib/Api.class", classWithField("com/lib/Api", "v21", 65)},
		jarEntry{"META-INF/versions/11/com/lib/Api.class", classWithField("com/lib/Api", "v11", 55)},
		jarEntry{"META-INF/versions/9/module-info.class", []byte("not decoded")},
		jarEntry{"com/lib/package-info.class", []byte("not decoded")},
		jarEntry{"com/lib/Future.class", classWithField("com/lib/Future", "x", 65)},
		jarEntry{"com/lib/readme.txt", []byte("hello")},
	)

	a, err := newLoader(17).Load(context.Background(), jar)
	require.NoError(t, err)

	assert.Equal(t, "lib-1.0.jar", a.Name())
	assert.Equal(t, 2, a.Len(), "too-new classes are skipped")

	api, ok := a.Class(descriptor.MustClassName("com.lib.Api"))
	require.True(t, ok)
	assert.True(t, api.HasField(descriptor.NewField("v11", descriptor.Int)), "highest applicable layer wins")

	_, ok = a.Class(descriptor.MustClassName("com.lib.Future"))
	assert.False(t, ok)
}

func TestLoad_MultiReleaseJarWithoutRelease(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "lib-1.0.jar")
	writeJar(t, jar,
		jarEntry{"META-INF/MANIFEST.MF", []byte("Manifest-Version: 1.0\r\nMulti-Release: true\r\n")},
		jarEntry{"com/lib/Api.class", classWithField("com/lib/Api", "base", 52)},
		jarEntry{"META-INF/versions/21/com/lib/Api.class", classWithField("com/lib/Api", "v21", 65)},
	)

	a, err := newLoader(0).Load(context.Background(), jar)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Len())

	api, ok := a.Class(descriptor.MustClassName("com.lib.Api"))
	require.True(t, ok)
	assert.True(t, api.HasField(descriptor.NewField("base", descriptor.Int)), "release 0 keeps the base layer")
	assert.False(t, api.HasField(descriptor.NewField("v21", descriptor.Int)))
}

func TestLoad_VersionsIgnoredWithoutManifestFlag(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "plain.jar")
	writeJar(t, jar,
		jarEntry{"com/lib/Api.class", classWithField("com/lib/Api", "base", 52)},
		jarEntry{"META-INF/versions/11/com/lib/Api.class", classWithField("com/lib/Api", "v11", 55)},
	)

	a, err := newLoader(17).Load(context.Background(), jar)
	require.NoError(t, err)

	api, ok := a.Class(descriptor.MustClassName("com.lib.Api"))
	require.True(t, ok)
	assert.True(t, api.HasField(descriptor.NewField("base", descriptor.Int)))
}

func TestLoad_Directory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "classes")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "com", "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "com", "app", "Main.class"), classWithField("com/app/Main", "x", 61), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "com", "app", "notes.md"), []byte("# notes"), 0o644))

	a, err := newLoader(0).Load(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "classes", a.Name())
	assert.Equal(t, 1, a.Len())
}

func TestLoad_SingleClassFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "Main.class")
	require.NoError(t, os.WriteFile(p, classWithField("com/app/Main", "x", 52), 0o644))

	a, err := newLoader(8).LoadNamed(context.Background(), "app", p)
	require.NoError(t, err)
	assert.Equal(t, "app", a.Name())
	assert.Equal(t, []descriptor.ClassType{descriptor.MustClassName("com.app.Main")}, a.ClassNames())
}

func TestLoad_DecodeErrorCarriesEntry(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "broken.jar")
	writeJar(t, jar, jarEntry{"com/lib/Broken.class", []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0}})

	_, err := newLoader(0).Load(context.Background(), jar)
	require.Error(t, err)
	assert.ErrorContains(t, err, "com/lib/Broken.class")

	var decodeErr *bytecode.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestLoadAll_KeepsOrder(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "b.jar")
	second := filepath.Join(dir, "a.jar")
	writeJar(t, first, jarEntry{"B.class", classWithField("B", "x", 52)})
	writeJar(t, second, jarEntry{"A.class", classWithField("A", "x", 52)})

	artifacts, err := newLoader(0).LoadAll(context.Background(), []string{first, second})
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "b.jar", artifacts[0].Name())
	assert.Equal(t, "a.jar", artifacts[1].Name())

	_, err = newLoader(0).LoadAll(context.Background(), []string{filepath.Join(dir, "missing.jar")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseVersionLayer(t *testing.T) {
	v, ok := parseVersionLayer("META-INF/versions/17/com/Foo.class")
	assert.True(t, ok)
	assert.Equal(t, 17, v)

	for _, p := range []string{"META-INF/versions/x/Foo.class", "META-INF/versions/8/Foo.class", "META-INF/versions/11"} {
		_, ok := parseVersionLayer(p)
		assert.False(t, ok, p)
	}
}

func TestMajorVersionFor(t *testing.T) {
	assert.Equal(t, uint16(52), MajorVersionFor(8))
	assert.Equal(t, uint16(61), MajorVersionFor(17))
}
