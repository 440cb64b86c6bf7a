package artifact

import (
	"archive/zip"
	"bufio"
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/mabhi256/jlinkcheck/internal/bytecode"
	"github.com/mabhi256/jlinkcheck/internal/model"
)

var log = commonlog.GetLogger("jlinkcheck.artifact")

const (
	versionsPrefix = "META-INF/versions/"
	manifestPath   = "META-INF/MANIFEST.MF"

	// Classfile major version of Java 8; release N uses N + releaseOffset
	releaseOffset = 44
)

// MajorVersionFor maps a Java feature release (8, 11, 17, ...) to its classfile major version
func MajorVersionFor(release int) uint16 {
	return uint16(release + releaseOffset)
}

// Loader builds artifacts from jars, exploded directories and single classfiles
type Loader struct {
	Decoder *bytecode.Decoder

	// Optional, only consulted for archives
	Cache *DiskCache

	// Concurrent decodes per artifact; <= 0 means one
	Jobs int

	// Platform release the code will run on. Classes compiled for a newer
	// release are skipped and multi-release layers above it are ignored.
	// Zero accepts every classfile version and reads only the base layer.
	Release int
}

// classEntry is one classfile inside an artifact
type classEntry struct {
	path    string // slash separated, relative to the artifact root
	version int    // multi-release layer, 0 for the base layer
	open    func() ([]byte, error)
}

// Load reads the artifact at p, naming it after the file or directory
func (l *Loader) Load(ctx context.Context, p string) (*model.Artifact, error) {
	return l.LoadNamed(ctx, filepath.Base(p), p)
}

func (l *Loader) LoadNamed(ctx context.Context, name, p string) (*model.Artifact, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}

	switch {
	case info.IsDir():
		return l.loadDir(ctx, name, p)
	case strings.HasSuffix(p, ".class"):
		return l.loadClassFile(name, p)
	default:
		return l.loadArchive(ctx, name, p)
	}
}

// LoadAll loads every path, keeping their order
func (l *Loader) LoadAll(ctx context.Context, paths []string) ([]*model.Artifact, error) {
	artifacts := make([]*model.Artifact, 0, len(paths))
	for _, p := range paths {
		a, err := l.Load(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

func (l *Loader) loadClassFile(name, p string) (*model.Artifact, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read classfile: %w", err)
	}

	class, err := l.decode(p, data)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return model.NewArtifact(name, nil), nil
	}
	return model.NewArtifact(name, []*model.DeclaredClass{class}), nil
}

func (l *Loader) loadArchive(ctx context.Context, name, p string) (*model.Artifact, error) {
	var key string
	if l.Cache != nil {
		var err error
		if key, err = l.Cache.Key(p, l.Release); err != nil {
			return nil, err
		}
		classes, ok, err := l.Cache.Get(key, l.Decoder.Cache())
		if err != nil {
			log.Warningf("ignoring unreadable cache entry for %s: %v", p, err)
		} else if ok {
			log.Debugf("%s: %d classes from cache", name, len(classes))
			return model.NewArtifact(name, classes), nil
		}
	}

	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	multiRelease := false
	var entries []classEntry
	for _, f := range zr.File {
		if f.Name == manifestPath {
			if multiRelease, err = readMultiRelease(f.Open); err != nil {
				return nil, fmt.Errorf("failed to read manifest: %w", err)
			}
			continue
		}
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, classEntry{path: f.Name, open: zipOpener(f)})
	}

	classes, err := l.decodeEntries(ctx, l.selectEntries(entries, multiRelease))
	if err != nil {
		return nil, err
	}

	if l.Cache != nil {
		if err := l.Cache.Put(key, classes); err != nil {
			log.Warningf("failed to cache %s: %v", p, err)
		}
	}

	log.Debugf("%s: decoded %d classes", name, len(classes))
	return model.NewArtifact(name, classes), nil
}

func zipOpener(f *zip.File) func() ([]byte, error) {
	return func() ([]byte, error) {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
}

func (l *Loader) loadDir(ctx context.Context, name, root string) (*model.Artifact, error) {
	multiRelease := false
	var entries []classEntry

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if rel == manifestPath {
			multiRelease, err = readMultiRelease(func() (io.ReadCloser, error) { return os.Open(p) })
			return err
		}

		entries = append(entries, classEntry{
			path: rel,
			open: func() ([]byte, error) { return os.ReadFile(p) },
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	classes, err := l.decodeEntries(ctx, l.selectEntries(entries, multiRelease))
	if err != nil {
		return nil, err
	}

	log.Debugf("%s: decoded %d classes", name, len(classes))
	return model.NewArtifact(name, classes), nil
}

// selectEntries keeps classfiles, drops module and package descriptors and
// orders multi-release layers lowest first so higher layers override
func (l *Loader) selectEntries(entries []classEntry, multiRelease bool) []classEntry {
	selected := make([]classEntry, 0, len(entries))
	for _, e := range entries {
		if !strings.HasSuffix(e.path, ".class") {
			continue
		}
		base := path.Base(e.path)
		if base == "module-info.class" || base == "package-info.class" {
			continue
		}

		if strings.HasPrefix(e.path, versionsPrefix) {
			version, ok := parseVersionLayer(e.path)
			// Release 0 reads only the base layer
			if !ok || !multiRelease || l.Release <= 0 || version > l.Release {
				continue
			}
			e.version = version
		}
		selected = append(selected, e)
	}

	slices.SortStableFunc(selected, func(a, b classEntry) int {
		return cmp.Or(cmp.Compare(a.version, b.version), cmp.Compare(a.path, b.path))
	})
	return selected
}

// parseVersionLayer extracts N from META-INF/versions/N/...
func parseVersionLayer(p string) (int, bool) {
	rest := strings.TrimPrefix(p, versionsPrefix)
	dir, _, found := strings.Cut(rest, "/")
	if !found {
		return 0, false
	}
	version, err := strconv.Atoi(dir)
	if err != nil || version < 9 {
		return 0, false
	}
	return version, true
}

// decodeEntries decodes in parallel but returns classes in entry order
func (l *Loader) decodeEntries(ctx context.Context, entries []classEntry) ([]*model.DeclaredClass, error) {
	results := make([]*model.DeclaredClass, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(l.Jobs, 1))

	for i, e := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := e.open()
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", e.path, err)
			}
			class, err := l.decode(e.path, data)
			if err != nil {
				return err
			}
			results[i] = class
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	classes := make([]*model.DeclaredClass, 0, len(results))
	for _, c := range results {
		if c != nil {
			classes = append(classes, c)
		}
	}
	return classes, nil
}

// decode returns nil without error for classes targeting a newer platform
func (l *Loader) decode(p string, data []byte) (*model.DeclaredClass, error) {
	if l.Release > 0 {
		major, _, err := bytecode.PeekVersion(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if major > MajorVersionFor(l.Release) {
			log.Debugf("skipping %s: major version %d is newer than release %d", p, major, l.Release)
			return nil, nil
		}
	}

	class, err := l.Decoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return class, nil
}

// readMultiRelease reports whether a manifest declares "Multi-Release: true"
func readMultiRelease(open func() (io.ReadCloser, error)) (bool, error) {
	rc, err := open()
	if err != nil {
		return false, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return false, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if found && strings.EqualFold(strings.TrimSpace(key), "Multi-Release") {
			return strings.EqualFold(strings.TrimSpace(value), "true"), nil
		}
	}
	return false, scanner.Err()
}
