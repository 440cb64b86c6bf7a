package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mabhi256/jlinkcheck/internal/descriptor"
	"github.com/mabhi256/jlinkcheck/internal/model"
)

// Bump whenever the decoded shape or the cached layout changes
const cacheSchema = 1

// DiskCache stores decoded archives keyed by content hash. Entries hold
// descriptor strings and are re-interned through the caller's cache on load.
type DiskCache struct {
	Dir string
}

// DefaultCacheDir is the per-user cache location
func DefaultCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache dir: %w", err)
	}
	return filepath.Join(base, "jlinkcheck"), nil
}

func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &DiskCache{Dir: dir}, nil
}

type cachedArtifact struct {
	Schema  int           `msgpack:"schema"`
	Classes []cachedClass `msgpack:"classes"`
}

type cachedClass struct {
	Name    string         `msgpack:"name"`
	Parents []string       `msgpack:"parents,omitempty"`
	Loads   []string       `msgpack:"loads,omitempty"`
	Fields  []cachedField  `msgpack:"fields,omitempty"`
	Methods []cachedMethod `msgpack:"methods,omitempty"`
}

type cachedField struct {
	Name string `msgpack:"name"`
	Type string `msgpack:"type"`
}

type cachedMethod struct {
	Name   string         `msgpack:"name"`
	Desc   string         `msgpack:"desc"`
	Static bool           `msgpack:"static,omitempty"`
	Line   int            `msgpack:"line,omitempty"`
	Calls  []cachedCall   `msgpack:"calls,omitempty"`
	Fields []cachedAccess `msgpack:"fields,omitempty"`
}

type cachedCall struct {
	Owner  string   `msgpack:"owner"`
	Name   string   `msgpack:"name"`
	Desc   string   `msgpack:"desc"`
	Static bool     `msgpack:"static,omitempty"`
	Line   int      `msgpack:"line,omitempty"`
	Caught []string `msgpack:"caught,omitempty"`
}

type cachedAccess struct {
	Owner  string   `msgpack:"owner"`
	Name   string   `msgpack:"name"`
	Type   string   `msgpack:"type"`
	Static bool     `msgpack:"static,omitempty"`
	Line   int      `msgpack:"line,omitempty"`
	Caught []string `msgpack:"caught,omitempty"`
}

// Key hashes the archive contents together with the settings that affect decoding
func (c *DiskCache) Key(archive string, release int) (string, error) {
	f, err := os.Open(archive)
	if err != nil {
		return "", fmt.Errorf("failed to open archive for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	fmt.Fprintf(h, "jlinkcheck/%d/%d\n", cacheSchema, release)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash archive: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.Dir, key[:2], key+".msgpack")
}

// Get returns ok=false on a miss. A corrupt or outdated entry is an error.
func (c *DiskCache) Get(key string, cache *descriptor.Cache) ([]*model.DeclaredClass, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry cachedArtifact
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	if entry.Schema != cacheSchema {
		return nil, false, fmt.Errorf("cache entry has schema %d, want %d", entry.Schema, cacheSchema)
	}

	classes := make([]*model.DeclaredClass, 0, len(entry.Classes))
	for _, cc := range entry.Classes {
		class, err := cc.restore(cache)
		if err != nil {
			return nil, false, fmt.Errorf("failed to restore %s: %w", cc.Name, err)
		}
		classes = append(classes, class)
	}
	return classes, true, nil
}

// Put writes through a temporary file so readers never see a partial entry
func (c *DiskCache) Put(key string, classes []*model.DeclaredClass) error {
	entry := cachedArtifact{Schema: cacheSchema, Classes: make([]cachedClass, 0, len(classes))}
	for _, class := range classes {
		entry.Classes = append(entry.Classes, snapshot(class))
	}

	data, err := msgpack.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	target := c.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}
	return nil
}

func snapshot(class *model.DeclaredClass) cachedClass {
	cc := cachedClass{
		Name:    class.Name().Name(),
		Parents: classNames(class.Parents()),
		Loads:   classNames(class.LoadedClasses()),
	}
	for _, f := range class.Fields() {
		cc.Fields = append(cc.Fields, cachedField{Name: f.Name(), Type: f.Type().Raw()})
	}

	for _, m := range class.Methods() {
		cm := cachedMethod{
			Name:   m.Descriptor.Name(),
			Desc:   m.Descriptor.RawDescriptor(),
			Static: m.IsStatic(),
			Line:   m.Line,
		}
		for _, call := range m.Calls {
			cm.Calls = append(cm.Calls, cachedCall{
				Owner:  call.Owner.Name(),
				Name:   call.Method.Name(),
				Desc:   call.Method.RawDescriptor(),
				Static: call.IsStatic(),
				Line:   call.Line,
				Caught: classNames(call.CaughtExceptions),
			})
		}
		for _, access := range m.Fields {
			cm.Fields = append(cm.Fields, cachedAccess{
				Owner:  access.Owner.Name(),
				Name:   access.Field.Name(),
				Type:   access.Field.Type().Raw(),
				Static: access.IsStatic,
				Line:   access.Line,
				Caught: classNames(access.CaughtExceptions),
			})
		}
		cc.Methods = append(cc.Methods, cm)
	}
	return cc
}

func (cc cachedClass) restore(cache *descriptor.Cache) (*model.DeclaredClass, error) {
	name, err := cache.ParseClassName(cc.Name)
	if err != nil {
		return nil, err
	}
	b := model.NewClassBuilder(name)

	parents, err := parseClasses(cache, cc.Parents)
	if err != nil {
		return nil, err
	}
	loads, err := parseClasses(cache, cc.Loads)
	if err != nil {
		return nil, err
	}
	b.Parents(parents...).Loads(loads...)

	for _, f := range cc.Fields {
		field, err := cache.ParseField(f.Name, f.Type)
		if err != nil {
			return nil, err
		}
		b.Fields(field)
	}

	for _, cm := range cc.Methods {
		m, err := cm.restore(cache)
		if err != nil {
			return nil, err
		}
		if err := b.AddMethod(m); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func (cm cachedMethod) restore(cache *descriptor.Cache) (*model.DeclaredMethod, error) {
	desc, err := cache.ParseMethod(cm.Desc, cm.Name, cm.Static)
	if err != nil {
		return nil, err
	}
	m := &model.DeclaredMethod{Descriptor: desc, Line: cm.Line}

	for _, c := range cm.Calls {
		owner, err := cache.ParseClassName(c.Owner)
		if err != nil {
			return nil, err
		}
		method, err := cache.ParseMethod(c.Desc, c.Name, c.Static)
		if err != nil {
			return nil, err
		}
		caught, err := parseClasses(cache, c.Caught)
		if err != nil {
			return nil, err
		}
		m.Calls = append(m.Calls, model.CalledMethod{Owner: owner, Method: method, Line: c.Line, CaughtExceptions: caught})
	}

	for _, a := range cm.Fields {
		owner, err := cache.ParseClassName(a.Owner)
		if err != nil {
			return nil, err
		}
		field, err := cache.ParseField(a.Name, a.Type)
		if err != nil {
			return nil, err
		}
		caught, err := parseClasses(cache, a.Caught)
		if err != nil {
			return nil, err
		}
		m.Fields = append(m.Fields, model.AccessedField{Owner: owner, Field: field, IsStatic: a.Static, Line: a.Line, CaughtExceptions: caught})
	}
	return m, nil
}

func classNames(classes []descriptor.ClassType) []string {
	if len(classes) == 0 {
		return nil
	}
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.Name()
	}
	return names
}

func parseClasses(cache *descriptor.Cache, names []string) ([]descriptor.ClassType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	classes := make([]descriptor.ClassType, len(names))
	for i, name := range names {
		c, err := cache.ParseClassName(name)
		if err != nil {
			return nil, err
		}
		classes[i] = c
	}
	return classes, nil
}
