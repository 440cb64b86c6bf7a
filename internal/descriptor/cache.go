package descriptor

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds each of the interning tables
const DefaultCacheSize = 1 << 16

type methodCacheKey struct {
	raw    string
	name   string
	static bool
}

// Cache memoizes descriptor parsing. It is safe for concurrent use.
// Entries may be evicted; values are compared structurally so eviction only costs a re-parse.
type Cache struct {
	types   *lru.Cache[string, Type]
	classes *lru.Cache[string, ClassType]
	methods *lru.Cache[methodCacheKey, Method]
}

func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}

	// lru.New only fails for non-positive sizes
	types, _ := lru.New[string, Type](size)
	classes, _ := lru.New[string, ClassType](size)
	methods, _ := lru.New[methodCacheKey, Method](size)

	return &Cache{
		types:   types,
		classes: classes,
		methods: methods,
	}
}

// intern stores value under key unless another goroutine got there first,
// in which case the earlier value wins
func intern[K comparable, V any](c *lru.Cache[K, V], key K, value V) V {
	if previous, found, _ := c.PeekOrAdd(key, value); found {
		return previous
	}
	return value
}

// ParseType parses a field type descriptor such as "I", "Lfoo/Bar;" or "[[J"
func (c *Cache) ParseType(raw string) (Type, error) {
	if t, ok := c.types.Get(raw); ok {
		return t, nil
	}

	t, err := c.parseType(raw)
	if err != nil {
		return nil, err
	}
	return intern(c.types, raw, t), nil
}

func (c *Cache) parseType(raw string) (Type, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty type descriptor", ErrMalformedDescriptor)
	}

	dims := 0
	for dims < len(raw) && raw[dims] == '[' {
		dims++
	}

	if dims > 0 {
		elem, err := c.parseElement(raw[dims:], raw)
		if err != nil {
			return nil, err
		}
		return NewArrayType(elem, dims), nil
	}

	return c.parseElement(raw, raw)
}

// parseElement parses a single primitive code or an L...; class encoding
func (c *Cache) parseElement(s, whole string) (Type, error) {
	if len(s) == 1 {
		if p, ok := primitives[s[0]]; ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: unknown primitive %q", ErrMalformedDescriptor, whole)
	}

	if len(s) < 3 || s[0] != 'L' || s[len(s)-1] != ';' {
		return nil, fmt.Errorf("%w: %q", ErrMalformedDescriptor, whole)
	}

	name := s[1 : len(s)-1]
	for i := 0; i < len(name); i++ {
		if name[i] == ';' || name[i] == '[' {
			return nil, fmt.Errorf("%w: invalid class name in %q", ErrMalformedDescriptor, whole)
		}
	}

	return c.ParseClassName(name)
}

// ParseClassName normalizes a binary class name ("java/lang/String" or "java.lang.String")
func (c *Cache) ParseClassName(name string) (ClassType, error) {
	if ct, ok := c.classes.Get(name); ok {
		return ct, nil
	}

	ct, err := newClassType(name)
	if err != nil {
		return ClassType{}, err
	}
	return intern(c.classes, name, ct), nil
}

// ParseMethod decodes a method descriptor such as "(ILjava/lang/String;)V"
func (c *Cache) ParseMethod(raw, name string, isStatic bool) (Method, error) {
	key := methodCacheKey{raw: raw, name: name, static: isStatic}
	if m, ok := c.methods.Get(key); ok {
		return m, nil
	}

	m, err := c.parseMethod(raw, name, isStatic)
	if err != nil {
		return Method{}, err
	}
	return intern(c.methods, key, m), nil
}

func (c *Cache) parseMethod(raw, name string, isStatic bool) (Method, error) {
	if len(raw) < 3 || raw[0] != '(' {
		return Method{}, fmt.Errorf("%w: method descriptor %q", ErrMalformedDescriptor, raw)
	}

	var params []Type
	pos := 1
	for pos < len(raw) && raw[pos] != ')' {
		end, err := typeTokenEnd(raw, pos)
		if err != nil {
			return Method{}, err
		}

		param, err := c.ParseType(raw[pos:end])
		if err != nil {
			return Method{}, fmt.Errorf("parameter %d of %q: %w", len(params), raw, err)
		}
		params = append(params, param)
		pos = end
	}

	if pos >= len(raw) {
		return Method{}, fmt.Errorf("%w: unterminated parameter list in %q", ErrMalformedDescriptor, raw)
	}

	retRaw := raw[pos+1:]
	var ret Type
	if retRaw == "V" {
		ret = Void
	} else {
		var err error
		if ret, err = c.ParseType(retRaw); err != nil {
			return Method{}, fmt.Errorf("return type of %q: %w", raw, err)
		}
	}

	return NewMethod(name, ret, params, isStatic), nil
}

// ParseField decodes a field's type descriptor and pairs it with the name
func (c *Cache) ParseField(name, rawType string) (Field, error) {
	t, err := c.ParseType(rawType)
	if err != nil {
		return Field{}, fmt.Errorf("field %s: %w", name, err)
	}
	return NewField(name, t), nil
}

// typeTokenEnd returns the index just past the field type starting at pos
func typeTokenEnd(raw string, pos int) (int, error) {
	i := pos
	for i < len(raw) && raw[i] == '[' {
		i++
	}
	if i >= len(raw) {
		return 0, fmt.Errorf("%w: truncated type in %q", ErrMalformedDescriptor, raw)
	}

	if raw[i] != 'L' {
		return i + 1, nil
	}

	for j := i + 1; j < len(raw); j++ {
		if raw[j] == ';' {
			return j + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: unterminated class type in %q", ErrMalformedDescriptor, raw)
}
