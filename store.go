package weave

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"
)

// FragmentKind identifies one of the three flavors of fragment a page can
// pull in.
type FragmentKind int

const (
	// LayoutFragment is the wrapping markup selected by @layout.
	LayoutFragment FragmentKind = iota + 1

	// ImportFragment is a partial inlined by @import.
	ImportFragment

	// ComponentFragment is the markup invoked by @component.
	ComponentFragment
)

func (k FragmentKind) String() string {
	switch k {
	case LayoutFragment:
		return "layout"
	case ImportFragment:
		return "import"
	case ComponentFragment:
		return "component"
	}
	return "unknown"
}

// FragmentStore is the only thing a Renderer needs from the outside world: a
// way to turn a fragment's name into its text.
//
// When no fragment of that name exists, implementations should return an
// error wrapping ErrFragmentNotFound. A FragmentStore used by concurrent
// renders must be safe for concurrent use.
type FragmentStore interface {
	// Layout returns the text of the named layout.
	Layout(ctx context.Context, name string) (string, error)

	// Import returns the text of the named import.
	Import(ctx context.Context, name string) (string, error)

	// Component returns the text of the named component.
	Component(ctx context.Context, name string) (string, error)
}

func fetchFragment(ctx context.Context, store FragmentStore, kind FragmentKind, name string) (string, error) {
	switch kind {
	case LayoutFragment:
		return store.Layout(ctx, name)
	case ImportFragment:
		return store.Import(ctx, name)
	case ComponentFragment:
		return store.Component(ctx, name)
	}
	return "", fmt.Errorf("unknown fragment kind %d", kind)
}

var _ FragmentStore = &FSStore{}
var _ FragmentStore = MapStore{}
var _ FragmentStore = &CachedStore{}

// FSStore is a FragmentStore that reads fragments from an fs.FS. A fragment
// named "nav" of kind ImportFragment is read from "_imports/nav.html" by
// default. Names may contain slashes to reach into subdirectories.
//
// Each call reads the file again; wrap an FSStore in a CachedStore to avoid
// that.
type FSStore struct {
	fsys fs.FS

	// LayoutDir, ImportDir and ComponentDir are the directories, relative
	// to the root of the fs.FS, holding each kind of fragment.
	LayoutDir    string
	ImportDir    string
	ComponentDir string

	// Extension is appended to a fragment's name to get its filename.
	Extension string
}

// NewFSStore returns an FSStore reading from fsys, using the default
// directory layout.
func NewFSStore(fsys fs.FS) *FSStore {
	return &FSStore{
		fsys:         fsys,
		LayoutDir:    "_layouts",
		ImportDir:    "_imports",
		ComponentDir: "_components",
		Extension:    ".html",
	}
}

// Layout implements FragmentStore.
func (s *FSStore) Layout(ctx context.Context, name string) (string, error) {
	return s.read(ctx, LayoutFragment, name)
}

// Import implements FragmentStore.
func (s *FSStore) Import(ctx context.Context, name string) (string, error) {
	return s.read(ctx, ImportFragment, name)
}

// Component implements FragmentStore.
func (s *FSStore) Component(ctx context.Context, name string) (string, error) {
	return s.read(ctx, ComponentFragment, name)
}

// Path returns the path, within the FSStore's fs.FS, of the fragment of kind
// called name. The file doesn't need to exist.
func (s *FSStore) Path(kind FragmentKind, name string) string {
	dir := ""
	switch kind {
	case LayoutFragment:
		dir = s.LayoutDir
	case ImportFragment:
		dir = s.ImportDir
	case ComponentFragment:
		dir = s.ComponentDir
	}
	return path.Join(dir, name+s.Extension)
}

func (s *FSStore) read(ctx context.Context, kind FragmentKind, name string) (string, error) {
	file := s.Path(kind, name)
	if !fs.ValidPath(file) {
		return "", fmt.Errorf("invalid %s path %q: %w", kind, file, ErrFragmentNotFound)
	}
	contents, err := fs.ReadFile(s.fsys, file)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("error reading %s %q: %w", kind, file, ErrFragmentNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("error reading %s %q: %w", kind, file, err)
	}
	logger(ctx).DebugContext(ctx, "read fragment", "kind", kind.String(), "file", file)
	return string(contents), nil
}

// MapStore is an in-memory FragmentStore, holding the text of each fragment
// keyed by kind and then by name.
type MapStore map[FragmentKind]map[string]string

// Layout implements FragmentStore.
func (m MapStore) Layout(_ context.Context, name string) (string, error) {
	return m.get(LayoutFragment, name)
}

// Import implements FragmentStore.
func (m MapStore) Import(_ context.Context, name string) (string, error) {
	return m.get(ImportFragment, name)
}

// Component implements FragmentStore.
func (m MapStore) Component(_ context.Context, name string) (string, error) {
	return m.get(ComponentFragment, name)
}

func (m MapStore) get(kind FragmentKind, name string) (string, error) {
	text, ok := m[kind][name]
	if !ok {
		return "", fmt.Errorf("no %s named %q: %w", kind, name, ErrFragmentNotFound)
	}
	return text, nil
}

type cacheKey struct {
	kind FragmentKind
	name string
}

// CachedStore wraps another FragmentStore, keeping the text of every fragment
// it successfully loads so it's only read once. Failed lookups are not
// cached. A CachedStore must be instantiated through NewCachedStore, its
// empty value is not usable.
//
// Fragments never expire, so a CachedStore should live no longer than the
// set of fragments it reads from stays unchanged; a single site build, for
// example.
type CachedStore struct {
	store FragmentStore

	cache   map[cacheKey]string
	cacheMu sync.RWMutex
}

// NewCachedStore returns a CachedStore that is ready to be used.
func NewCachedStore(store FragmentStore) *CachedStore {
	return &CachedStore{
		store: store,
		cache: map[cacheKey]string{},
	}
}

// Layout implements FragmentStore.
//
// It can safely be used by multiple goroutines.
func (s *CachedStore) Layout(ctx context.Context, name string) (string, error) {
	return s.get(ctx, LayoutFragment, name)
}

// Import implements FragmentStore.
//
// It can safely be used by multiple goroutines.
func (s *CachedStore) Import(ctx context.Context, name string) (string, error) {
	return s.get(ctx, ImportFragment, name)
}

// Component implements FragmentStore.
//
// It can safely be used by multiple goroutines.
func (s *CachedStore) Component(ctx context.Context, name string) (string, error) {
	return s.get(ctx, ComponentFragment, name)
}

func (s *CachedStore) get(ctx context.Context, kind FragmentKind, name string) (string, error) {
	key := cacheKey{kind: kind, name: name}
	s.cacheMu.RLock()
	text, ok := s.cache[key]
	s.cacheMu.RUnlock()
	if ok {
		return text, nil
	}
	text, err := fetchFragment(ctx, s.store, kind, name)
	if err != nil {
		return "", err
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache[key] = text
	return text, nil
}
