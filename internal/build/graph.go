package build

import (
	"context"
	"slices"
	"sync"

	"impractical.co/weave"
)

// graph records which fragment files each page used in its last render. It's
// used to find the pages a changed fragment affects.
type graph struct {
	mu sync.Mutex

	// edgesFrom holds graph edges, keyed by the page doing the pointing.
	//
	// if page "index.html" used "_layouts/base.html", edgesFrom will have a
	// key of "index.html" with a value of ["_layouts/base.html"].
	edgesFrom map[string]map[string]struct{}

	// edgesTo holds the same edges keyed by the fragment file being
	// pointed to.
	//
	// if page "index.html" used "_layouts/base.html", edgesTo will have a
	// key of "_layouts/base.html" with a value of ["index.html"].
	edgesTo map[string]map[string]struct{}
}

func newGraph() *graph {
	return &graph{
		edgesFrom: map[string]map[string]struct{}{},
		edgesTo:   map[string]map[string]struct{}{},
	}
}

// set replaces the fragment files page depends on.
func (g *graph) set(page string, files []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(page)
	edges := make(map[string]struct{}, len(files))
	for _, file := range files {
		edges[file] = struct{}{}
		if g.edgesTo[file] == nil {
			g.edgesTo[file] = map[string]struct{}{}
		}
		g.edgesTo[file][page] = struct{}{}
	}
	g.edgesFrom[page] = edges
}

// remove forgets page.
func (g *graph) remove(page string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(page)
}

func (g *graph) removeLocked(page string) {
	for file := range g.edgesFrom[page] {
		delete(g.edgesTo[file], page)
		if len(g.edgesTo[file]) < 1 {
			delete(g.edgesTo, file)
		}
	}
	delete(g.edgesFrom, page)
}

// dependents returns, sorted, the pages that used file.
func (g *graph) dependents(file string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	pages := make([]string, 0, len(g.edgesTo[file]))
	for page := range g.edgesTo[file] {
		pages = append(pages, page)
	}
	slices.Sort(pages)
	return pages
}

// empty reports whether no page has been recorded yet.
func (g *graph) empty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.edgesFrom) == 0
}

// recorder is a weave.FragmentStore noting the file of every fragment a
// render asks for, including the ones that don't exist, so creating a
// missing fragment rebuilds the pages waiting for it.
type recorder struct {
	store weave.FragmentStore
	path  func(weave.FragmentKind, string) string

	mu    sync.Mutex
	files []string
}

func newRecorder(store weave.FragmentStore, path func(weave.FragmentKind, string) string) *recorder {
	return &recorder{store: store, path: path}
}

func (r *recorder) note(kind weave.FragmentKind, name string) {
	file := r.path(kind, name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.files, file) {
		r.files = append(r.files, file)
	}
}

func (r *recorder) Layout(ctx context.Context, name string) (string, error) {
	r.note(weave.LayoutFragment, name)
	return r.store.Layout(ctx, name)
}

func (r *recorder) Import(ctx context.Context, name string) (string, error) {
	r.note(weave.ImportFragment, name)
	return r.store.Import(ctx, name)
}

func (r *recorder) Component(ctx context.Context, name string) (string, error) {
	r.note(weave.ComponentFragment, name)
	return r.store.Component(ctx, name)
}

func (r *recorder) used() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.files)
}
