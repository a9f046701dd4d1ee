package weave

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultMaxDepth is how deeply components may invoke other components
	// unless WithMaxDepth says otherwise.
	DefaultMaxDepth = 32

	pageScope = "page"
)

// Renderer resolves the directives in pages against a FragmentStore. A
// Renderer holds no per-page state, so one Renderer can render any number of
// pages concurrently as long as its FragmentStore is safe for concurrent use.
type Renderer struct {
	store    FragmentStore
	maxDepth int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithMaxDepth limits how deeply components may invoke other components
// before rendering fails with ErrMaxDepth. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(r *Renderer) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// NewRenderer returns a Renderer loading fragments from store.
func NewRenderer(store FragmentStore, opts ...Option) *Renderer {
	r := &Renderer{
		store:    store,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render renders page using a Renderer with default options. See
// Renderer.Render.
func Render(ctx context.Context, store FragmentStore, name, page string) (Result, error) {
	return NewRenderer(store).Render(ctx, name, page)
}

// Render resolves every directive in page and returns the resulting text,
// with surrounding whitespace trimmed. name identifies the page in errors,
// logs and traces.
//
// The passes run in a fixed order: literal spans are masked, the layout is
// substituted, @attach placeholders are filled from the page's sections (and
// the section declarations removed), imports are inlined, components are
// expanded, and finally the literal spans are restored.
//
// If a fragment the page refers to can't be loaded, Render returns a
// *FragmentError. Problems Render can work around are reported in the
// Result's Warnings instead.
func (rr *Renderer) Render(ctx context.Context, name, page string) (Result, error) {
	ctx, span := tracer.Start(ctx, "weave.Render", trace.WithAttributes(attribute.String("weave.page", name)))
	defer span.End()

	m := meters()
	m.renders.Add(ctx, 1)

	r := &render{
		store:    rr.store,
		page:     name,
		guard:    newGuard(),
		maxDepth: rr.maxDepth,
	}
	out, err := r.run(ctx, page)
	if err != nil {
		m.failures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "error rendering page")
		return Result{Warnings: r.warnings}, err
	}
	return Result{Output: out, Warnings: r.warnings}, nil
}

// render is the state of a single call to Renderer.Render.
type render struct {
	store    FragmentStore
	page     string
	guard    *guard
	maxDepth int
	warnings []Warning
}

func (r *render) run(ctx context.Context, page string) (string, error) {
	// sections are read from the page itself, before the layout is
	// wrapped around it
	page = r.guard.mask(page)
	r.checkBlocks(ctx, page, pageScope)
	declared := collectSections(page)

	text, err := r.resolveLayout(ctx, page)
	if err != nil {
		return "", err
	}
	text, err = r.resolveSections(ctx, text, declared)
	if err != nil {
		return "", err
	}
	text, err = r.resolveImports(ctx, text)
	if err != nil {
		return "", err
	}

	componentCtx, span := tracer.Start(ctx, "weave.components")
	text, err = r.resolveComponents(componentCtx, text, 0)
	span.End()
	if err != nil {
		return "", err
	}

	out := strings.TrimSpace(r.guard.unmask(text))
	for _, placeholder := range r.guard.leftover(out) {
		r.warn(ctx, Warning{Kind: UnrestoredMask, Name: placeholder, Scope: pageScope})
	}
	return out, nil
}

// fragment loads a fragment and masks its literal spans.
func (r *render) fragment(ctx context.Context, kind FragmentKind, name string) (string, error) {
	text, err := fetchFragment(ctx, r.store, kind, name)
	if err != nil {
		return "", &FragmentError{Page: r.page, Kind: kind, Name: name, Err: err}
	}
	text = r.guard.mask(text)
	r.checkBlocks(ctx, text, kind.String()+"("+name+")")
	return text, nil
}

// checkBlocks warns about every block opened at the top level of text that
// is never closed.
func (r *render) checkBlocks(ctx context.Context, text, scope string) {
	_, unterminated := scan(text)
	for _, d := range unterminated {
		r.warn(ctx, Warning{Kind: UnterminatedBlock, Name: d.Name, Scope: scope})
	}
}

func (r *render) warn(ctx context.Context, w Warning) {
	r.warnings = append(r.warnings, w)
	logWarning(ctx, r.page, w)
	recordWarning(ctx, w)
}
