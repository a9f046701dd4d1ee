// Package build renders a whole site: every page under the pages directory is
// rendered with weave and written to the output directory, mirroring the
// source tree, and the assets directory is copied alongside.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/natefinch/atomic"
	"github.com/tdewolff/minify/v2"
	"golang.org/x/sync/errgroup"

	"impractical.co/weave"
	"impractical.co/weave/internal/config"
)

const assetsOutputDir = "assets"

// Builder builds a site according to a config.Config. A Builder remembers the
// hash of every file it wrote, so rebuilding an unchanged site writes
// nothing. Build and Rebuild must not be called concurrently.
type Builder struct {
	cfg    config.Config
	src    fs.FS
	logger *slog.Logger
	dev    bool
	min    *minify.M

	// hashes of the files written by previous builds, keyed by output path
	written   map[string]uint64
	writtenMu sync.Mutex

	deps *graph
}

// Option configures a Builder.
type Option func(*Builder)

// WithSource reads the site's sources from fsys instead of from
// cfg.SourceDir on disk.
func WithSource(fsys fs.FS) Option {
	return func(b *Builder) {
		b.src = fsys
	}
}

// WithLogger sets the logger for the build and the renders it runs.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithDevMode makes a page that fails to render produce an error page
// describing the failure, instead of leaving its previous output in place.
func WithDevMode(dev bool) Option {
	return func(b *Builder) {
		b.dev = dev
	}
}

// New returns a Builder for the site described by cfg.
func New(cfg config.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:     cfg,
		src:     os.DirFS(cfg.SourceDir),
		logger:  slog.New(slog.DiscardHandler),
		written: map[string]uint64{},
		deps:    newGraph(),
	}
	if cfg.Minify {
		b.min = newMinifier()
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Report summarizes a build.
type Report struct {
	// Pages is how many pages were rendered, including failures.
	Pages int

	// Failed is how many files, pages or not, couldn't be built.
	Failed int

	// Warnings is the total number of render warnings.
	Warnings int

	// Written and Unchanged count output files, pages and assets, that
	// were written or skipped because their content was already there.
	Written   int
	Unchanged int

	Duration time.Duration
}

// Build renders every page and copies every asset. Pages are rendered
// concurrently and independently: a page that fails doesn't stop the
// others. The returned error joins the failures of every page that couldn't
// be built.
func (b *Builder) Build(ctx context.Context) (Report, error) {
	pages, others, err := listFiles(b.src, path.Clean(b.cfg.PagesDir), b.cfg.Extension)
	if err != nil {
		return Report{}, fmt.Errorf("error listing pages: %w", err)
	}
	assets, err := b.listAssets()
	if err != nil {
		return Report{}, err
	}
	return b.run(ctx, plan{pages: pages, others: others, assets: assets})
}

// Rebuild builds only what changed files affect. changed holds slash
// separated paths relative to the source directory: changed pages are
// rendered again, changed assets and other files are copied again, and a
// changed fragment renders every page that used it in a previous build.
//
// Without a previous build to know which pages use which fragments, or when a
// directory changed, Rebuild builds everything.
func (b *Builder) Rebuild(ctx context.Context, changed []string) (Report, error) {
	if b.deps.empty() {
		return b.Build(ctx)
	}
	var (
		pagesDir  = path.Clean(b.cfg.PagesDir)
		assetsDir = path.Clean(b.cfg.AssetsDir)
		pages     = map[string]struct{}{}
		others    = map[string]struct{}{}
		assets    = map[string]struct{}{}
	)
	for _, file := range changed {
		file = path.Clean(file)
		info, err := fs.Stat(b.src, file)
		exists := err == nil
		if exists && info.IsDir() {
			b.logger.DebugContext(ctx, "directory changed, rebuilding everything", slog.String("dir", file))
			return b.Build(ctx)
		}
		if hidden(file) {
			continue
		}
		for _, page := range b.deps.dependents(file) {
			pages[page] = struct{}{}
		}
		switch {
		case within(file, pagesDir):
			rel := relativeTo(file, pagesDir)
			if !strings.EqualFold(path.Ext(rel), b.cfg.Extension) {
				if exists {
					others[rel] = struct{}{}
				}
				continue
			}
			pages[rel] = struct{}{}
		case within(file, assetsDir):
			if exists {
				assets[relativeTo(file, assetsDir)] = struct{}{}
			}
		}
	}
	for page := range pages {
		if _, err := fs.Stat(b.src, path.Join(pagesDir, page)); err != nil {
			delete(pages, page)
			b.deps.remove(page)
		}
	}
	return b.run(ctx, plan{
		pages:  slices.Sorted(maps.Keys(pages)),
		others: slices.Sorted(maps.Keys(others)),
		assets: slices.Sorted(maps.Keys(assets)),
	})
}

// plan lists the files a build works on, relative to their directory.
type plan struct {
	pages  []string
	others []string
	assets []string
}

func (b *Builder) run(ctx context.Context, p plan) (Report, error) {
	start := time.Now()
	ctx = weave.LoggingContext(ctx, b.logger)

	fragments := b.fragmentStore()
	var store weave.FragmentStore = fragments
	if b.cfg.CacheFragments {
		store = weave.NewCachedStore(store)
	}

	var (
		report   = Report{Pages: len(p.pages)}
		failures []error
		mu       sync.Mutex
	)
	count := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		report.Warnings += o.warnings
		if o.err != nil {
			failures = append(failures, o.err)
			report.Failed++
		}
		if o.written {
			report.Written++
		}
		if o.unchanged {
			report.Unchanged++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency())
	for _, page := range p.pages {
		g.Go(func() error {
			count(b.buildPage(gctx, newRecorder(store, fragments.Path), page))
			return gctx.Err()
		})
	}
	for _, file := range p.others {
		g.Go(func() error {
			count(b.copyFile(gctx, path.Join(b.cfg.PagesDir, file), file))
			return gctx.Err()
		})
	}
	for _, asset := range p.assets {
		g.Go(func() error {
			count(b.copyFile(gctx, path.Join(b.cfg.AssetsDir, asset), path.Join(assetsOutputDir, asset)))
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("build interrupted: %w", err)
	}

	report.Duration = time.Since(start)
	b.logger.InfoContext(ctx, "build finished",
		slog.Int("pages", report.Pages),
		slog.Int("failed", report.Failed),
		slog.Int("warnings", report.Warnings),
		slog.Int("written", report.Written),
		slog.Int("unchanged", report.Unchanged),
		slog.Duration("duration", report.Duration),
	)
	return report, errors.Join(failures...)
}

func (b *Builder) fragmentStore() *weave.FSStore {
	store := weave.NewFSStore(b.src)
	store.LayoutDir = path.Clean(b.cfg.LayoutsDir)
	store.ImportDir = path.Clean(b.cfg.ImportsDir)
	store.ComponentDir = path.Clean(b.cfg.ComponentsDir)
	store.Extension = b.cfg.Extension
	return store
}

func (b *Builder) concurrency() int {
	if b.cfg.Concurrency > 0 {
		return b.cfg.Concurrency
	}
	return runtime.NumCPU()
}

type outcome struct {
	err       error
	warnings  int
	written   bool
	unchanged bool
}

// buildPage renders the page at rel, relative to the pages directory, and
// writes it to the same relative path in the output directory. The fragments
// the page used are recorded for Rebuild.
func (b *Builder) buildPage(ctx context.Context, store *recorder, rel string) outcome {
	raw, err := fs.ReadFile(b.src, path.Join(b.cfg.PagesDir, rel))
	if err != nil {
		return outcome{err: fmt.Errorf("error reading page %q: %w", rel, err)}
	}

	renderer := weave.NewRenderer(store, weave.WithMaxDepth(b.cfg.MaxDepth))
	result, err := renderer.Render(ctx, rel, string(raw))
	b.deps.set(rel, store.used())
	o := outcome{warnings: len(result.Warnings)}
	if internal := result.InternalError(); internal != nil {
		b.logger.ErrorContext(ctx, "internal error rendering page", slog.String("page", rel), slog.Any("error", internal))
	}
	if err != nil {
		o.err = err
		b.logger.ErrorContext(ctx, "error rendering page", slog.String("page", rel), slog.Any("error", err))
		if !b.dev {
			return o
		}
		page, tmplErr := errorPage(rel, err)
		if tmplErr != nil {
			b.logger.ErrorContext(ctx, "error rendering error page", slog.String("page", rel), slog.Any("error", tmplErr))
			return o
		}
		if _, werr := b.write(rel, page); werr != nil {
			b.logger.ErrorContext(ctx, "error writing error page", slog.String("page", rel), slog.Any("error", werr))
		}
		return o
	}

	out := b.minify(ctx, rel, htmlType, []byte(result.Output))
	written, err := b.write(rel, out)
	if err != nil {
		o.err = err
		return o
	}
	o.written, o.unchanged = written, !written
	return o
}

// copyFile copies the source file at src to dst in the output directory,
// minifying it on the way if its type is known.
func (b *Builder) copyFile(ctx context.Context, src, dst string) outcome {
	data, err := fs.ReadFile(b.src, src)
	if err != nil {
		return outcome{err: fmt.Errorf("error reading %q: %w", src, err)}
	}
	written, err := b.write(dst, b.minify(ctx, dst, mediaType(dst), data))
	if err != nil {
		return outcome{err: err}
	}
	return outcome{written: written, unchanged: !written}
}

func (b *Builder) minify(ctx context.Context, name, mediatype string, data []byte) []byte {
	if b.min == nil || mediatype == "" {
		return data
	}
	out, err := b.min.Bytes(mediatype, data)
	if err != nil {
		b.logger.WarnContext(ctx, "error minifying, writing as is", slog.String("file", name), slog.Any("error", err))
		return data
	}
	return out
}

// write atomically writes data to rel inside the output directory, unless
// the file already holds exactly that content. It reports whether it wrote.
func (b *Builder) write(rel string, data []byte) (bool, error) {
	dst := filepath.Join(b.cfg.OutputDir, filepath.FromSlash(rel))
	sum := xxhash.Sum64(data)

	b.writtenMu.Lock()
	prev, ok := b.written[dst]
	b.writtenMu.Unlock()
	if ok && prev == sum && fileExists(dst) {
		return false, nil
	}
	if !ok {
		if existing, err := os.ReadFile(dst); err == nil && xxhash.Sum64(existing) == sum {
			b.remember(dst, sum)
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, fmt.Errorf("error creating directory for %q: %w", dst, err)
	}
	if err := atomic.WriteFile(dst, bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("error writing %q: %w", dst, err)
	}
	b.remember(dst, sum)
	return true, nil
}

func (b *Builder) remember(dst string, sum uint64) {
	b.writtenMu.Lock()
	defer b.writtenMu.Unlock()
	b.written[dst] = sum
}

func (b *Builder) listAssets() ([]string, error) {
	dir := path.Clean(b.cfg.AssetsDir)
	if _, err := fs.Stat(b.src, dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	files, others, err := listFiles(b.src, dir, "")
	if err != nil {
		return nil, fmt.Errorf("error listing assets: %w", err)
	}
	return append(files, others...), nil
}

// listFiles walks dir in fsys, returning the paths, relative to dir, of the
// files with extension ext and of every other file. Hidden files and
// directories are skipped. An empty ext puts every file in others.
func listFiles(fsys fs.FS, dir, ext string) (matching, others []string, err error) {
	err = fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// skip hidden files and directories.
		if strings.HasPrefix(d.Name(), ".") && p != dir {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		rel := p
		if dir != "." {
			rel = strings.TrimPrefix(p, dir+"/")
		}
		if ext != "" && strings.EqualFold(path.Ext(p), ext) {
			matching = append(matching, rel)
		} else {
			others = append(others, rel)
		}
		return nil
	})
	return matching, others, err
}

func fileExists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func hidden(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

func within(p, dir string) bool {
	return dir == "." || strings.HasPrefix(p, dir+"/")
}

func relativeTo(p, dir string) string {
	if dir == "." {
		return p
	}
	return strings.TrimPrefix(p, dir+"/")
}
