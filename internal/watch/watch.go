// Package watch rebuilds a site whenever its sources change, and serves the
// output over HTTP while it does.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Watcher reports changes to the files under a directory tree, including
// directories created after it started.
type Watcher struct {
	root     string
	fsn      *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher starts watching root and every directory below it, except
// hidden ones. The Watcher must be closed once it's no longer needed.
func NewWatcher(root string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsn, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}
	w := &Watcher{root: root, fsn: fsn, debounce: debounce, logger: logger}
	if err := w.addRecursive(root); err != nil {
		_ = fsn.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsn.Close()
}

// Run calls onChange once changes have stopped arriving for the debounce
// period, until ctx is done. onChange gets the changed paths, sorted, slash
// separated and relative to the watched root. It runs on Run's goroutine, so
// changes made while it runs are batched into the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		changed = map[string]struct{}{}
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsn.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.WarnContext(ctx, "error watching new directory", slog.String("dir", event.Name), slog.Any("error", err))
					}
				}
			}
			w.logger.DebugContext(ctx, "file changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))
			if rel, err := filepath.Rel(w.root, event.Name); err == nil {
				changed[filepath.ToSlash(rel)] = struct{}{}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			batch := slices.Sorted(maps.Keys(changed))
			clear(changed)
			onChange(ctx, batch)
		case err, ok := <-w.fsn.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return fs.SkipDir
		}
		if err := w.fsn.Add(path); err != nil {
			return fmt.Errorf("error watching %q: %w", path, err)
		}
		return nil
	})
}

// Handler serves the files in dir, with index.html as the directory index,
// telling browsers not to cache anything.
func Handler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		files.ServeHTTP(w, r)
	})
}

// Serve serves dir on addr until ctx is done, then shuts the server down.
func Serve(ctx context.Context, addr, dir string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(dir),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	logger.InfoContext(ctx, "serving site", slog.String("addr", addr), slog.String("dir", dir))

	select {
	case err := <-errc:
		return fmt.Errorf("error serving %q: %w", dir, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run watches root, calling rebuild after every batch of changes, and serves
// dir on addr, until ctx is done or the server fails.
func Run(ctx context.Context, root, addr, dir string, debounce time.Duration, logger *slog.Logger, rebuild func(ctx context.Context, changed []string)) error {
	w, err := NewWatcher(root, debounce, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx, rebuild)
	})
	g.Go(func() error {
		return Serve(gctx, addr, dir, logger)
	})
	return g.Wait()
}
