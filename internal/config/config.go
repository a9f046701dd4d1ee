// Package config loads the settings of a weave site build from a JSON file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/natefinch/atomic"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "weave.json"

var (
	// ErrInvalidConfig is wrapped by every error Validate returns.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config holds the settings of a site build. Directories other than
// SourceDir and OutputDir are relative to SourceDir.
type Config struct {
	// SourceDir is the root of the site's sources.
	SourceDir string `json:"source_dir"`

	// PagesDir holds the pages. Its tree is mirrored into OutputDir.
	PagesDir string `json:"pages_dir"`

	// LayoutsDir, ImportsDir and ComponentsDir hold the fragments pages
	// refer to by name.
	LayoutsDir    string `json:"layouts_dir"`
	ImportsDir    string `json:"imports_dir"`
	ComponentsDir string `json:"components_dir"`

	// AssetsDir is copied to the "assets" directory of OutputDir.
	AssetsDir string `json:"assets_dir"`

	// OutputDir is where the built site is written.
	OutputDir string `json:"output_dir"`

	// Extension is the filename extension of pages and fragments. Files
	// in PagesDir without it are copied rather than rendered.
	Extension string `json:"extension"`

	// Minify controls whether pages and assets are minified on output.
	Minify bool `json:"minify"`

	// Concurrency is how many pages render at once. 0 means one per CPU.
	Concurrency int `json:"concurrency"`

	// CacheFragments reads each fragment once per build instead of once
	// per page that uses it.
	CacheFragments bool `json:"cache_fragments"`

	// MaxDepth limits how deeply components may nest. 0 means the
	// renderer's default.
	MaxDepth int `json:"max_depth"`

	// Addr is where the dev server listens in watch mode.
	Addr string `json:"addr"`

	// DebounceMS is how long, in milliseconds, watch mode waits for
	// changes to settle before rebuilding.
	DebounceMS int `json:"debounce_ms"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"log_level"`
}

// Default returns a Config laid out the way a new site is: sources in ./dev,
// output in ./public.
func Default() Config {
	return Config{
		SourceDir:      "./dev",
		PagesDir:       "pages",
		LayoutsDir:     "_layouts",
		ImportsDir:     "_imports",
		ComponentsDir:  "_components",
		AssetsDir:      "assets",
		OutputDir:      "./public",
		Extension:      ".html",
		Minify:         true,
		Concurrency:    0,
		CacheFragments: false,
		MaxDepth:       0,
		Addr:           ":3000",
		DebounceMS:     100,
		LogLevel:       "info",
	}
}

// Load reads the config file at path on top of the defaults, so fields the
// file leaves out keep their default values. If the file doesn't exist and
// optional is set, the defaults are returned.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && optional {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WriteDefault writes the default config to path, unless a file is already
// there. It reports whether it wrote anything.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(append(data, '\n'))); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// Validate checks that the config can be used for a build.
func (c Config) Validate() error {
	var errs []error
	if c.SourceDir == "" {
		errs = append(errs, fmt.Errorf("%w: source_dir is empty", ErrInvalidConfig))
	}
	if c.OutputDir == "" {
		errs = append(errs, fmt.Errorf("%w: output_dir is empty", ErrInvalidConfig))
	}
	for field, dir := range map[string]string{
		"pages_dir":      c.PagesDir,
		"layouts_dir":    c.LayoutsDir,
		"imports_dir":    c.ImportsDir,
		"components_dir": c.ComponentsDir,
		"assets_dir":     c.AssetsDir,
	} {
		if !fs.ValidPath(path.Clean(dir)) {
			errs = append(errs, fmt.Errorf("%w: %s %q must be a relative path inside source_dir", ErrInvalidConfig, field, dir))
		}
	}
	if !strings.HasPrefix(c.Extension, ".") || len(c.Extension) < 2 {
		errs = append(errs, fmt.Errorf("%w: extension %q must start with a dot", ErrInvalidConfig, c.Extension))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("%w: concurrency can't be negative", ErrInvalidConfig))
	}
	if c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("%w: max_depth can't be negative", ErrInvalidConfig))
	}
	if c.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("%w: debounce_ms can't be negative", ErrInvalidConfig))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}

// Level returns LogLevel as a slog.Level, defaulting to info.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Debounce returns DebounceMS as a time.Duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Dir returns a directory relative to SourceDir as a path on disk.
func (c Config) Dir(rel string) string {
	return path.Join(c.SourceDir, rel)
}
