// Command weave builds a static site out of pages, layouts, imports and
// components, and optionally keeps rebuilding and serving it as the sources
// change.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"

	"impractical.co/weave/internal/build"
	"impractical.co/weave/internal/config"
	"impractical.co/weave/internal/watch"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	flags := flag.NewFlagSet("weave", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		configPath  = flags.String("config", config.DefaultPath, "path to the JSON config file; optional when left at its default")
		watchMode   = flags.Bool("watch", false, "rebuild on every change and serve the output")
		addr        = flags.String("addr", "", "address the dev server listens on (overrides the config)")
		minify      = flags.Bool("minify", true, "minify pages and assets (overrides the config)")
		concurrency = flags.Int("concurrency", 0, "pages to render at once, 0 for one per CPU (overrides the config)")
		logLevel    = flags.String("log-level", "", "debug, info, warn or error (overrides the config)")
		initConfig  = flags.Bool("init-config", false, "write the default config to -config and exit")
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", flags.Args())
		flags.Usage()
		return exitUsage
	}

	if *initConfig {
		wrote, err := config.WriteDefault(*configPath)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitUsage
		}
		if !wrote {
			fmt.Fprintf(stderr, "%s already exists, leaving it alone\n", *configPath)
		}
		return exitOK
	}

	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	cfg, err := config.Load(*configPath, !set["config"])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if set["addr"] {
		cfg.Addr = *addr
	}
	if set["minify"] {
		cfg.Minify = *minify
	}
	if set["concurrency"] {
		cfg.Concurrency = *concurrency
	}
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()})
	logger := slog.New(handler)
	otel.SetLogger(logr.FromSlogHandler(handler))

	builder := build.New(cfg, build.WithLogger(logger), build.WithDevMode(*watchMode))
	buildOnce := func(ctx context.Context) error {
		_, err := builder.Build(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "build failed", slog.Any("error", err))
		}
		return err
	}

	if !*watchMode {
		if err := buildOnce(ctx); err != nil {
			return exitFailed
		}
		return exitOK
	}

	// a broken page shouldn't stop the dev server from starting
	_ = buildOnce(ctx)
	err = watch.Run(ctx, cfg.SourceDir, cfg.Addr, cfg.OutputDir, cfg.Debounce(), logger, func(ctx context.Context, changed []string) {
		logger.DebugContext(ctx, "rebuilding", slog.Any("changed", changed))
		if _, err := builder.Rebuild(ctx, changed); err != nil {
			logger.ErrorContext(ctx, "build failed", slog.Any("error", err))
		}
	})
	if err != nil {
		logger.ErrorContext(ctx, "dev server failed", slog.Any("error", err))
		return exitFailed
	}
	return exitOK
}
