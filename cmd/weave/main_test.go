package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func writeConfig(t *testing.T, p string, fields map[string]any) string {
	t.Helper()
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRunBuild(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src, out := filepath.Join(dir, "src"), filepath.Join(dir, "out")
	writeFiles(t, src, map[string]string{
		"pages/index.html":   "@layout(base)\n@section(title, Hello)",
		"_layouts/base.html": "<title>@attach(title)</title>",
		"assets/favicon.txt": "icon",
	})
	cfgPath := writeConfig(t, filepath.Join(dir, "weave.json"), map[string]any{"source_dir": src, "output_dir": out})

	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-config", cfgPath, "-minify=false"}, &stderr); code != exitOK {
		t.Fatalf("run() = %d, want %d; stderr:\n%s", code, exitOK, stderr.String())
	}
	got, err := os.ReadFile(filepath.Join(out, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "<title>Hello</title>" {
		t.Errorf("index.html = %q, want %q", got, "<title>Hello</title>")
	}
	if _, err := os.Stat(filepath.Join(out, "assets", "favicon.txt")); err != nil {
		t.Errorf("asset wasn't copied: %v", err)
	}
}

func TestRunPageFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFiles(t, src, map[string]string{
		"pages/index.html": "@import(nowhere)",
	})
	cfgPath := writeConfig(t, filepath.Join(dir, "weave.json"), map[string]any{"source_dir": src, "output_dir": filepath.Join(dir, "out")})

	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-config", cfgPath}, &stderr); code != exitFailed {
		t.Fatalf("run() = %d, want %d; stderr:\n%s", code, exitFailed, stderr.String())
	}
	if !strings.Contains(stderr.String(), "nowhere") {
		t.Errorf("stderr doesn't name the missing import:\n%s", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	valid := writeConfig(t, filepath.Join(dir, "valid.json"), map[string]any{"source_dir": dir})
	invalid := writeConfig(t, filepath.Join(dir, "invalid.json"), map[string]any{"extension": "html"})

	tests := map[string][]string{
		"unknown flag":         {"-nope"},
		"extra arguments":      {"-config", valid, "site"},
		"missing config":       {"-config", filepath.Join(dir, "missing.json")},
		"invalid config":       {"-config", invalid},
		"invalid log level":    {"-config", valid, "-log-level", "loud"},
		"negative concurrency": {"-config", valid, "-concurrency", "-1"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var stderr bytes.Buffer
			if code := run(context.Background(), args, &stderr); code != exitUsage {
				t.Errorf("run(%q) = %d, want %d; stderr:\n%s", args, code, exitUsage, stderr.String())
			}
		})
	}
}

func TestRunInitConfig(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "weave.json")
	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-init-config", "-config", cfgPath}, &stderr); code != exitOK {
		t.Fatalf("run() = %d, want %d; stderr:\n%s", code, exitOK, stderr.String())
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"pages_dir": "pages"`) {
		t.Errorf("config file = %s, want the defaults", data)
	}

	stderr.Reset()
	if code := run(context.Background(), []string{"-init-config", "-config", cfgPath}, &stderr); code != exitOK {
		t.Fatalf("second run() = %d, want %d", code, exitOK)
	}
	if !strings.Contains(stderr.String(), "already exists") {
		t.Errorf("stderr = %q, want a note that the file was left alone", stderr.String())
	}
}
