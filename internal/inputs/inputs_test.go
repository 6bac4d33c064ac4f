package inputs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/llnl/doxysite/internal/config"
)

// fixtureTree lays down a miniature docs checkout: headers two levels deep,
// prose in rst and md, a template override, and excluded noise.
func fixtureTree(t *testing.T) (string, *config.Config) {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"include/ygm/comm.hpp":              "#pragma once\n",
		"include/ygm/container/bag.hpp":     "#pragma once\n",
		"include/ygm/container/map.hpp":     "#pragma once\n",
		"include/ygm/detail/impl.ipp":       "// not a header by extension\n",
		"include/.hidden/skip.hpp":          "#pragma once\n",
		"docs/index.rst":                    "Welcome to YGM\n==============\n\nContent.\n",
		"docs/getting-started.md":           "# Getting Started\n\nHow to start.\n",
		"docs/guide/collectives.rst":        "Collectives\n-----------\n\nText.\n",
		"docs/untitled.md":                  "no heading here\n",
		"docs/_build/stale.rst":             "Stale\n=====\n",
		"docs/Thumbs.db":                    "binary junk",
		"docs/_templates/layout.html":       "<html><head><title>Custom Layout</title><meta name=\"a\" content=\"b\"></head><body></body></html>",
		"docs/_templates/notes.txt":         "not html",
		"docs/_static/style.css":            "body {}",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Default()
	cfg.Doxygen.InputDir = "../include"
	cfg.Site.SourceDir = "docs"
	return filepath.Join(root, "docs"), cfg
}

func TestDiscover_Headers(t *testing.T) {
	root, cfg := fixtureTree(t)

	inv, err := NewDiscovery(cfg, root).Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(inv.Headers) != 3 {
		t.Fatalf("expected 3 headers, got %d: %+v", len(inv.Headers), inv.Headers)
	}
	// Sorted by relative path.
	if inv.Headers[0].RelativePath != filepath.Join("ygm", "comm.hpp") {
		t.Errorf("first header = %q", inv.Headers[0].RelativePath)
	}
	if inv.Headers[0].Section != "ygm" {
		t.Errorf("section = %q, want ygm", inv.Headers[0].Section)
	}
	if inv.Headers[0].Name != "comm" || inv.Headers[0].Extension != ".hpp" {
		t.Errorf("name/ext = %q/%q", inv.Headers[0].Name, inv.Headers[0].Extension)
	}
}

func TestDiscover_Pages(t *testing.T) {
	root, cfg := fixtureTree(t)

	inv, err := NewDiscovery(cfg, root).Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	byName := map[string]Page{}
	for _, p := range inv.Pages {
		byName[p.RelativePath] = p
	}
	if len(inv.Pages) != 4 {
		t.Fatalf("expected 4 pages, got %d: %+v", len(inv.Pages), inv.Pages)
	}
	if _, found := byName[filepath.Join("_build", "stale.rst")]; found {
		t.Error("excluded _build dir leaked into pages")
	}
	if p := byName["index.rst"]; p.Title != "Welcome to YGM" {
		t.Errorf("rst title = %q", p.Title)
	}
	if p := byName["getting-started.md"]; p.Title != "Getting Started" {
		t.Errorf("md title = %q", p.Title)
	}
	if p := byName["untitled.md"]; p.Title != "Untitled" {
		t.Errorf("fallback title = %q, want Untitled", p.Title)
	}
	if p := byName[filepath.Join("guide", "collectives.rst")]; p.Section != "guide" {
		t.Errorf("page section = %q", p.Section)
	}
}

func TestDiscover_TemplateOverrides(t *testing.T) {
	root, cfg := fixtureTree(t)

	inv, err := NewDiscovery(cfg, root).Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(inv.Overrides) != 1 {
		t.Fatalf("expected 1 override, got %d: %+v", len(inv.Overrides), inv.Overrides)
	}
	ov := inv.Overrides[0]
	if ov.Name != "layout.html" {
		t.Errorf("override name = %q", ov.Name)
	}
	if ov.Title != "Custom Layout" {
		t.Errorf("override title = %q", ov.Title)
	}
	if ov.Metas != 1 {
		t.Errorf("override metas = %d", ov.Metas)
	}
}

func TestDiscover_Sections(t *testing.T) {
	root, cfg := fixtureTree(t)

	inv, err := NewDiscovery(cfg, root).Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	// Header sections collapse to their first path element.
	want := []string{"Guide", "Ygm"}
	if len(inv.Sections) != len(want) {
		t.Fatalf("sections = %v, want %v", inv.Sections, want)
	}
	for i := range want {
		if inv.Sections[i] != want[i] {
			t.Errorf("sections[%d] = %q, want %q", i, inv.Sections[i], want[i])
		}
	}
}

func TestDiscover_MissingDirs(t *testing.T) {
	cfg := config.Default()
	cfg.Doxygen.InputDir = "no-such-include"

	inv, err := NewDiscovery(cfg, filepath.Join(t.TempDir(), "no-such-docs")).Discover()
	if err != nil {
		t.Fatalf("missing dirs must not fail discovery: %v", err)
	}
	if len(inv.Headers) != 0 || len(inv.Pages) != 0 {
		t.Errorf("expected empty inventory, got %+v", inv)
	}
}
