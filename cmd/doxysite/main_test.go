package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llnl/doxysite/internal/config"
)

// resetCLI snapshots the kong globals and restores them when the test ends.
func resetCLI(t *testing.T) {
	t.Helper()
	saved := CLI
	t.Cleanup(func() { CLI = saved })
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "doxysite.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Site.Project != "ygm" {
		t.Errorf("default project = %q", cfg.Site.Project)
	}
	if cfg.Site.Theme != "sphinx_rtd_theme" {
		t.Errorf("default theme = %q", cfg.Site.Theme)
	}
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doxysite.yaml")
	content := "site:\n  project: metall\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Site.Project != "metall" {
		t.Errorf("project = %q, want metall", cfg.Site.Project)
	}
	// Everything unset still gets defaults.
	if cfg.Doxygen.InputToken != config.DefaultInputToken {
		t.Errorf("input token = %q", cfg.Doxygen.InputToken)
	}
}

func TestApplyBuildFlags(t *testing.T) {
	resetCLI(t)

	CLI.Build.Hosted = true
	CLI.Build.Extract = "always"
	cfg := config.Default()
	if err := applyBuildFlags(cfg); err != nil {
		t.Fatalf("applyBuildFlags: %v", err)
	}
	if !cfg.Hosted.Force {
		t.Error("hosted flag did not force hosted mode")
	}
	if cfg.Build.ExtractMode != config.ExtractModeAlways {
		t.Errorf("extract mode = %q", cfg.Build.ExtractMode)
	}

	CLI.Build.Extract = "sometimes"
	if err := applyBuildFlags(config.Default()); err == nil {
		t.Error("invalid extract mode accepted")
	}

	CLI.Build.Hosted = false
	CLI.Build.Extract = ""
	cfg = config.Default()
	if err := applyBuildFlags(cfg); err != nil {
		t.Fatalf("applyBuildFlags: %v", err)
	}
	if cfg.Hosted.Force || cfg.Build.ExtractMode != config.ExtractModeAuto {
		t.Errorf("no-flag run changed config: force=%t mode=%q", cfg.Hosted.Force, cfg.Build.ExtractMode)
	}
}

func TestHistoryPath(t *testing.T) {
	resetCLI(t)
	CLI.Root = "/srv/project"

	cfg := config.Default()
	cfg.History.Path = ":memory:"
	if got := historyPath(cfg); got != ":memory:" {
		t.Errorf("memory path = %q", got)
	}

	cfg.History.Path = "/var/lib/doxysite/history.db"
	if got := historyPath(cfg); got != "/var/lib/doxysite/history.db" {
		t.Errorf("absolute path = %q", got)
	}

	cfg.History.Path = ".doxysite/history.db"
	want := filepath.Join("/srv/project", ".doxysite/history.db")
	if got := historyPath(cfg); got != want {
		t.Errorf("relative path = %q, want %q", got, want)
	}
}

func TestRunBuild_LocalDefaults(t *testing.T) {
	resetCLI(t)
	t.Setenv("READTHEDOCS", "")
	root := t.TempDir()
	CLI.Root = root
	CLI.Config = filepath.Join(root, "doxysite.yaml")

	if err := runBuild(); err != nil {
		t.Fatalf("runBuild: %v", err)
	}

	conf, err := os.ReadFile(filepath.Join(root, "conf.py"))
	if err != nil {
		t.Fatalf("conf.py missing: %v", err)
	}
	if !strings.Contains(string(conf), `project = "ygm"`) {
		t.Errorf("conf.py lacks project line:\n%s", conf)
	}
	if strings.Contains(string(conf), "breathe_projects =") {
		t.Errorf("local build registered a breathe mapping:\n%s", conf)
	}
	if _, err := os.Stat(filepath.Join(root, "build-doc", "build-report.json")); err != nil {
		t.Errorf("build report not persisted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "..", "Doxyfile")); !os.IsNotExist(err) {
		t.Error("local build rendered a Doxyfile")
	}
}

func TestRunInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doxysite.yaml")

	if err := runInit(path, false); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("starter config missing: %v", err)
	}
	if err := runInit(path, false); err == nil {
		t.Error("second init without --force succeeded")
	}
	if err := runInit(path, true); err != nil {
		t.Errorf("init --force failed: %v", err)
	}
}
