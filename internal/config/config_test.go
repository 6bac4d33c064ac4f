package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doxysite.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_EmptyFileGetsDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Site.Project != "ygm" {
		t.Errorf("expected default project ygm, got %q", cfg.Site.Project)
	}
	if cfg.Site.Theme != "sphinx_rtd_theme" {
		t.Errorf("expected default theme sphinx_rtd_theme, got %q", cfg.Site.Theme)
	}
	if cfg.Site.Copyright != "2023, LLNL YGM team" {
		t.Errorf("unexpected copyright: %q", cfg.Site.Copyright)
	}
	if len(cfg.Site.Extensions) != 1 || cfg.Site.Extensions[0] != "breathe" {
		t.Errorf("unexpected extensions: %v", cfg.Site.Extensions)
	}
	if cfg.Doxygen.InputDir != "../../include" || cfg.Doxygen.OutputDir != "build-doc" {
		t.Errorf("unexpected doxygen dirs: %q %q", cfg.Doxygen.InputDir, cfg.Doxygen.OutputDir)
	}
	if cfg.Doxygen.InputToken != "@DOXYGEN_INPUT_DIR@" || cfg.Doxygen.OutputToken != "@DOXYGEN_OUTPUT_DIR@" {
		t.Errorf("unexpected tokens: %q %q", cfg.Doxygen.InputToken, cfg.Doxygen.OutputToken)
	}
	if cfg.Hosted.EnvVar != "READTHEDOCS" || cfg.Hosted.EnvValue != "True" {
		t.Errorf("unexpected hosted detection: %q=%q", cfg.Hosted.EnvVar, cfg.Hosted.EnvValue)
	}
	if cfg.Build.ExtractMode != ExtractModeAuto {
		t.Errorf("expected auto extract mode, got %q", cfg.Build.ExtractMode)
	}
	if cfg.Output.Directory != "build-doc" {
		t.Errorf("report dir should default to extraction output dir, got %q", cfg.Output.Directory)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("DOXYSITE_TEST_PROJECT", "metall")
	path := writeConfig(t, "site:\n  project: ${DOXYSITE_TEST_PROJECT}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Site.Project != "metall" {
		t.Errorf("env expansion failed, got %q", cfg.Site.Project)
	}
	// The breathe project follows the site project unless overridden.
	if got := cfg.Site.BreatheProject(); got != "metall" {
		t.Errorf("BreatheProject() = %q, want metall", got)
	}
}

func TestLoad_InvalidTokens(t *testing.T) {
	path := writeConfig(t, "doxygen:\n  input_token: \"@SAME@\"\n  output_token: \"@SAME@\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for identical tokens")
	}
}

func TestLoad_TemplateEqualsGenerated(t *testing.T) {
	path := writeConfig(t, "doxygen:\n  template: Doxyfile\n  generated: Doxyfile\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for template == generated")
	}
}

func TestLoad_DaemonDurations(t *testing.T) {
	path := writeConfig(t, "daemon:\n  debounce: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for bad debounce")
	}

	path = writeConfig(t, "daemon:\n  schedule: 5s\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for sub-minute schedule")
	}
}

func TestDefault_NoFileNeeded(t *testing.T) {
	cfg := Default()
	if cfg.Site.Project != "ygm" {
		t.Errorf("Default() project = %q", cfg.Site.Project)
	}
	if cfg.Daemon != nil {
		t.Error("Default() should not enable daemon mode")
	}
	if cfg.Source != nil {
		t.Error("Default() should not configure a remote source")
	}
}

func TestDefault_DaemonDefaults(t *testing.T) {
	cfg := &Config{Daemon: &DaemonConfig{}}
	if err := ApplyDefaults(cfg); err != nil {
		t.Fatalf("ApplyDefaults: %v", err)
	}
	if cfg.Daemon.Workers != 1 {
		t.Errorf("daemon workers default = %d, want 1", cfg.Daemon.Workers)
	}
	if cfg.Daemon.Debounce != "2s" {
		t.Errorf("daemon debounce default = %q", cfg.Daemon.Debounce)
	}
	if len(cfg.Daemon.WatchPaths) != 2 {
		t.Errorf("expected template+input watch paths, got %v", cfg.Daemon.WatchPaths)
	}
}

func TestInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doxysite.yaml")

	if err := Init(path, false); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if err := Init(path, false); err == nil {
		t.Fatal("expected error when config exists and force=false")
	}
	if err := Init(path, true); err != nil {
		t.Fatalf("Init(force) failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of generated config failed: %v", err)
	}
	if cfg.Site.Project != "ygm" {
		t.Errorf("generated config project = %q", cfg.Site.Project)
	}
}

func TestNormalizeExtractMode(t *testing.T) {
	cases := map[string]ExtractMode{
		"auto":   ExtractModeAuto,
		"always": ExtractModeAlways,
		"never":  ExtractModeNever,
		"bogus":  "",
		"":       "",
	}
	for raw, want := range cases {
		if got := NormalizeExtractMode(raw); got != want {
			t.Errorf("NormalizeExtractMode(%q) = %q, want %q", raw, got, want)
		}
	}
}
