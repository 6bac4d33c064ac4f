package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEphemeral_CreateAndCleanup(t *testing.T) {
	mgr := NewEphemeral(t.TempDir())

	if err := mgr.Create(); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	dir := mgr.Path()
	if dir == "" {
		t.Fatal("Path() empty after Create")
	}
	if !strings.HasPrefix(filepath.Base(dir), "doxysite-") {
		t.Errorf("scratch dir not prefixed: %s", dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("scratch dir missing: %v", err)
	}

	if err := mgr.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("scratch dir survived cleanup: %s", dir)
	}
	if mgr.Path() != "" {
		t.Error("Path() not reset after cleanup")
	}
}

func TestEphemeral_UniquePerCreate(t *testing.T) {
	base := t.TempDir()
	a := NewEphemeral(base)
	b := NewEphemeral(base)
	if err := a.Create(); err != nil {
		t.Fatal(err)
	}
	if err := b.Create(); err != nil {
		t.Fatal(err)
	}
	if a.Path() == b.Path() {
		t.Errorf("two scratch workspaces share a directory: %s", a.Path())
	}
}

func TestPersistent_SurvivesCleanup(t *testing.T) {
	base := t.TempDir()
	mgr := NewPersistent(base, "workspace")

	if err := mgr.Create(); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if want := filepath.Join(base, "workspace"); mgr.Path() != want {
		t.Errorf("Path() = %s, want %s", mgr.Path(), want)
	}

	marker := filepath.Join(mgr.Path(), "checkout-marker")
	if err := os.WriteFile(marker, []byte("kept"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := mgr.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("persistent content removed by cleanup: %v", err)
	}

	// Re-creating over an existing persistent workspace keeps its contents.
	again := NewPersistent(base, "workspace")
	if err := again.Create(); err != nil {
		t.Fatalf("second Create() failed: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("second Create() wiped the workspace: %v", err)
	}
}

func TestPersistent_DefaultName(t *testing.T) {
	base := t.TempDir()
	mgr := NewPersistent(base, "")
	if err := mgr.Create(); err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(base, "workspace"); mgr.Path() != want {
		t.Errorf("default name: %s, want %s", mgr.Path(), want)
	}
}

func TestSubdir(t *testing.T) {
	mgr := NewEphemeral(t.TempDir())

	if _, err := mgr.Subdir("xml"); err == nil {
		t.Error("Subdir before Create must fail")
	}

	if err := mgr.Create(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = mgr.Cleanup() })

	sub, err := mgr.Subdir("xml")
	if err != nil {
		t.Fatalf("Subdir() failed: %v", err)
	}
	if fi, err := os.Stat(sub); err != nil || !fi.IsDir() {
		t.Errorf("subdir not created: %v", err)
	}
}
