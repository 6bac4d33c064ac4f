package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// awaitChange drains the channel until the wanted path arrives, tolerating
// unrelated events such as directory creations.
func awaitChange(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a change at %s", want)
		}
	}
}

func TestWatcher_FileWatchSurvivesSiblingNoise(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "Doxyfile.in")
	require.NoError(t, os.WriteFile(template, []byte("INPUT = @DOXYGEN_INPUT_DIR@\n"), 0o644))

	changes := make(chan string, 16)
	w, err := NewWatcher([]string{template}, func(p string) { changes <- p })
	require.NoError(t, err)
	defer w.Stop()
	go w.Run()

	// A sibling in the watched parent directory is not the watched file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	select {
	case got := <-changes:
		t.Fatalf("unexpected change for %s", got)
	case <-time.After(200 * time.Millisecond):
		// ok
	}

	require.NoError(t, os.WriteFile(template, []byte("INPUT = ../../include\n"), 0o644))
	awaitChange(t, changes, template)
}

func TestWatcher_TreeWatchCoversNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	include := filepath.Join(root, "include")
	require.NoError(t, os.MkdirAll(filepath.Join(include, "ygm"), 0o755))

	changes := make(chan string, 16)
	w, err := NewWatcher([]string{include}, func(p string) { changes <- p })
	require.NoError(t, err)
	defer w.Stop()
	go w.Run()

	header := filepath.Join(include, "ygm", "comm.hpp")
	require.NoError(t, os.WriteFile(header, []byte("#pragma once\n"), 0o644))
	awaitChange(t, changes, header)

	// A directory created after startup gets its own watch before the
	// creation callback is delivered, so files inside it are seen too.
	container := filepath.Join(include, "ygm", "container")
	require.NoError(t, os.Mkdir(container, 0o755))
	awaitChange(t, changes, container)

	nested := filepath.Join(container, "bag.hpp")
	require.NoError(t, os.WriteFile(nested, []byte("#pragma once\n"), 0o644))
	awaitChange(t, changes, nested)
}

func TestWatcher_IgnoresHiddenAndBackupFiles(t *testing.T) {
	root := t.TempDir()

	changes := make(chan string, 16)
	w, err := NewWatcher([]string{root}, func(p string) { changes <- p })
	require.NoError(t, err)
	defer w.Stop()
	go w.Run()

	require.NoError(t, os.WriteFile(filepath.Join(root, ".comm.hpp.swp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "comm.hpp~"), []byte("x"), 0o644))
	select {
	case got := <-changes:
		t.Fatalf("unexpected change for %s", got)
	case <-time.After(200 * time.Millisecond):
		// ok
	}

	header := filepath.Join(root, "comm.hpp")
	require.NoError(t, os.WriteFile(header, []byte("#pragma once\n"), 0o644))
	awaitChange(t, changes, header)
}

func TestWatcher_MissingPathIsSkipped(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher([]string{filepath.Join(dir, "does-not-exist")}, func(string) {})
	require.NoError(t, err)
	w.Stop()
}

func TestWatcher_StopEndsRun(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher([]string{dir}, func(string) {})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	w.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
