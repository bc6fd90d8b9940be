package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestExportWatcher_StartStop(t *testing.T) {
	w, err := New(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if w.IsRunning() {
		t.Error("newly created watcher should not be running")
	}
	if err := w.Start(t.TempDir()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !w.IsRunning() {
		t.Error("watcher should be running after Start()")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher should not be running after Stop()")
	}
}

func TestExportWatcher_StartAlreadyRunning(t *testing.T) {
	w, err := New(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer w.Stop()

	dir := t.TempDir()
	if err := w.Start(dir); err != nil {
		t.Fatalf("first Start() failed: %v", err)
	}
	if err := w.Start(dir); err == nil {
		t.Error("second Start() should fail while running")
	}
}

func TestExportWatcher_DebouncesCSVDrops(t *testing.T) {
	dir := t.TempDir()
	w, err := New(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer w.Stop()
	if err := w.Start(dir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Two files and a rewrite inside one debounce window.
	if err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte("material_id\n"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.csv"), []byte("material_id\n"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte("material_id\nM1\n"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	select {
	case event := <-w.Events():
		if len(event.Paths) != 2 {
			t.Errorf("got %d paths in batch, want 2 deduplicated: %v", len(event.Paths), event.Paths)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for debounced event")
	}

	// No trailing event once the directory is quiet.
	select {
	case event, ok := <-w.Events():
		if ok {
			t.Errorf("unexpected extra event: %v", event)
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestExportWatcher_IgnoresNonCSV(t *testing.T) {
	if got := relevant(fsnotify.Event{Name: "/exports/readme.txt", Op: fsnotify.Create}); got {
		t.Error("txt file should be ignored")
	}
	if got := relevant(fsnotify.Event{Name: "/exports/week1.csv", Op: fsnotify.Remove}); got {
		t.Error("removal should be ignored")
	}
	if got := relevant(fsnotify.Event{Name: "/exports/week1.CSV", Op: fsnotify.Create}); !got {
		t.Error("case-insensitive csv extension should match")
	}
}
