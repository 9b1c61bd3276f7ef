package photo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScan(t *testing.T) {
	dir := t.TempDir()
	files := []string{"b.jpg", "a.jpeg", "c.png", "notes.txt", "raw.heic"}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	result, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	if len(result.Photos) != 3 {
		t.Fatalf("expected 3 photos, got %d", len(result.Photos))
	}
	if result.Skipped != 2 {
		t.Errorf("expected 2 skipped files, got %d", result.Skipped)
	}

	// Ordered by path for reproducible runs.
	want := []string{"a.jpeg", "b.jpg", "c.png"}
	for i, p := range result.Photos {
		if filepath.Base(p.Path) != want[i] {
			t.Errorf("photo %d = %s; want %s", i, filepath.Base(p.Path), want[i])
		}
		if p.ID == "" {
			t.Errorf("photo %d has empty ID", i)
		}
		if p.Size != 1 {
			t.Errorf("photo %d size = %d; want 1", i, p.Size)
		}
		if p.CaptureTime.IsZero() {
			t.Errorf("photo %d has zero capture time", i)
		}
	}
}

func TestScan_Subdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "trip")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, path := range []string{filepath.Join(dir, "top.jpg"), filepath.Join(sub, "nested.jpg")} {
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	result, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(result.Photos) != 2 {
		t.Errorf("expected 2 photos including nested, got %d", len(result.Photos))
	}
}

func TestScan_Errors(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}

	file := filepath.Join(t.TempDir(), "file.jpg")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Scan(file); err == nil {
		t.Error("expected error when source is a file")
	}
}
