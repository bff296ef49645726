package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(filepath.Join(tmpDir, "nonexistent")) {
		t.Error("Exists returned true for non-existent file")
	}

	path := filepath.Join(tmpDir, "exists.txt")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Error("Exists returned false for existing file")
	}
}

func TestWriteAtomic(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "nested", "objects.parquet")

	err := WriteAtomic(outPath, func(tmpPath string) error {
		if tmpPath == outPath {
			t.Error("write received the final path")
		}
		return os.WriteFile(tmpPath, []byte("payload"), 0o644)
	})
	if err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Errorf("content = %q, want %q", got, "payload")
	}

	entries, _ := os.ReadDir(filepath.Dir(outPath))
	if len(entries) != 1 {
		t.Errorf("expected only the final file, found %d entries", len(entries))
	}
}

func TestWriteAtomicErrorKeepsOldFile(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "report.json")
	if err := os.WriteFile(outPath, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	wantErr := errors.New("disk full")
	err := WriteAtomic(outPath, func(tmpPath string) error {
		_ = os.WriteFile(tmpPath, []byte("half"), 0o644)
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}

	got, _ := os.ReadFile(outPath)
	if string(got) != "old" {
		t.Errorf("existing file was modified: %q", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp file not removed, %d entries", len(entries))
	}
}

func TestCleanupPartial(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"objects.parquet.123.partial",
		"objects.parquet.456.partial",
		"objects.parquet",
		"other.parquet.1.partial",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := CleanupPartial(dir, "objects.parquet")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if !Exists(filepath.Join(dir, "objects.parquet")) || !Exists(filepath.Join(dir, "other.parquet.1.partial")) {
		t.Error("unrelated files were removed")
	}
}
