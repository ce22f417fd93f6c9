package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteOutputFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "run.job")

	if err := WriteOutputFile(path, []byte("first\n"), false); err != nil {
		t.Fatalf("WriteOutputFile: %v", err)
	}
	if !FileExists(path) {
		t.Fatalf("expected %s to exist", path)
	}
	if !DirExists(filepath.Dir(path)) {
		t.Fatalf("expected parent directory to be created")
	}

	err := WriteOutputFile(path, []byte("second\n"), false)
	if !errors.Is(err, ErrFileExists) {
		t.Fatalf("second write without force: got %v; want ErrFileExists", err)
	}

	if err := WriteOutputFile(path, []byte("second\n"), true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second\n" {
		t.Errorf("content = %q; want %q", data, "second\n")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the output file, found %d entries", len(entries))
	}
}

func TestWriteOutputFileDirectory(t *testing.T) {
	if err := WriteOutputFile(t.TempDir(), []byte("x"), true); err == nil {
		t.Fatal("expected error writing over a directory")
	}
}

func TestFileChecks(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if !FileExists(file) || FileExists(dir) || FileExists(filepath.Join(dir, "missing")) {
		t.Error("FileExists returned unexpected results")
	}
	if !DirExists(dir) || DirExists(file) {
		t.Error("DirExists returned unexpected results")
	}
	if err := EnsureDir(filepath.Join(dir, "a", "b")); err != nil {
		t.Errorf("EnsureDir: %v", err)
	}
}
