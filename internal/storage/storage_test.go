package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/sealdrop/internal/testutil/testlog"
)

func TestFSPersistReadList(t *testing.T) {
	testlog.Start(t)
	root := filepath.Join(t.TempDir(), "local", "received")
	s := NewFS(root)

	if err := s.Persist("reports/a.txt", []byte("hello")); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := s.Persist("reports/a.txt", []byte("hello again")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := s.Read("reports/a.txt")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "hello again" {
		t.Fatalf("unexpected content: %q", got)
	}
	onDisk, err := os.ReadFile(filepath.Join(root, "reports", "a.txt"))
	if err != nil || string(onDisk) != "hello again" {
		t.Fatalf("unexpected file on disk: %q err=%v", onDisk, err)
	}

	keys, err := s.List("reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 || keys[0] != "reports/a.txt" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestFSRejectsEscapingPaths(t *testing.T) {
	s := NewFS(t.TempDir())
	for _, name := range []string{"", "   ", "/etc/passwd", "../outside.txt", "a/../../outside.txt", "."} {
		if err := s.Persist(name, []byte("x")); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("%q: expected ErrInvalidPath, got %v", name, err)
		}
	}
}

func TestFSReadMissing(t *testing.T) {
	s := NewFS(t.TempDir())
	if _, err := s.Read("nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFSListMissingRoot(t *testing.T) {
	s := NewFS(filepath.Join(t.TempDir(), "missing"))
	keys, err := s.List("")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected no keys, got %v", keys)
	}
}

func TestMemoryPersistCopiesData(t *testing.T) {
	m := NewMemory()
	data := []byte("abc")
	if err := m.Persist("f.txt", data); err != nil {
		t.Fatalf("persist: %v", err)
	}
	data[0] = 'z'
	got, err := m.Read("f.txt")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("persist must copy input: %q", got)
	}
	if _, err := m.Read("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.Persist(" ", nil); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	if b, err := Open("memory", ""); err != nil {
		t.Fatalf("open memory: %v", err)
	} else if _, ok := b.(*Memory); !ok {
		t.Fatalf("unexpected backend %T", b)
	}
	if b, err := Open("", "x"); err != nil || b.(FS).Root() != "x" {
		t.Fatalf("open default: %v", err)
	}
	if _, err := Open("s3", ""); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}
