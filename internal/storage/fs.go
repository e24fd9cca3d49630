package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultRoot is where received files land when no root is configured.
var DefaultRoot = filepath.Join("local", "received")

// FS writes files beneath a root directory.
type FS struct {
	root string
}

func NewFS(root string) FS {
	resolved := strings.TrimSpace(root)
	if resolved == "" {
		resolved = DefaultRoot
	}
	return FS{root: resolved}
}

func (s FS) Root() string {
	return s.root
}

// Persist replaces name with data. The write goes through a temp file in the
// same directory so readers never see a partial file.
func (s FS) Persist(name string, data []byte) error {
	p, err := s.resolvePath(name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage.fs: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sealdrop-*")
	if err != nil {
		return fmt.Errorf("storage.fs: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage.fs: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage.fs: close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("storage.fs: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("storage.fs: rename: %w", err)
	}
	return nil
}

func (s FS) Read(name string) ([]byte, error) {
	p, err := s.resolvePath(name)
	if err != nil {
		return nil, err
	}
	out, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return out, err
}

func (s FS) List(prefix string) ([]string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, err
	}
	prefix = strings.TrimSpace(prefix)
	keys := make([]string, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return walkErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".sealdrop-") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(rel, prefix) {
			keys = append(keys, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s FS) resolvePath(name string) (string, error) {
	rel, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrInvalidPath)
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	p := filepath.Clean(filepath.Join(root, rel))
	if p == root || !isWithin(p, root) {
		return "", fmt.Errorf("%w: path escapes root", ErrInvalidPath)
	}
	return p, nil
}

func isWithin(path string, root string) bool {
	p := filepath.Clean(path)
	r := filepath.Clean(root)
	if p == r {
		return true
	}
	return strings.HasPrefix(p, r+string(os.PathSeparator))
}
