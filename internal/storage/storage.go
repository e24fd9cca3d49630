// Package storage persists decrypted files once a transfer completes.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPath = errors.New("storage: invalid path")
	ErrNotFound    = errors.New("storage: file not found")
)

// Persister is the write side used by the dispatcher.
type Persister interface {
	Persist(name string, data []byte) error
}

// Backend adds the read side used by the admin surface and tests.
type Backend interface {
	Persister
	Read(name string) ([]byte, error)
	List(prefix string) ([]string, error)
}

const (
	BackendFS     = "fs"
	BackendMemory = "memory"
)

// Open builds the backend named by kind.
func Open(kind string, root string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", BackendFS:
		return NewFS(root), nil
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q (expected %s or %s)", kind, BackendFS, BackendMemory)
	}
}

func cleanName(name string) (string, error) {
	rel := strings.TrimSpace(name)
	if rel == "" {
		return "", fmt.Errorf("%w: missing name", ErrInvalidPath)
	}
	return rel, nil
}
