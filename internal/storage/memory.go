package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory keeps persisted files in process memory.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		files: make(map[string][]byte),
	}
}

func (m *Memory) Persist(name string, data []byte) error {
	key, err := cleanName(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.files[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Read(name string) ([]byte, error) {
	key, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.files[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) List(prefix string) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	m.mu.RLock()
	keys := make([]string, 0, len(m.files))
	for k := range m.files {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}
