package changetracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/harun/agentdiff/pkg/livedoc"
)

// memStore is an in-memory ContentStore with hooks for failure injection
type memStore struct {
	files     map[string][]byte
	reads     int
	readHook  func(ctx context.Context, path string) error
	writeErrs map[string]error
	mu        sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		files:     make(map[string][]byte),
		writeErrs: make(map[string]error),
	}
}

func (m *memStore) set(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(content)
}

func (m *memStore) get(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	return string(data), ok
}

func (m *memStore) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *memStore) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	m.reads++
	hook := m.readHook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, path); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, livedoc.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *memStore) Write(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErrs[path]; err != nil {
		return err
	}
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErrs[path]; err != nil {
		return err
	}
	delete(m.files, path)
	return nil
}

var errDiskFull = errors.New("disk full")
