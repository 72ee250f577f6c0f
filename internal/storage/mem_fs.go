package storage

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/micro-nova/slidered/internal/models"
)

// MemFS is an in-memory FS for tests that never touches disk.
// HoldWrites makes writes block until released, so tests can act while a
// write is in flight.
type MemFS struct {
	mu       sync.Mutex
	files    map[string][]byte
	gate     chan struct{}
	started  chan string
	writeErr error
	writes   int
}

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

// Put stores data under uri without going through Write.
func (m *MemFS) Put(uri string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[uri] = append([]byte(nil), data...)
}

// Get returns a copy of the content stored under uri.
func (m *MemFS) Get(uri string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[uri]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Writes returns the number of committed writes.
func (m *MemFS) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailWrites makes every following write fail with err. Pass nil to clear.
func (m *MemFS) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// HoldWrites blocks all following writes until the returned release func is
// called. The returned channel receives the URI of each write as it starts
// waiting.
func (m *MemFS) HoldWrites() (started <-chan string, release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	ch := make(chan string, 16)
	m.gate = gate
	m.started = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
				m.started = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Read returns the content stored under uri.
func (m *MemFS) Read(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	data, ok := m.Get(uri)
	if !ok {
		return nil, fmt.Errorf("read %s: %w: %w", uri, models.ErrIO, os.ErrNotExist)
	}
	return data, nil
}

// Write stores data under uri. Cancellation while the write is held leaves
// the previous content in place.
func (m *MemFS) Write(ctx context.Context, uri string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("write %s: %w", uri, err)
	}
	m.mu.Lock()
	gate, started := m.gate, m.started
	m.mu.Unlock()

	if gate != nil {
		select {
		case started <- uri:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return fmt.Errorf("write %s: %w", uri, ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return fmt.Errorf("write %s: %w: %w", uri, models.ErrIO, m.writeErr)
	}
	m.files[uri] = append([]byte(nil), data...)
	m.writes++
	return nil
}

// Remove deletes uri. A missing entry is not an error.
func (m *MemFS) Remove(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("remove %s: %w", uri, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, uri)
	return nil
}

// Ensure MemFS implements FS
var _ FS = (*MemFS)(nil)
