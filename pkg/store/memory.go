package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/types"
)

// Memory is an in-process DocumentStore. Documents are kept encoded, so a
// value read back never aliases the one that was written.
type Memory struct {
	mu     sync.Mutex
	docs   map[string][]byte
	writes int
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func (m *Memory) Read(ctx context.Context, key string, dst any) error {
	m.mu.Lock()
	data, ok := m.docs[key]
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", types.ErrStorage, key, err)
	}
	return nil
}

func (m *Memory) Write(ctx context.Context, key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", types.ErrStorage, key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = data
	m.writes++
	return nil
}

// Raw returns the encoded document and whether it exists.
func (m *Memory) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[key]
	return data, ok
}

// Writes reports how many writes the store has accepted.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

var _ interfaces.DocumentStore = (*Memory)(nil)
