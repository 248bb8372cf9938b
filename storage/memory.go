package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/Mustafaygtbs/CertificateManagement/utils"
)

// MemoryStore keeps blobs in process memory. Contents vanish on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("storage/memory/Upload: %w", err)
	}
	key := utils.ObjectKey(folder, contentType)
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.blobs[key] = buf
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryStore) Download(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("storage/memory/Download: %w", err)
	}
	m.mu.RLock()
	data, ok := m.blobs[path]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	delete(m.blobs, path)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
