package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Object is an upload captured by MemoryStorage.
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryStorage keeps uploads in memory. It serves local runs without an
// object store configured.
type MemoryStorage struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]Object
}

// NewMemoryStorage returns a MemoryStorage whose URIs are rooted at baseURL.
func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

// Upload records body under key.
func (m *MemoryStorage) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("memory storage: empty key")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("memory storage read %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.objects[key] = Object{ContentType: contentType, Data: buf.Bytes()}
	m.mu.Unlock()

	if m.baseURL == "" {
		return key, nil
	}
	return m.baseURL + "/" + key, nil
}

// Object returns the upload stored under key.
func (m *MemoryStorage) Object(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys lists every stored key.
func (m *MemoryStorage) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
