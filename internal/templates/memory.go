package templates

import (
	"context"
	"sync"
	"time"

	"whatsapp-sender/internal/whatsapp"
)

type memoryEntry struct {
	templates []whatsapp.Template
	expires   time.Time
}

// MemoryBackend keeps listings in process memory.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]whatsapp.Template, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.templates, true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, templates []whatsapp.Template, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{templates: templates, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}
