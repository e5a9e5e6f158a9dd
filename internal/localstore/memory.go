package localstore

import "sync"

// Memory is an ephemeral Store used by tests and by agent runs that do not
// need durability.
type Memory struct {
	kvStore
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	store := &Memory{}
	store.kvStore = kvStore{kv: &memoryBackend{data: make(map[string]string)}}
	return store
}

type memoryBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func (b *memoryBackend) load(key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	value, found := b.data[key]
	return value, found, nil
}

func (b *memoryBackend) save(key string, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}
