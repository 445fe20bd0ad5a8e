package credstore

import (
	"encoding/json"
	"os"
	"sync"
)

// Scope is one of the two key-value stores credentials can live in. Storage
// failures are deliberately indistinguishable from absence: a scope that
// cannot read or write behaves as if it were empty, and the caller degrades
// to logged out.
type Scope interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
}

// MemScope keeps values for the lifetime of the process. It is the ephemeral
// scope: nothing survives a restart.
type MemScope struct {
	mu sync.Mutex
	values map[string]string
}

func NewMemScope() *MemScope {
	return &MemScope{values: map[string]string{}}
}

func (m *MemScope) Get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

func (m *MemScope) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *MemScope) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// FileScope persists values as a JSON object at a fixed path. It is the
// durable scope: values survive across runs.
type FileScope struct {
	mu sync.Mutex
	path string
}

func NewFileScope(path string) *FileScope {
	return &FileScope{path: path}
}

func (f *FileScope) load() map[string]string {
	values := map[string]string{}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return values
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return map[string]string{}
	}
	return values
}

func (f *FileScope) save(values map[string]string) {
	data, err := json.Marshal(values)
	if err != nil {
		return
	}
	os.WriteFile(f.path, data, 0600)
}

func (f *FileScope) Get(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()[key]
}

func (f *FileScope) Set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.load()
	values[key] = value
	f.save(values)
}

func (f *FileScope) Delete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.load()
	if _, ok := values[key]; !ok {
		return
	}
	delete(values, key)
	f.save(values)
}
