package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileKV keeps all slots in a single JSON document on disk. The document is
// read once by Load and rewritten after every mutation.
type FileKV struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// NewFileKV returns a FileKV bound to path. Call Load before use.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path, values: make(map[string]string)}
}

// Load reads the document. A missing file yields an empty store.
func (s *FileKV) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.values = make(map[string]string)
			return nil
		}
		return fmt.Errorf("open storage: %w", err)
	}
	defer f.Close()

	values := make(map[string]string)
	if err := json.NewDecoder(f).Decode(&values); err != nil {
		return fmt.Errorf("decode storage %s: %w", s.path, err)
	}
	s.values = values
	return nil
}

// Get implements KV.
func (s *FileKV) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set implements KV.
func (s *FileKV) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	return s.save()
}

// Remove implements KV.
func (s *FileKV) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.save()
}

// save writes to a temp file and renames it over the document so a crash
// never leaves a half-written file. Caller holds mu.
func (s *FileKV) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	if err := json.NewEncoder(f).Encode(s.values); err != nil {
		f.Close()
		return fmt.Errorf("encode storage: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// MemoryKV is a KV that lives only for the process.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// GetJSON decodes the JSON value stored under key into v. It reports false
// when the slot is empty or holds malformed JSON; in the latter case the
// decode error is returned so callers can log it and must discard v.
func GetJSON(kv KV, key string, v any) (bool, error) {
	raw, ok := kv.Get(key)
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v under key as JSON.
func SetJSON(kv KV, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(key, string(b))
}
