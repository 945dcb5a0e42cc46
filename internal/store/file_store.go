package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/lo"

	"github.com/wirechat/wirechat/internal/domain"
)

// FileStore keeps the full history in memory and mirrors it to a single
// JSON file, rewritten whole on every mutation. That is the on-disk
// contract this service inherits; it is a known scaling ceiling and is
// acceptable only while message volume stays low.
type FileStore struct {
	mu       sync.Mutex
	path     string
	messages []domain.Message
}

// NewFileStore opens (or creates) the store at path. A missing file is
// an empty history; an unreadable or corrupt file is an error so the
// operator sees it instead of the service silently truncating history
// on the next write.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}

	if err := json.Unmarshal(data, &s.messages); err != nil {
		return nil, fmt.Errorf("parse store file %s: %w", path, err)
	}

	return s, nil
}

func (s *FileStore) Append(msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.Message, len(s.messages), len(s.messages)+1)
	copy(next, s.messages)
	next = append(next, msg)

	if err := s.persist(next); err != nil {
		return err
	}
	s.messages = next
	return nil
}

func (s *FileStore) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := lo.Filter(s.messages, func(m domain.Message, _ int) bool {
		return m.ID != id
	})
	if len(next) == len(s.messages) {
		return false, nil
	}

	if err := s.persist(next); err != nil {
		return false, err
	}
	s.messages = next
	return true, nil
}

func (s *FileStore) All() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// persist writes msgs to a temp file in the store directory and renames
// it into place, so readers of the file never observe a partial write.
// Callers must hold s.mu.
func (s *FileStore) persist(msgs []domain.Message) error {
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".messages-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStoreUnavailable, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp file: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", ErrStoreUnavailable, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename temp file: %v", ErrStoreUnavailable, err)
	}

	return nil
}
