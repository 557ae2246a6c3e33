package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore persists one value of type T as an indented JSON file. Writes go
// to a temp file that is renamed over the target.
type JSONStore[T any] struct {
	mu       sync.Mutex
	filePath string
}

// NewJSONStore creates dataDir if needed and returns a store for dataDir/filename.
func NewJSONStore[T any](dataDir, filename string) (*JSONStore[T], error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	return &JSONStore[T]{
		filePath: filepath.Join(dataDir, filename),
	}, nil
}

func (s *JSONStore[T]) Path() string {
	return s.filePath
}

// Load returns the stored value, or the zero value of T if nothing has been
// saved yet.
func (s *JSONStore[T]) Load() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out T
	file, err := os.Open(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return out, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&out); err != nil {
		return out, fmt.Errorf("storage: decode %s: %w", s.filePath, err)
	}
	return out, nil
}

func (s *JSONStore[T]) Save(data T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempFile := s.filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		file.Close()
		os.Remove(tempFile)
		return fmt.Errorf("storage: encode %s: %w", s.filePath, err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, s.filePath)
}

func (s *JSONStore[T]) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.filePath)
	return err == nil
}
