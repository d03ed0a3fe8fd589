package artifact

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Blob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Blob),
	}
}

func (s *MemoryStore) Put(_ context.Context, runID, name string, blob Blob) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	runID, name, err := normalizeKey(runID, name)
	if err != nil {
		return err
	}
	blob = blob.clone()
	blob.ContentType = blob.contentType()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectKey(runID, name)] = blob
	return nil
}

func (s *MemoryStore) Get(_ context.Context, runID, name string) (Blob, error) {
	if s == nil {
		return Blob{}, fmt.Errorf("store is nil")
	}
	runID, name, err := normalizeKey(runID, name)
	if err != nil {
		return Blob{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.data[objectKey(runID, name)]
	if !ok {
		return Blob{}, ErrNotFound
	}
	return blob.clone(), nil
}

func (s *MemoryStore) List(_ context.Context, runID string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	runID, err := normalizeRunID(runID)
	if err != nil {
		return nil, err
	}
	prefix := runID + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 8)
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) GetURL(context.Context, string, string) (string, error) {
	return "", nil
}
