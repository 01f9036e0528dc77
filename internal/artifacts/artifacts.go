// Package artifacts stores rendered run logs.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Artifact is a rendered run log. Location is empty until it has been stored.
type Artifact struct {
	Name        string
	ContentType string
	Content     []byte
	Location    string
}

type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (location string, err error)
}

// DirStore writes artifacts as files below Dir.
type DirStore struct {
	Dir string
}

func (s DirStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("artifact dir: %w", err)
	}
	p := filepath.Join(s.Dir, filepath.Base(name))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return p, nil
}

// MemoryStore keeps artifacts in memory.
type MemoryStore struct {
	mu    sync.Mutex
	Items map[string][]byte
}

func (s *MemoryStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Items == nil {
		s.Items = map[string][]byte{}
	}
	s.Items[name] = append([]byte(nil), data...)
	return "mem://" + name, nil
}
