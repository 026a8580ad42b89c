// Package objectstore holds evidence bytes addressed by key.
package objectstore

import (
	"context"
	"sync"

	"vouch/pkg/platform/sentinel"
)

// Object is a stored blob and the content type it was written with.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is the contract ingestion and viewing depend on. Get returns
// sentinel.ErrNotFound for unknown keys.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
}

// InMemoryStore is a Store for tests and local development.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	putErr  error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[string]Object)}
}

// FailPutsWith makes every subsequent Put return err. Pass nil to recover.
func (s *InMemoryStore) FailPutsWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

func (s *InMemoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &Object{Data: append([]byte(nil), obj.Data...), ContentType: obj.ContentType}, nil
}

// Keys lists stored keys in no particular order.
func (s *InMemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
