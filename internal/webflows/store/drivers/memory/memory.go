// Package memory is an in-process Store. Nothing survives a restart; it is
// meant for tests and short-lived tools.
package memory

import (
	"context"
	"sync"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/store"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func NewStore() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[namespace][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Put(_ context.Context, namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data[namespace], key)
	return nil
}

func (s *Store) Keys(_ context.Context, namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data[namespace]))
	for k := range s.data[namespace] {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *Store) Close() error { return nil }
