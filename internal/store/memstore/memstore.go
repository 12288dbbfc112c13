// Package memstore provides a process-local, in-memory implementation of
// store.Store. It backs tests across the module and is also forwardctl's
// default "memory" store backend, for runs where durability across process
// restarts is not required.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/store"
)

type nodeKey struct {
	key        string
	reportStep int
	iens       int
	state      rundesc.State
}

type kwKey struct {
	reportStep int
	iens       int
}

// Store is safe for concurrent use across disjoint keys, matching the
// concurrency contract store.Store documents.
type Store struct {
	mu       sync.RWMutex
	nodes    map[nodeKey][]byte
	keywords map[kwKey][]string
	simTimes map[int]map[int]time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		nodes:    make(map[nodeKey][]byte),
		keywords: make(map[kwKey][]string),
		simTimes: make(map[int]map[int]time.Time),
	}
}

func (s *Store) PutNode(_ context.Context, key string, reportStep, iens int, state rundesc.State, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.nodes[nodeKey{key, reportStep, iens, state}] = cp
	return nil
}

func (s *Store) GetNode(_ context.Context, key string, reportStep, iens int, state rundesc.State) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.nodes[nodeKey{key, reportStep, iens, state}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *Store) PutRestartKeywords(_ context.Context, reportStep, iens int, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(keys))
	copy(cp, keys)
	s.keywords[kwKey{reportStep, iens}] = cp
	return nil
}

func (s *Store) GetRestartKeywords(_ context.Context, reportStep, iens int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys, ok := s.keywords[kwKey{reportStep, iens}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := make([]string, len(keys))
	copy(cp, keys)
	return cp, nil
}

func (s *Store) PutSimTimes(_ context.Context, iens int, times map[int]time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[int]time.Time, len(times))
	for k, v := range times {
		cp[k] = v
	}
	s.simTimes[iens] = cp
	return nil
}

func (s *Store) GetSimTimes(_ context.Context, iens int) (map[int]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	times, ok := s.simTimes[iens]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := make(map[int]time.Time, len(times))
	for k, v := range times {
		cp[k] = v
	}
	return cp, nil
}
