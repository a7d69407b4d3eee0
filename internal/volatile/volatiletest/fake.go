// Package volatiletest provides an in-process fake of volatile.Store for
// tests of higher-level packages, mirroring the hand-rolled-fake-behind-
// the-interface pattern used throughout the teacher's own test helpers
// instead of spinning up a real Redis instance.
package volatiletest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fractalcore/agentmem/internal/model"
	"github.com/fractalcore/agentmem/internal/volatile"
)

// Store is a goroutine-safe, memory-backed volatile.Store.
type Store struct {
	mu sync.Mutex

	l0 map[string][]model.Episode // userID -> oldest-first
	l1 map[string]map[string]volatile.L1Record // userID -> sessionID -> record

	locks map[string]lockEntry
}

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// New returns an empty fake Store.
func New() *Store {
	return &Store{
		l0:    make(map[string][]model.Episode),
		l1:    make(map[string]map[string]volatile.L1Record),
		locks: make(map[string]lockEntry),
	}
}

func (s *Store) L0Append(_ context.Context, userID string, episode model.Episode, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := append(s.l0[userID], episode)
	if len(log) > capacity {
		log = log[len(log)-capacity:]
	}
	s.l0[userID] = log
	return nil
}

func (s *Store) L0Read(_ context.Context, userID string, n int) ([]model.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.l0[userID]
	out := make([]model.Episode, 0, n)
	for i := len(log) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

func (s *Store) L0RangePop(_ context.Context, userID string, k int) ([]model.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.l0[userID]
	if k > len(log) {
		k = len(log)
	}
	popped := append([]model.Episode(nil), log[:k]...)
	s.l0[userID] = log[k:]
	return popped, nil
}

func (s *Store) L1Put(_ context.Context, userID string, record volatile.L1Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.l1[userID] == nil {
		s.l1[userID] = make(map[string]volatile.L1Record)
	}
	s.l1[userID][record.SessionID] = record
	return nil
}

func (s *Store) L1List(_ context.Context, userID string, limit int) ([]volatile.L1Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]volatile.L1Record, 0, len(s.l1[userID]))
	for _, r := range s.l1[userID] {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *Store) L1Delete(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.l1[userID], sessionID)
	return nil
}

func (s *Store) LockAcquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.locks[key]; ok && existing.expiresAt.After(now) {
		return "", false, nil
	}
	token := uuid.NewString()
	s.locks[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (s *Store) LockRelease(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.locks[key]
	if !ok || existing.token != token || existing.expiresAt.Before(time.Now()) {
		return false, nil
	}
	delete(s.locks, key)
	return true, nil
}

func (s *Store) Close() error { return nil }

var _ volatile.Store = (*Store)(nil)
