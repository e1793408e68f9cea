package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the default single-process backend: a mutex-guarded map
// with TTL eviction on access plus an optional background sweep.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl time.Duration
	now func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	if s.Expired(m.now(), m.ttl) {
		delete(m.sessions, key)
		return nil, nil
	}
	cp := *s
	cp.Transcripts = append([]string(nil), s.Transcripts...)
	return &cp, nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Transcripts = append([]string(nil), s.Transcripts...)
	m.sessions[s.Key] = &cp
	return nil
}

func (m *MemoryStore) Advance(_ context.Context, s *Session, from Stage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[s.Key]
	if !ok || cur.Expired(m.now(), m.ttl) {
		// A fresh session may legitimately advance out of the location
		// stage before its first Put lands; anything else lost the race.
		if from != StageLocation {
			return false, nil
		}
	} else if cur.Stage != from {
		return false, nil
	}

	cp := *s
	cp.Transcripts = append([]string(nil), s.Transcripts...)
	m.sessions[s.Key] = &cp
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// SweepExpired evicts expired sessions and returns how many were removed.
func (m *MemoryStore) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for key, s := range m.sessions {
		if s.Expired(now, m.ttl) {
			delete(m.sessions, key)
			n++
		}
	}
	return n
}

// StartSweeper runs SweepExpired on a ticker until ctx is done. Memory
// growth is otherwise unbounded because callers who hang up never close
// their sessions.
func (m *MemoryStore) StartSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.SweepExpired()
			}
		}
	}()
}

// Len is exposed for tests and debugging.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
