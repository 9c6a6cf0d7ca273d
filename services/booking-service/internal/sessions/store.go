package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/carejournal/services/booking-service/internal/wizard"
)

var ErrNotFound = errors.New("booking session not found")

// Store parks wizard snapshots between requests. Sessions expire after the
// store's TTL of inactivity.
type Store interface {
	Create(ctx context.Context, snap wizard.Snapshot) (string, error)
	Get(ctx context.Context, id string) (wizard.Snapshot, error)
	Save(ctx context.Context, id string, snap wizard.Snapshot) error
}

const DefaultTTL = 30 * time.Minute

type memoryEntry struct {
	snap      wizard.Snapshot
	expiresAt time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Create(_ context.Context, snap wizard.Snapshot) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[id] = memoryEntry{snap: snap, expiresAt: s.now().Add(s.ttl)}
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (wizard.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expiresAt) {
		delete(s.entries, id)
		return wizard.Snapshot{}, ErrNotFound
	}
	return e.snap, nil
}

// Save replaces an existing session and refreshes its TTL. Unknown or expired
// ids report ErrNotFound.
func (s *MemoryStore) Save(_ context.Context, id string, snap wizard.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expiresAt) {
		delete(s.entries, id)
		return ErrNotFound
	}
	s.entries[id] = memoryEntry{snap: snap, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) sweepLocked() {
	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}
