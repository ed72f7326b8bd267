package directory

import (
	"context"
	"sync"
)

// MemoryStore keeps the directory in process memory. Process restart loses all entries.
type MemoryStore struct {
	mu       sync.RWMutex
	byUser   map[string]string
	byNumber map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: map[string]string{}, byNumber: map[string]string{}}
}

func (s *MemoryStore) NumberFor(ctx context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byUser[userID]
	return n, ok, nil
}

func (s *MemoryStore) UserFor(ctx context.Context, number string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byNumber[number]
	return u, ok, nil
}

func (s *MemoryStore) Claim(ctx context.Context, userID, number string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byUser[userID]; ok {
		return existing, false, nil
	}
	if _, taken := s.byNumber[number]; taken {
		return "", false, ErrNumberTaken
	}
	s.byUser[userID] = number
	s.byNumber[number] = userID
	return number, true, nil
}

// Len returns the number of allocated entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser)
}
