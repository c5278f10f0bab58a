// Package baseline provides behavioral pattern history stores.
package baseline

import (
	"context"
	"sync"

	"github.com/opensource-identity/kestrel/internal/domain"
)

// maxHistoryPerUser bounds the in-memory history kept for one user.
const maxHistoryPerUser = 50

// MemoryStore is an in-process baseline store for the Community tier.
// History is bounded per user; the oldest samples fall off.
type MemoryStore struct {
	mu       sync.RWMutex
	patterns map[string][]*domain.BehavioralPattern // newest first
}

// NewMemoryStore creates an empty in-memory baseline store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patterns: make(map[string][]*domain.BehavioralPattern),
	}
}

// Append records a new behavioral sample for the user.
func (s *MemoryStore) Append(_ context.Context, tenantID string, userID string, pattern *domain.BehavioralPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tenantID + "/" + userID
	clone := *pattern
	history := append([]*domain.BehavioralPattern{&clone}, s.patterns[key]...)
	if len(history) > maxHistoryPerUser {
		history = history[:maxHistoryPerUser]
	}
	s.patterns[key] = history
	return nil
}

// History returns up to limit most recent samples, newest first.
func (s *MemoryStore) History(_ context.Context, tenantID string, userID string, limit int) ([]*domain.BehavioralPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.patterns[tenantID+"/"+userID]
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}

	out := make([]*domain.BehavioralPattern, len(history))
	copy(out, history)
	return out, nil
}

// RepositoryStore persists baselines through the repository so history
// survives restarts and is shared across instances (Pro tier).
type RepositoryStore struct {
	repo domain.Repository
}

// NewRepositoryStore creates a repository-backed baseline store.
func NewRepositoryStore(repo domain.Repository) *RepositoryStore {
	return &RepositoryStore{repo: repo}
}

func (s *RepositoryStore) Append(ctx context.Context, tenantID string, userID string, pattern *domain.BehavioralPattern) error {
	return s.repo.AppendBaseline(ctx, tenantID, userID, pattern)
}

func (s *RepositoryStore) History(ctx context.Context, tenantID string, userID string, limit int) ([]*domain.BehavioralPattern, error) {
	return s.repo.GetBaseline(ctx, tenantID, userID, limit)
}
