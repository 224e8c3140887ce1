package memory

import (
	"context"
	"sync"
	"time"
)

// Turn — одна реплика диалога в треде расследования
type Turn struct {
	Role string    `json:"role"` // "user" | "assistant"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Store — память диалогов, ключ — thread_id. Треды изолированы друг от
// друга; кросс-тредового состояния нет.
type Store interface {
	AppendTurn(ctx context.Context, threadID string, turn Turn) error
	History(ctx context.Context, threadID string, limit int) ([]Turn, error)
}

// MemStore — процессная реализация для dev-режима и тестов
type MemStore struct {
	mu      sync.RWMutex
	threads map[string][]Turn
	cap     int // Максимум реплик на тред
}

func NewMemStore() *MemStore {
	return &MemStore{threads: make(map[string][]Turn), cap: 50}
}

func (s *MemStore) AppendTurn(_ context.Context, threadID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.threads[threadID], turn)
	if len(turns) > s.cap {
		turns = turns[len(turns)-s.cap:]
	}
	s.threads[threadID] = turns
	return nil
}

func (s *MemStore) History(_ context.Context, threadID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.threads[threadID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}
