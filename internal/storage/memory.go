package storage

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps questions in a map guarded by a mutex. Nothing survives
// a restart; ids come from a counter that is never rewound, so deleting a
// record does not free its id.
type MemoryStore struct {
	mu        sync.Mutex
	questions map[int64]Question
	nextID    int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questions: make(map[int64]Question),
		nextID:    1,
	}
}

func (s *MemoryStore) Create(text string, userID *int64) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := Question{
		ID:        s.nextID,
		Text:      text,
		Outcome:   Pending(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	s.nextID++
	s.questions[q.ID] = q
	return q, nil
}

func (s *MemoryStore) Get(id int64) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return Question{}, ErrNotFound
	}
	return q, nil
}

func (s *MemoryStore) ListByUser(userID int64) ([]Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []Question
	for _, q := range s.questions {
		if q.UserID != nil && *q.UserID == userID {
			results = append(results, q)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID > results[j].ID
	})
	return results, nil
}

func (s *MemoryStore) ListRecent(limit int) ([]Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]Question, 0, len(s.questions))
	for _, q := range s.questions {
		results = append(results, q)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID > results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) SetOutcome(id int64, o Outcome) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return Question{}, ErrNotFound
	}
	q.Outcome = o
	s.questions[id] = q
	return q, nil
}

func (s *MemoryStore) Delete(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[id]; !ok {
		return false, nil
	}
	delete(s.questions, id)
	return true, nil
}

func (s *MemoryStore) DeleteByUser(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, q := range s.questions {
		if q.UserID != nil && *q.UserID == userID {
			delete(s.questions, id)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
