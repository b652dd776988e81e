package memory

import (
	"context"
	"sort"
	"sync"

	"teach-quiz-service/internal/domain"
)

// ParticipationStore is an in-memory implementation of app.ParticipationRepository.
type ParticipationStore struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.ParticipationRecord
}

func NewParticipationStore() *ParticipationStore {
	return &ParticipationStore{
		records: make(map[string]map[string]domain.ParticipationRecord),
	}
}

func (s *ParticipationStore) GetRecord(_ context.Context, quizID, email string) (domain.ParticipationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[quizID][email]
	if !ok {
		return domain.ParticipationRecord{}, domain.ErrParticipationNotFound
	}
	return rec.Clone(), nil
}

func (s *ParticipationStore) InsertRecord(_ context.Context, rec domain.ParticipationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byEmail, ok := s.records[rec.QuizID]
	if !ok {
		byEmail = make(map[string]domain.ParticipationRecord)
		s.records[rec.QuizID] = byEmail
	}
	if _, exists := byEmail[rec.StudentEmail]; exists {
		return domain.ErrRecordExists
	}
	byEmail[rec.StudentEmail] = rec.Clone()
	return nil
}

func (s *ParticipationStore) UpdateRecord(_ context.Context, rec domain.ParticipationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[rec.QuizID][rec.StudentEmail]
	if !ok {
		return domain.ErrParticipationNotFound
	}
	if current.Version != rec.Version-1 {
		return domain.ErrStaleRecord
	}
	s.records[rec.QuizID][rec.StudentEmail] = rec.Clone()
	return nil
}

func (s *ParticipationStore) ListRecords(_ context.Context, quizID string) ([]domain.ParticipationRecord, error) {
	s.mu.RLock()
	out := make([]domain.ParticipationRecord, 0, len(s.records[quizID]))
	for _, rec := range s.records[quizID] {
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

func (s *ParticipationStore) DeleteRecords(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, quizID)
	return nil
}

func sortRecords(recs []domain.ParticipationRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].StartedAt.Equal(recs[j].StartedAt) {
			return recs[i].StartedAt.Before(recs[j].StartedAt)
		}
		return recs[i].StudentEmail < recs[j].StudentEmail
	})
}
