package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"teach-quiz-service/internal/domain"
)

// ParticipationStore keeps participation records in one hash per quiz:
//
//	HSET quiz:{quizID}:participants {email} {record JSON}
//
// Updates run inside WATCH/MULTI so two instances sharing Redis cannot both
// append to the same record version.
type ParticipationStore struct {
	client *redis.Client
}

func NewParticipationStore(client *redis.Client) *ParticipationStore {
	return &ParticipationStore{client: client}
}

func (s *ParticipationStore) GetRecord(ctx context.Context, quizID, email string) (domain.ParticipationRecord, error) {
	raw, err := s.client.HGet(ctx, s.key(quizID), email).Result()
	if errors.Is(err, redis.Nil) {
		return domain.ParticipationRecord{}, domain.ErrParticipationNotFound
	}
	if err != nil {
		return domain.ParticipationRecord{}, fmt.Errorf("get participation: %w", err)
	}
	return decodeRecord(raw)
}

func (s *ParticipationStore) InsertRecord(ctx context.Context, rec domain.ParticipationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal participation: %w", err)
	}
	created, err := s.client.HSetNX(ctx, s.key(rec.QuizID), rec.StudentEmail, data).Result()
	if err != nil {
		return fmt.Errorf("insert participation: %w", err)
	}
	if !created {
		return domain.ErrRecordExists
	}
	return nil
}

func (s *ParticipationStore) UpdateRecord(ctx context.Context, rec domain.ParticipationRecord) error {
	key := s.key(rec.QuizID)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal participation: %w", err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, rec.StudentEmail).Result()
		if errors.Is(err, redis.Nil) {
			return domain.ErrParticipationNotFound
		}
		if err != nil {
			return err
		}
		current, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if current.Version != rec.Version-1 {
			return domain.ErrStaleRecord
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, rec.StudentEmail, data)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return domain.ErrStaleRecord
	case errors.Is(err, domain.ErrStaleRecord), errors.Is(err, domain.ErrParticipationNotFound):
		return err
	default:
		return fmt.Errorf("update participation: %w", err)
	}
}

func (s *ParticipationStore) ListRecords(ctx context.Context, quizID string) ([]domain.ParticipationRecord, error) {
	all, err := s.client.HGetAll(ctx, s.key(quizID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	out := make([]domain.ParticipationRecord, 0, len(all))
	for _, raw := range all {
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].StudentEmail < out[j].StudentEmail
	})
	return out, nil
}

func (s *ParticipationStore) DeleteRecords(ctx context.Context, quizID string) error {
	if err := s.client.Del(ctx, s.key(quizID)).Err(); err != nil {
		return fmt.Errorf("delete participations: %w", err)
	}
	return nil
}

func (s *ParticipationStore) key(quizID string) string {
	return "quiz:" + quizID + ":participants"
}

func decodeRecord(raw string) (domain.ParticipationRecord, error) {
	var rec domain.ParticipationRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.ParticipationRecord{}, fmt.Errorf("unmarshal participation: %w", err)
	}
	if rec.Answers == nil {
		rec.Answers = []domain.Answer{}
	}
	return rec, nil
}
