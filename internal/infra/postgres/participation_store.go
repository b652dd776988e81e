package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"teach-quiz-service/internal/domain"
)

// ParticipationStore keeps one row per (quiz, student). The version column
// guards updates so concurrent writers on different instances cannot lose answers.
type ParticipationStore struct {
	pool *pgxpool.Pool
}

func NewParticipationStore(pool *pgxpool.Pool) *ParticipationStore {
	return &ParticipationStore{pool: pool}
}

const participationColumns = `quiz_id, student_email, student_name, answers, score, total_questions,
	started_at, completed_at, is_completed, version`

func (s *ParticipationStore) GetRecord(ctx context.Context, quizID, email string) (domain.ParticipationRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+participationColumns+`
FROM participations WHERE quiz_id=$1 AND student_email=$2`, quizID, email)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ParticipationRecord{}, domain.ErrParticipationNotFound
	}
	if err != nil {
		return domain.ParticipationRecord{}, fmt.Errorf("load participation: %w", err)
	}
	return rec, nil
}

func (s *ParticipationStore) InsertRecord(ctx context.Context, rec domain.ParticipationRecord) error {
	answers, err := marshalAnswers(rec.Answers)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
INSERT INTO participations (`+participationColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (quiz_id, student_email) DO NOTHING`,
		rec.QuizID, rec.StudentEmail, rec.StudentName, answers, rec.Score, rec.TotalQuestions,
		rec.StartedAt, rec.CompletedAt, rec.IsCompleted, rec.Version)
	if err != nil {
		return fmt.Errorf("insert participation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordExists
	}
	return nil
}

func (s *ParticipationStore) UpdateRecord(ctx context.Context, rec domain.ParticipationRecord) error {
	answers, err := marshalAnswers(rec.Answers)
	if err != nil {
		return err
	}
	// The quiz status is checked in the same statement, so a replica holding a
	// stale active quiz cannot record an answer once another one has finished it.
	tag, err := s.pool.Exec(ctx, `
UPDATE participations SET
	answers = $3, score = $4, completed_at = $5, is_completed = $6, version = $7
WHERE quiz_id = $1 AND student_email = $2 AND version = $8
	AND EXISTS (SELECT 1 FROM quizzes WHERE id = $1 AND status = $9)`,
		rec.QuizID, rec.StudentEmail, answers, rec.Score, rec.CompletedAt, rec.IsCompleted, rec.Version, rec.Version-1,
		string(domain.QuizActive))
	if err != nil {
		return fmt.Errorf("update participation: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var (
		exists bool
		status string
	)
	err = s.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM participations WHERE quiz_id = $1 AND student_email = $2),
	COALESCE((SELECT status FROM quizzes WHERE id = $1), '')`,
		rec.QuizID, rec.StudentEmail).Scan(&exists, &status)
	if err != nil {
		return fmt.Errorf("update participation: %w", err)
	}
	switch {
	case !exists:
		return domain.ErrParticipationNotFound
	case domain.QuizStatus(status) != domain.QuizActive:
		return domain.ErrQuizNotActive
	}
	return domain.ErrStaleRecord
}

func (s *ParticipationStore) ListRecords(ctx context.Context, quizID string) ([]domain.ParticipationRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+participationColumns+`
FROM participations WHERE quiz_id=$1 ORDER BY started_at, student_email`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	defer rows.Close()

	out := []domain.ParticipationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ParticipationStore) DeleteRecords(ctx context.Context, quizID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM participations WHERE quiz_id=$1`, quizID); err != nil {
		return fmt.Errorf("delete participations: %w", err)
	}
	return nil
}

func marshalAnswers(answers []domain.Answer) ([]byte, error) {
	if answers == nil {
		answers = []domain.Answer{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}
	return raw, nil
}

func scanRecord(row pgx.Row) (domain.ParticipationRecord, error) {
	var (
		rec domain.ParticipationRecord
		raw []byte
	)
	err := row.Scan(&rec.QuizID, &rec.StudentEmail, &rec.StudentName, &raw, &rec.Score, &rec.TotalQuestions,
		&rec.StartedAt, &rec.CompletedAt, &rec.IsCompleted, &rec.Version)
	if err != nil {
		return domain.ParticipationRecord{}, err
	}
	if err := json.Unmarshal(raw, &rec.Answers); err != nil {
		return domain.ParticipationRecord{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	if rec.Answers == nil {
		rec.Answers = []domain.Answer{}
	}
	return rec, nil
}
