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

// QuizStore persists quizzes in Postgres. Questions live in a JSONB column
// in authored order.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

const quizColumns = `id, course_id, title, description, status, questions, created_at, updated_at`

func (s *QuizStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id=$1`, quizID)
	quiz, err := scanQuiz(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizStore) ListQuizzes(ctx context.Context, courseID string) ([]domain.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes`
	var args []interface{}
	if courseID != "" {
		query += ` WHERE course_id=$1`
		args = append(args, courseID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	out := []domain.Quiz{}
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return out, nil
}

func (s *QuizStore) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	questions := quiz.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO quizzes (`+quizColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	status = EXCLUDED.status,
	questions = EXCLUDED.questions,
	updated_at = EXCLUDED.updated_at`,
		quiz.ID, quiz.CourseID, quiz.Title, quiz.Description, string(quiz.Status), raw, quiz.CreatedAt, quiz.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func (s *QuizStore) DeleteQuiz(ctx context.Context, quizID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var (
		quiz   domain.Quiz
		status string
		raw    []byte
	)
	if err := row.Scan(&quiz.ID, &quiz.CourseID, &quiz.Title, &quiz.Description, &status, &raw, &quiz.CreatedAt, &quiz.UpdatedAt); err != nil {
		return domain.Quiz{}, err
	}
	quiz.Status = domain.QuizStatus(status)
	if err := json.Unmarshal(raw, &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	if quiz.Questions == nil {
		quiz.Questions = []domain.Question{}
	}
	return quiz, nil
}
