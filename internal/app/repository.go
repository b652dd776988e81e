package app

import (
	"context"

	"teach-quiz-service/internal/domain"
)

// QuizRepository persists quizzes together with their questions.
type QuizRepository interface {
	// GetQuiz returns domain.ErrQuizNotFound when the quiz does not exist.
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// ListQuizzes returns quizzes of a course, or all quizzes when courseID is empty, newest first.
	ListQuizzes(ctx context.Context, courseID string) ([]domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	DeleteQuiz(ctx context.Context, quizID string) error
}

// ParticipationRepository persists one record per (quiz, student email).
type ParticipationRepository interface {
	// GetRecord returns domain.ErrParticipationNotFound when the student never joined.
	GetRecord(ctx context.Context, quizID, email string) (domain.ParticipationRecord, error)
	// InsertRecord returns domain.ErrRecordExists if a record for the pair is already stored.
	InsertRecord(ctx context.Context, rec domain.ParticipationRecord) error
	// UpdateRecord stores rec only if the stored version is rec.Version-1,
	// otherwise it returns domain.ErrStaleRecord.
	UpdateRecord(ctx context.Context, rec domain.ParticipationRecord) error
	// ListRecords returns the records of a quiz ordered by join time.
	ListRecords(ctx context.Context, quizID string) ([]domain.ParticipationRecord, error)
	DeleteRecords(ctx context.Context, quizID string) error
}

// EnrollmentChecker answers whether an email is enrolled in a course.
// A non-nil error means the answer is unknown, not that the student is absent.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, courseID, email string) (domain.Student, bool, error)
}
