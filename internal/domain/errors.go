package domain

import "errors"

// Error kinds. Every error returned by the quiz use cases matches exactly one
// of these with errors.Is, which is what the transport layer branches on.
var (
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("dependency unavailable")
)

// Error is a concrete failure tagged with its kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	// ErrQuizNotFound indicates the quiz could not be loaded.
	ErrQuizNotFound = newError(ErrNotFound, "quiz not found")
	// ErrQuestionNotFound indicates a question ID does not belong to the quiz.
	ErrQuestionNotFound = newError(ErrNotFound, "question not found")
	// ErrParticipationNotFound is returned when a student never joined the quiz.
	ErrParticipationNotFound = newError(ErrNotFound, "participation not found")

	ErrQuizNotDraft      = newError(ErrInvalidState, "quiz questions can only be changed while draft")
	ErrQuizNotActive     = newError(ErrInvalidState, "quiz is not active")
	ErrQuizAlreadyActive = newError(ErrInvalidState, "quiz is already active")
	ErrQuizFinished      = newError(ErrInvalidState, "quiz has already finished")
	ErrQuizHasNoQuestion = newError(ErrInvalidState, "quiz needs at least one question")

	// ErrNotJoined is returned when a student acts on a quiz before joining it.
	ErrNotJoined = newError(ErrForbidden, "student has not joined the quiz")
	// ErrNotEnrolled is returned when the student is not enrolled in the quiz's course.
	ErrNotEnrolled = newError(ErrForbidden, "student is not enrolled in the course")

	ErrAlreadyAnswered = newError(ErrConflict, "question already answered")
	ErrAlreadyComplete = newError(ErrConflict, "quiz already completed by student")
	// ErrStaleRecord signals a lost optimistic version race; callers re-read and retry.
	ErrStaleRecord = newError(ErrConflict, "participation record changed concurrently")
	// ErrRecordExists is returned by stores when inserting a record that is already present.
	ErrRecordExists = newError(ErrConflict, "participation record already exists")

	// ErrEnrollmentUnavailable wraps failures of the courses collaborator.
	ErrEnrollmentUnavailable = newError(ErrUnavailable, "enrollment service unavailable")
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError rejects malformed input before any state is touched.
type ValidationError struct {
	Msg    string
	Fields []FieldError
}

func NewValidationError(msg string, flds ...FieldError) error {
	return &ValidationError{Msg: msg, Fields: flds}
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrValidation }
