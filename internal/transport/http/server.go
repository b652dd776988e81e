// Package http exposes the quiz service over REST and a WebSocket monitor.
package http

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"teach-quiz-service/internal/app"
	"teach-quiz-service/internal/domain"
)

// TeacherService is what quiz authors may do.
type TeacherService interface {
	CreateQuiz(ctx context.Context, in app.CreateQuizInput) (domain.Quiz, error)
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, courseID string) ([]domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quizID string, in app.UpdateQuizInput) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID string) error
	AddQuestion(ctx context.Context, quizID string, in app.QuestionInput) (domain.Question, error)
	UpdateQuestion(ctx context.Context, quizID, questionID string, in app.QuestionPatch) (domain.Question, error)
	RemoveQuestion(ctx context.Context, quizID, questionID string) error
	Activate(ctx context.Context, quizID string) (domain.Quiz, error)
	Finish(ctx context.Context, quizID string) (domain.Quiz, error)
	Statistics(ctx context.Context, quizID string) (domain.Statistics, error)
	Responses(ctx context.Context, quizID string) ([]domain.ParticipationRecord, error)
}

// StudentService never exposes the answer key.
type StudentService interface {
	Join(ctx context.Context, quizID, email string) (app.JoinResult, error)
	QuestionsForStudent(ctx context.Context, quizID, email string) (domain.StudentQuiz, error)
	SubmitAnswer(ctx context.Context, quizID, email string, in app.AnswerInput) (app.AnswerResult, error)
	Progress(ctx context.Context, quizID, email string) (domain.ParticipationRecord, error)
}

// MonitorService feeds the live dashboard.
type MonitorService interface {
	Subscribe(ctx context.Context, quizID string) (*app.Subscription, error)
	CurrentStats(ctx context.Context, quizID string) (domain.MonitorEvent, error)
}

type Options struct {
	Teacher TeacherService
	Student StudentService
	Monitor MonitorService
	Log     logrus.FieldLogger
	WS      WSConfig
}

// NewServer builds the echo router with every route registered.
func NewServer(opts Options) *echo.Echo {
	log := opts.Log
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(requestLogger(log))
	e.HTTPErrorHandler = newHTTPErrorHandler(log)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	quizzes := e.Group("/quizzes")
	if opts.Teacher != nil {
		registerTeacherAPI(quizzes, opts.Teacher)
	}
	if opts.Student != nil {
		registerStudentAPI(quizzes, opts.Student)
	}
	if opts.Monitor != nil {
		ws := NewWSHandler(opts.Monitor, opts.WS, log)
		e.GET("/ws/quizzes/:id/monitor", ws.ServeMonitor)
	}
	return e
}
