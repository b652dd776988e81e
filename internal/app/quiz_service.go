package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"teach-quiz-service/internal/domain"
)

// RevealPolicy controls whether an answer result carries the correct option.
type RevealPolicy string

const (
	RevealOnIncorrect RevealPolicy = "on_incorrect"
	RevealAlways      RevealPolicy = "always"
	RevealNever       RevealPolicy = "never"
)

// ParseRevealPolicy maps a config value to a policy; empty means RevealOnIncorrect.
func ParseRevealPolicy(raw string) (RevealPolicy, error) {
	switch p := RevealPolicy(raw); p {
	case "":
		return RevealOnIncorrect, nil
	case RevealOnIncorrect, RevealAlways, RevealNever:
		return p, nil
	default:
		return "", fmt.Errorf("unknown reveal policy %q", raw)
	}
}

func (p RevealPolicy) reveals(correct bool) bool {
	switch p {
	case RevealAlways:
		return true
	case RevealNever:
		return false
	default:
		return !correct
	}
}

// maxRecordRetries bounds optimistic retries when a shared store reports a stale record.
const maxRecordRetries = 3

// QuizService contains the quiz lifecycle, participation and statistics use cases.
type QuizService struct {
	quizzes        QuizRepository
	participations ParticipationRepository
	enrollment     EnrollmentChecker
	hub            *Hub

	quizLocks    *keyedLocks
	studentLocks *keyedLocks
	validate     *validator.Validate

	reveal RevealPolicy
	now    func() time.Time
	newID  func() string
	log    logrus.FieldLogger
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithRevealPolicy sets when the correct option is disclosed after an answer.
func WithRevealPolicy(p RevealPolicy) Option {
	return func(s *QuizService) { s.reveal = p }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithIDGenerator replaces the UUID generator for quiz and question IDs.
func WithIDGenerator(gen func() string) Option {
	return func(s *QuizService) { s.newID = gen }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *QuizService) { s.log = log }
}

func NewQuizService(quizzes QuizRepository, participations ParticipationRepository, enrollment EnrollmentChecker, hub *Hub, opts ...Option) *QuizService {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &QuizService{
		quizzes:        quizzes,
		participations: participations,
		enrollment:     enrollment,
		hub:            hub,
		quizLocks:      newKeyedLocks(),
		studentLocks:   newKeyedLocks(),
		validate:       newValidator(),
		reveal:         RevealOnIncorrect,
		now:            time.Now,
		newID:          uuid.NewString,
		log:            discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub(WithHubLogger(s.log))
	}
	return s
}

// Hub exposes the broadcaster observers subscribe to.
func (s *QuizService) Hub() *Hub {
	return s.hub
}

// Subscribe registers an observer for a quiz. The first event on the
// subscription is a connected event carrying the current snapshot.
// The caller must Close the subscription.
func (s *QuizService) Subscribe(ctx context.Context, quizID string) (*Subscription, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, quizID, func() (domain.MonitorEvent, error) {
		quiz, err := s.quizzes.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.MonitorEvent{}, err
		}
		records, err := s.participations.ListRecords(ctx, quizID)
		if err != nil {
			return domain.MonitorEvent{}, err
		}
		return domain.ConnectedEvent(quiz, Snapshot(records), s.now()), nil
	})
}

// CurrentStats returns a quiz_stats event built from the records stored right now.
func (s *QuizService) CurrentStats(ctx context.Context, quizID string) (domain.MonitorEvent, error) {
	records, err := s.participations.ListRecords(ctx, quizID)
	if err != nil {
		return domain.MonitorEvent{}, err
	}
	return domain.QuizStatsEvent(quizID, Snapshot(records), s.now()), nil
}
