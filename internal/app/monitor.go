package app

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"teach-quiz-service/internal/domain"
)

// ScopeTracker is notified when a quiz gains its first observer and loses its last one.
// Calls for one scope are made under the scope lock, so they never reorder.
type ScopeTracker interface {
	ScopeOpened(ctx context.Context, quizID string)
	ScopeClosed(ctx context.Context, quizID string)
}

// Hub fans monitor events out to the observers of each quiz. Delivery is
// best-effort: an observer whose buffer is full misses the event.
type Hub struct {
	bufferSize int
	tracker    ScopeTracker
	log        logrus.FieldLogger

	mu     sync.RWMutex
	scopes map[string]*monitorScope
}

type monitorScope struct {
	quizID string

	mu        sync.Mutex
	observers map[*Subscription]struct{}
	opened    bool
	closed    bool
	dropped   uint64
}

// Subscription is one observer's view of a quiz event stream.
type Subscription struct {
	hub    *Hub
	scope  *monitorScope
	events chan domain.MonitorEvent
	once   sync.Once
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithBufferSize sets how many undelivered events an observer may accumulate.
func WithBufferSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

func WithScopeTracker(t ScopeTracker) HubOption {
	return func(h *Hub) { h.tracker = t }
}

func WithHubLogger(log logrus.FieldLogger) HubOption {
	return func(h *Hub) { h.log = log }
}

func NewHub(opts ...HubOption) *Hub {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	h := &Hub{
		bufferSize: 32,
		log:        discard,
		scopes:     make(map[string]*monitorScope),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe adds an observer for quizID. snapshot builds the connected event;
// it runs under the scope lock, so no event published for the quiz can slip
// between the snapshot and the registration.
func (h *Hub) Subscribe(ctx context.Context, quizID string, snapshot func() (domain.MonitorEvent, error)) (*Subscription, error) {
	for {
		scope := h.scopeFor(quizID)

		scope.mu.Lock()
		if scope.closed {
			scope.mu.Unlock()
			h.removeScope(scope)
			continue
		}

		initial, err := snapshot()
		if err != nil {
			empty := len(scope.observers) == 0
			if empty {
				scope.closed = true
			}
			scope.mu.Unlock()
			if empty {
				h.removeScope(scope)
			}
			return nil, err
		}

		sub := &Subscription{
			hub:    h,
			scope:  scope,
			events: make(chan domain.MonitorEvent, h.bufferSize),
		}
		sub.events <- initial
		scope.observers[sub] = struct{}{}
		if !scope.opened {
			scope.opened = true
			if h.tracker != nil {
				h.tracker.ScopeOpened(ctx, quizID)
			}
		}
		count := len(scope.observers)
		scope.mu.Unlock()

		h.log.WithFields(logrus.Fields{"quiz_id": quizID, "observers": count}).Debug("observer subscribed")
		return sub, nil
	}
}

// Publish delivers ev to every observer of ev.QuizID without blocking.
func (h *Hub) Publish(ev domain.MonitorEvent) {
	h.mu.RLock()
	scope, ok := h.scopes[ev.QuizID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	scope.mu.Lock()
	defer scope.mu.Unlock()
	for sub := range scope.observers {
		select {
		case sub.events <- ev:
		default:
			scope.dropped++
			h.log.WithFields(logrus.Fields{
				"quiz_id": ev.QuizID,
				"event":   ev.Event,
				"dropped": scope.dropped,
			}).Debug("observer buffer full, event dropped")
		}
	}
}

// Observers returns the number of observers currently subscribed to quizID.
func (h *Hub) Observers(quizID string) int {
	h.mu.RLock()
	scope, ok := h.scopes[quizID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	scope.mu.Lock()
	defer scope.mu.Unlock()
	return len(scope.observers)
}

// Scopes returns the number of quizzes with at least one observer.
func (h *Hub) Scopes() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scopes)
}

func (h *Hub) scopeFor(quizID string) *monitorScope {
	h.mu.Lock()
	defer h.mu.Unlock()
	if scope, ok := h.scopes[quizID]; ok {
		return scope
	}
	scope := &monitorScope{
		quizID:    quizID,
		observers: make(map[*Subscription]struct{}),
	}
	h.scopes[quizID] = scope
	return scope
}

func (h *Hub) removeScope(scope *monitorScope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.scopes[scope.quizID]; ok && current == scope {
		delete(h.scopes, scope.quizID)
	}
}

// Events returns the stream of events. It is closed by Close.
func (s *Subscription) Events() <-chan domain.MonitorEvent {
	return s.events
}

// QuizID returns the quiz this subscription observes.
func (s *Subscription) QuizID() string {
	return s.scope.quizID
}

// Close removes the observer. The last observer of a quiz tears its scope down.
func (s *Subscription) Close() {
	s.once.Do(func() {
		scope := s.scope
		scope.mu.Lock()
		delete(scope.observers, s)
		close(s.events)
		empty := len(scope.observers) == 0
		if empty {
			scope.closed = true
			if scope.opened && s.hub.tracker != nil {
				s.hub.tracker.ScopeClosed(context.Background(), scope.quizID)
			}
		}
		scope.mu.Unlock()

		if empty {
			s.hub.removeScope(scope)
		}
		s.hub.log.WithField("quiz_id", scope.quizID).Debug("observer unsubscribed")
	})
}
