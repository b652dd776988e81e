package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"teach-quiz-service/internal/app"
	"teach-quiz-service/internal/config"
	"teach-quiz-service/internal/domain"
	"teach-quiz-service/internal/infra/courses"
	"teach-quiz-service/internal/infra/memory"
	"teach-quiz-service/internal/infra/postgres"
	redisstore "teach-quiz-service/internal/infra/redis"
	"teach-quiz-service/internal/logging"
	transport "teach-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	reveal, err := app.ParseRevealPolicy(cfg.Quiz.RevealCorrectOption)
	if err != nil {
		return err
	}

	hubOpts := []app.HubOption{app.WithBufferSize(cfg.Monitor.Buffer), app.WithHubLogger(log)}
	if deps.redis != nil {
		hubOpts = append(hubOpts, app.WithScopeTracker(redisstore.NewScopeTracker(deps.redis, time.Hour)))
	}
	service := app.NewQuizService(deps.quizzes, deps.participations, deps.enrollment, app.NewHub(hubOpts...),
		app.WithRevealPolicy(reveal),
		app.WithLogger(log),
	)

	e := transport.NewServer(transport.Options{
		Teacher: service,
		Student: service,
		Monitor: service,
		Log:     log,
		WS: transport.WSConfig{
			WriteWait:      config.TTLDuration(cfg.Monitor.WriteWait, 10*time.Second),
			PongWait:       config.TTLDuration(cfg.Monitor.PongWait, 60*time.Second),
			StatsPerSecond: cfg.Monitor.StatsPerSec,
			AllowAnyOrigin: cfg.Monitor.AllowAnyOrigin,
		},
	})

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      e,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", finalPort).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type dependencies struct {
	redis          *redis.Client
	quizzes        app.QuizRepository
	participations app.ParticipationRepository
	enrollment     app.EnrollmentChecker
}

// buildDependencies selects storage from config: Postgres when a URL is set,
// Redis for the quiz cache and shared participation state when an address is set,
// in-memory otherwise.
func buildDependencies(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (dependencies, func(), error) {
	var deps dependencies
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (dependencies, func(), error) {
		cleanup()
		return dependencies{}, func() {}, err
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return fail(err)
		}
		err := retryConnect(ctx, log, "postgres", func() error {
			var err error
			pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
			return err
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pool.Close)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		err := retryConnect(ctx, log, "redis", func() error {
			return client.Ping(ctx).Err()
		})
		if err != nil {
			return fail(err)
		}
		deps.redis = client
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	switch {
	case pool != nil && deps.redis != nil:
		deps.quizzes = redisstore.NewQuizCache(deps.redis, postgres.NewQuizStore(pool), quizTTL)
	case pool != nil:
		deps.quizzes = memory.NewQuizCache(postgres.NewQuizStore(pool), quizTTL)
	default:
		deps.quizzes = memory.NewQuizStore(sampleQuizzes()...)
	}

	store := strings.ToLower(cfg.Quiz.ParticipationStore)
	if store == "" {
		switch {
		case pool != nil:
			store = "postgres"
		case deps.redis != nil:
			store = "redis"
		default:
			store = "memory"
		}
	}
	switch store {
	case "postgres":
		if pool == nil {
			return fail(fmt.Errorf("participation store postgres needs postgres.url"))
		}
		deps.participations = postgres.NewParticipationStore(pool)
	case "redis":
		if deps.redis == nil {
			return fail(fmt.Errorf("participation store redis needs redis.addr"))
		}
		deps.participations = redisstore.NewParticipationStore(deps.redis)
	case "memory":
		deps.participations = memory.NewParticipationStore()
	default:
		return fail(fmt.Errorf("unknown participation store %q", cfg.Quiz.ParticipationStore))
	}

	deps.enrollment = enrollmentFrom(cfg)
	log.WithFields(logrus.Fields{
		"postgres":            pool != nil,
		"redis":               deps.redis != nil,
		"participation_store": store,
	}).Info("storage configured")
	return deps, cleanup, nil
}

func enrollmentFrom(cfg config.Config) app.EnrollmentChecker {
	if cfg.Courses.URL != "" {
		return courses.NewClient(cfg.Courses.URL, config.TTLDuration(cfg.Courses.Timeout, 5*time.Second), cfg.Courses.Retries)
	}
	roster := courses.NewRoster(cfg.Courses.OpenEnrollment)
	for courseID, entries := range cfg.Courses.Roster {
		for _, entry := range entries {
			roster.Enroll(courseID, domain.Student{Email: entry.Email, FullName: entry.FullName})
		}
	}
	return roster
}

// retryConnect retries fn with exponential backoff for up to 30 seconds.
func retryConnect(ctx context.Context, log logrus.FieldLogger, name string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second
	return backoff.RetryNotify(fn, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		log.WithError(err).WithField("retry_in", next.String()).Warnf("%s not ready", name)
	})
}

// sampleQuizzes seeds the in-memory store with a draft quiz to try the API against.
func sampleQuizzes() []domain.Quiz {
	now := time.Now()
	return []domain.Quiz{
		{
			ID:       "quiz-1",
			CourseID: "course-1",
			Title:    "Arithmetic warm-up",
			Status:   domain.QuizDraft,
			Questions: []domain.Question{
				{
					ID:            "q1",
					Text:          "What is 2 + 2?",
					Options:       [domain.OptionCount]string{"3", "4", "5", "6"},
					CorrectOption: 1,
				},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
