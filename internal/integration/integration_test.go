package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"teach-quiz-service/internal/app"
	"teach-quiz-service/internal/domain"
	"teach-quiz-service/internal/infra/courses"
	"teach-quiz-service/internal/infra/memory"
	"teach-quiz-service/internal/infra/postgres"
	"teach-quiz-service/internal/infra/postgres/migrations"
	infraredis "teach-quiz-service/internal/infra/redis"
)

func TestQuizLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	quizzes := infraredis.NewQuizCache(redisClient, postgres.NewQuizStore(pool), 5*time.Minute)
	participations := postgres.NewParticipationStore(pool)
	newService := func() *app.QuizService {
		return app.NewQuizService(quizzes, participations, courses.NewRoster(true), nil)
	}
	service := newService()

	quizID, questions := seedActiveQuiz(t, ctx, service)

	if _, err := service.Join(ctx, quizID, "a@x.com"); err != nil {
		t.Fatalf("join: %v", err)
	}
	res, err := service.SubmitAnswer(ctx, quizID, "a@x.com", app.AnswerInput{QuestionID: questions[0], SelectedOption: 1})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.IsCorrect || res.RunningScore != 1 || res.QuestionsAnswered != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	// Two replicas share the stores; only one of the duplicate submissions may land.
	replica := newService()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		conflict int
	)
	for _, svc := range []*app.QuizService{service, replica} {
		wg.Add(1)
		go func(svc *app.QuizService) {
			defer wg.Done()
			_, err := svc.SubmitAnswer(ctx, quizID, "a@x.com", app.AnswerInput{QuestionID: questions[1], SelectedOption: 0})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrConflict):
				conflict++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}(svc)
	}
	wg.Wait()
	if success != 1 || conflict != 1 {
		t.Fatalf("expected one success and one conflict, got %d/%d", success, conflict)
	}

	stats, err := service.Statistics(ctx, quizID)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.CompletedParticipants != 1 || stats.AverageScore != 1 || stats.PerQuestion[1].TotalAnswers != 1 {
		t.Fatalf("unexpected statistics %+v", stats)
	}

	if _, err := service.Finish(ctx, quizID); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, err := replica.Join(ctx, quizID, "b@x.com"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected join rejected after finish, got %v", err)
	}

	if err := service.DeleteQuiz(ctx, quizID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := replica.GetQuiz(ctx, quizID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz gone, got %v", err)
	}
}

func TestRedisParticipationStoreAcrossReplicas(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	store := infraredis.NewParticipationStore(redisClient)
	quizzes := memory.NewQuizStore()
	seed := app.NewQuizService(quizzes, store, courses.NewRoster(true), nil)
	quizID, questions := seedActiveQuiz(t, ctx, seed)
	if _, err := seed.Join(ctx, quizID, "a@x.com"); err != nil {
		t.Fatalf("join: %v", err)
	}

	replica := app.NewQuizService(quizzes, store, courses.NewRoster(true), nil)
	errs := make(chan error, 2)
	for _, svc := range []*app.QuizService{seed, replica} {
		go func(svc *app.QuizService) {
			_, err := svc.SubmitAnswer(ctx, quizID, "a@x.com", app.AnswerInput{QuestionID: questions[0], SelectedOption: 1})
			errs <- err
		}(svc)
	}
	var ok int
	for i := 0; i < 2; i++ {
		if err := <-errs; err == nil {
			ok++
		} else if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one accepted answer, got %d", ok)
	}

	rec, err := store.GetRecord(ctx, quizID, "a@x.com")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if len(rec.Answers) != 1 || rec.Version != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestFinishOnOneReplicaStopsAnswersOnAnother(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := postgres.NewQuizStore(pool)
	participations := postgres.NewParticipationStore(pool)
	primary := app.NewQuizService(store, participations, courses.NewRoster(true), nil)
	quizID, questions := seedActiveQuiz(t, ctx, primary)
	if _, err := primary.Join(ctx, quizID, "a@x.com"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// The replica keeps its own cache and still sees the quiz as active.
	cached := memory.NewQuizCache(store, time.Hour)
	replica := app.NewQuizService(cached, participations, courses.NewRoster(true), nil)
	if quiz, err := replica.GetQuiz(ctx, quizID); err != nil || quiz.Status != domain.QuizActive {
		t.Fatalf("warm replica cache: %v %+v", err, quiz)
	}

	if _, err := primary.Finish(ctx, quizID); err != nil {
		t.Fatalf("finish: %v", err)
	}
	_, err = replica.SubmitAnswer(ctx, quizID, "a@x.com", app.AnswerInput{QuestionID: questions[0], SelectedOption: 1})
	if !errors.Is(err, domain.ErrQuizNotActive) {
		t.Fatalf("expected answer rejected after finish, got %v", err)
	}

	rec, err := participations.GetRecord(ctx, quizID, "a@x.com")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if len(rec.Answers) != 0 || rec.Version != 1 {
		t.Fatalf("expected untouched record, got %+v", rec)
	}
}

// seedActiveQuiz creates an active quiz whose two questions have correct options 1 and 3.
func seedActiveQuiz(t *testing.T, ctx context.Context, svc *app.QuizService) (string, []string) {
	t.Helper()
	quiz, err := svc.CreateQuiz(ctx, app.CreateQuizInput{Title: "Arithmetic", CourseID: "course-1"})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	var ids []string
	for _, correct := range []int{1, 3} {
		q, err := svc.AddQuestion(ctx, quiz.ID, app.QuestionInput{
			Text:          "Pick one",
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: correct,
		})
		if err != nil {
			t.Fatalf("add question: %v", err)
		}
		ids = append(ids, q.ID)
	}
	if _, err := svc.Activate(ctx, quiz.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return quiz.ID, ids
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
