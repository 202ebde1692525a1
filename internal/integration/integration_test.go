package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"serpukhov-quiz-bot/internal/app"
	"serpukhov-quiz-bot/internal/bank"
	"serpukhov-quiz-bot/internal/domain"
	pgstore "serpukhov-quiz-bot/internal/infra/postgres"
	pgmigrations "serpukhov-quiz-bot/internal/infra/postgres/migrations"
	redisregistry "serpukhov-quiz-bot/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

type collectingNotifier struct {
	mu   sync.Mutex
	text []string
	last []domain.AnswerOption
}

func (n *collectingNotifier) SendText(_, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.text = append(n.text, text)
}

func (n *collectingNotifier) SendQuestion(_, _ string, options []domain.AnswerOption) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = options
}

func (n *collectingNotifier) options() []domain.AnswerOption {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

func (n *collectingNotifier) contains(substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, msg := range n.text {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func TestAttemptFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()
	seedBank(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	questionBank := bank.NewRepositoryWithRand(
		pgstore.NewQuestionLoader(pool), 5*time.Minute, rand.New(rand.NewSource(1)))

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	registry := redisregistry.NewSessionRegistry(redisClient, 5*time.Minute)
	store := pgstore.NewStore(db)
	notifier := &collectingNotifier{}
	service := app.NewAttemptService(store, registry, questionBank, notifier, app.Options{
		QuestionsPerTest: 3,
		PassScore:        2,
		LeaderboardSize:  10,
	})

	if err := service.StartQuiz(ctx, "chat-1", "tg-100", "Alice"); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	// Answer every question with its correct option; tokens come from the
	// rendered controls, exactly as a chat frontend would echo them back.
	for i := 0; i < 3; i++ {
		options := notifier.options()
		if len(options) == 0 {
			t.Fatalf("no question rendered at step %d", i)
		}
		token := correctToken(t, ctx, registry, options)
		if err := service.HandleAnswer(ctx, "chat-1", token); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}

	if !notifier.contains("You scored 3/3") {
		t.Fatalf("expected perfect score summary, got %+v", notifier.text)
	}
	if !notifier.contains("Top players") || !notifier.contains("Alice") {
		t.Fatalf("expected Alice on the leaderboard, got %+v", notifier.text)
	}

	// Duplicate answers past completion resolve to an expired session.
	options := notifier.options()
	err = service.HandleAnswer(ctx, "chat-1", options[0].Token)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after completion, got %v", err)
	}

	// Reset cascades and leaves the leaderboard empty.
	if err := service.ResetUser(ctx, "chat-1", "tg-100", "Alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	rows, err := store.BestScores(ctx, 10)
	if err != nil {
		t.Fatalf("best scores: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty leaderboard after reset, got %+v", rows)
	}
}

// correctToken resolves which rendered option is correct by consulting the
// session snapshot the registry persisted.
func correctToken(t *testing.T, ctx context.Context, registry *redisregistry.SessionRegistry, options []domain.AnswerOption) string {
	t.Helper()
	event, err := domain.ParseAnswerToken(options[0].Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	session, err := registry.Get(ctx, event.AttemptID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	correct := session.Questions[event.QuestionIndex].CorrectIndex()
	for _, opt := range options {
		e, err := domain.ParseAnswerToken(opt.Token)
		if err != nil {
			t.Fatalf("parse token: %v", err)
		}
		if e.OptionIndex == correct {
			return opt.Token
		}
	}
	t.Fatalf("no correct option among %+v", options)
	return ""
}

func seedBank(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	questions := []domain.Question{
		{Text: "Which river joins the Oka at Serpukhov?", Options: []string{"Nara", "Volga", "Don"}, CorrectAnswer: "Nara"},
		{Text: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectAnswer: "4"},
		{Text: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectAnswer: "Paris"},
	}
	if err := pgstore.SeedQuestions(ctx, db, questions); err != nil {
		t.Fatalf("seed bank: %v", err)
	}
}

func openBun(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
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
