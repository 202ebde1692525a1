package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"serpukhov-quiz-bot/internal/app"
	"serpukhov-quiz-bot/internal/bank"
	"serpukhov-quiz-bot/internal/config"
	"serpukhov-quiz-bot/internal/infra/memory"
	pgstore "serpukhov-quiz-bot/internal/infra/postgres"
	redisregistry "serpukhov-quiz-bot/internal/infra/redis"
	transport "serpukhov-quiz-bot/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the bot service.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz bot service",
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
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token not configured (bot.token or BOT_TOKEN)")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	bankPath := cfg.Quiz.BankPath
	if bankPath == "" {
		bankPath = "questions.json"
	}
	var source bank.Source = bank.NewFileSource(bankPath)
	if pool != nil {
		source = pgstore.NewQuestionLoader(pool)
	}
	bankTTL := config.TTLDuration(cfg.Quiz.BankTTL, 10*time.Minute)
	questionBank := bank.NewRepository(source, bankTTL)

	opts := app.Options{
		QuestionsPerTest: cfg.Quiz.QuestionsPerTest,
		PassScore:        cfg.Quiz.PassScore,
		LeaderboardSize:  cfg.Quiz.LeaderboardSize,
	}
	if opts.QuestionsPerTest <= 0 {
		opts.QuestionsPerTest = 12
	}

	// Startup precondition: the bank must load, validate and cover a draw.
	questions, err := questionBank.Questions(ctx)
	if err != nil {
		return fmt.Errorf("question bank: %w", err)
	}
	if len(questions) < opts.QuestionsPerTest {
		return fmt.Errorf("question bank holds %d questions, need %d per test", len(questions), opts.QuestionsPerTest)
	}

	var store app.AttemptStore
	if cfg.Postgres.URL != "" {
		db := openBunDB(cfg.Postgres.URL)
		defer db.Close()
		store = pgstore.NewStore(db)
	} else {
		log.Println("no postgres url configured, using in-memory store")
		store = memory.NewStore()
	}

	var registry app.SessionRegistry
	if redisClient != nil {
		registry = redisregistry.NewSessionRegistry(redisClient, sessionTTL)
	} else {
		registry = memory.NewSessionRegistry()
	}

	gateway := transport.NewGateway(cfg.Bot.Token)
	service := app.NewAttemptService(store, registry, questionBank, gateway, opts)
	gateway.Bind(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", gateway.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz bot service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
