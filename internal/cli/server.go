package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"livequiz-service/internal/app"
	"livequiz-service/internal/config"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
	pginfra "livequiz-service/internal/infra/postgres"
	redisinfra "livequiz-service/internal/infra/redis"
	transport "livequiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
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

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizCache(loader, quizTTL)
	}

	presenceTTL := config.TTLDuration(cfg.Presence.TTL, 15*time.Second)
	var presence app.PresenceTracker
	if redisClient != nil {
		presence = redisinfra.NewPresenceTracker(redisClient, presenceTTL)
	} else {
		presence = memory.NewPresenceTracker(presenceTTL)
	}

	var store app.GameStore
	if pool != nil {
		store = pginfra.NewGameStore(pool)
	} else {
		store = memory.NewGameStore()
	}

	service := app.NewGameService(logger, gameRules(cfg), store, quizRepo, memory.NewRunnerRegistry(), presence)
	handler := transport.NewHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz session service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func gameRules(cfg config.Config) app.Rules {
	rules := app.DefaultRules()
	if cfg.Game.PreviewSeconds > 0 {
		rules.PreviewSeconds = cfg.Game.PreviewSeconds
	}
	if cfg.Game.ResultsSeconds > 0 {
		rules.ResultsSeconds = cfg.Game.ResultsSeconds
	}
	if cfg.Game.LeaderboardSeconds > 0 {
		rules.LeaderboardSeconds = cfg.Game.LeaderboardSeconds
	}
	rules.AutoAdvance = cfg.Game.AutoAdvance
	if cfg.Game.Streaks != nil {
		rules.StreaksEnabled = *cfg.Game.Streaks
	}
	if cfg.Game.Powerups != nil {
		rules.PowerupsEnabled = *cfg.Game.Powerups
	}
	return rules
}

// sampleQuizzes provides demo content for running without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:               "q1",
					Text:             "What is 2 + 2?",
					TimeLimitSeconds: 20,
					Options: []domain.Option{
						{Text: "3"},
						{Text: "4", Correct: true},
						{Text: "5"},
						{Text: "22"},
					},
				},
				{
					ID:               "q2",
					Text:             "Which planet is closest to the sun?",
					TimeLimitSeconds: 20,
					Options: []domain.Option{
						{Text: "Venus"},
						{Text: "Mars"},
						{Text: "Mercury", Correct: true},
						{Text: "Earth"},
					},
				},
			},
		},
	}
}
