package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"math-race-service/internal/app"
	"math-race-service/internal/config"
	"math-race-service/internal/domain"
	"math-race-service/internal/infra/memory"
	pgloader "math-race-service/internal/infra/postgres"
	redisinfra "math-race-service/internal/infra/redis"
	"math-race-service/internal/question"
	transport "math-race-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the math race server",
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
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var source app.QuestionSource = question.NewGenerator()
	if cfg.Arena.QuestionSet != "" {
		var loader setLoader = memory.NewStaticSetLoader(sampleSets())
		if pool != nil {
			loader = pgloader.NewSetLoader(pool)
		}
		setTTL := config.Duration(cfg.Arena.SetTTL, 10*time.Minute)
		var repo question.SetRepository
		if redisClient != nil {
			repo = redisinfra.NewSetRepository(redisClient, loader, setTTL)
		} else {
			repo = memory.NewSetRepository(loader, setTTL)
		}
		source = question.NewBankSource(repo, cfg.Arena.QuestionSet)
	}

	var scores app.HighScoreStore
	if redisClient != nil {
		scores = redisinfra.NewHighScoreStore(redisClient)
	} else {
		scores = memory.NewHighScoreStore()
	}

	rotationDelay := config.Duration(cfg.Arena.RotationDelay, 3*time.Second)
	arena, err := app.NewArena(ctx, source, scores, rotationDelay, cfg.Arena.TopN)
	if err != nil {
		return err
	}

	wsHandler := transport.NewWSHandler(arena)
	restHandler := transport.NewRESTHandler(arena)

	mux := http.NewServeMux()
	restHandler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting math race service on :%s", finalPort)
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

// setLoader is the shared shape of the memory and postgres loaders.
type setLoader interface {
	LoadSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// sampleSets provides demo content when a question set is configured without Postgres.
func sampleSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"warmup": {
			ID: "warmup",
			Questions: []domain.SeedQuestion{
				{Prompt: "7 + 5 = ?", Answer: 12, Difficulty: 1},
				{Prompt: "9 × 6 = ?", Answer: 54, Difficulty: 2},
				{Prompt: "Solve for x: 3x + 4 = 19", Answer: 5, Difficulty: 3},
			},
		},
	}
}
