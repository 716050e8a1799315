package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-go/internal/config"
	"github.com/noah-isme/gema-grading-go/internal/database"
	"github.com/noah-isme/gema-grading-go/internal/events"
	"github.com/noah-isme/gema-grading-go/internal/handler"
	"github.com/noah-isme/gema-grading-go/internal/middleware"
	"github.com/noah-isme/gema-grading-go/internal/repository"
	"github.com/noah-isme/gema-grading-go/internal/router"
	"github.com/noah-isme/gema-grading-go/internal/service"
	"github.com/noah-isme/gema-grading-go/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var publisher events.Publisher = events.NopPublisher{}
	if redisClient != nil || natsConn != nil {
		publisher = events.NewBusPublisher(redisClient, natsConn, cfg.EventChannel, logger)
	}

	grader := newGrader(cfg, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	gradingService := service.NewGradingService(
		repository.NewSubmissionRepository(db),
		repository.NewExtractionRunRepository(db),
		repository.NewGradingRunRepository(db),
		grader,
		publisher,
		validate,
		service.GradingServiceConfig{
			Pipeline:        cfg.Grading,
			ReviewThreshold: cfg.ReviewThreshold,
			GraderTimeout:   cfg.AITimeout,
		},
		logger,
	)

	criteriaService := service.NewCriteriaService(repository.NewAssignmentRepository(db), validate, logger)

	checks := map[string]handler.DependencyCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if natsConn != nil {
		checks["nats"] = func(ctx context.Context) error { return natsConn.FlushWithContext(ctx) }
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		GradingHandler:   handler.NewGradingHandler(gradingService, logger),
		CriteriaHandler:  handler.NewCriteriaHandler(criteriaService, logger),
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
		DependencyChecks: checks,
		GradeRateLimit:   cfg.GradeRateLimit,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// newGrader returns nil when no provider is usable; grading then answers 503
// while readiness checks keep working.
func newGrader(cfg config.Config, logger zerolog.Logger) ai.Grader {
	if cfg.AIProvider != "openai" {
		logger.Warn().Str("provider", cfg.AIProvider).Msg("unsupported ai provider, grading disabled")
		return nil
	}

	grader, err := ai.NewOpenAIGrader(ai.OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.AIModel,
		MaxRetries: cfg.AIMaxRetries,
		Logger:     logger,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("openai grader unavailable, grading disabled")
		return nil
	}

	return grader
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
