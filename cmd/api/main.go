package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/peak-go-api/internal/config"
	"github.com/noah-isme/peak-go-api/internal/database"
	"github.com/noah-isme/peak-go-api/internal/events"
	"github.com/noah-isme/peak-go-api/internal/handler"
	"github.com/noah-isme/peak-go-api/internal/lock"
	"github.com/noah-isme/peak-go-api/internal/middleware"
	"github.com/noah-isme/peak-go-api/internal/observability"
	"github.com/noah-isme/peak-go-api/internal/repository"
	"github.com/noah-isme/peak-go-api/internal/router"
	"github.com/noah-isme/peak-go-api/internal/service"
	"github.com/noah-isme/peak-go-api/pkg/ai"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "peak-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	observability.RegisterMetrics()

	ctx := context.Background()

	mongoClient, mongoDB, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongo")
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	if err := repository.EnsureUserIndexes(ctx, mongoDB); err != nil {
		logger.Fatal().Err(err).Msg("failed to create mongo indexes")
	}

	probes := map[string]handler.HealthProbe{
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	var runRepo repository.EvaluationRunRepository
	if cfg.DatabaseURL != "" {
		db, err := database.ConnectRunLog(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open evaluation run log")
		}
		runRepo = repository.NewEvaluationRunRepository(db)
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
			probes["run_log"] = sqlDB.PingContext
		}
	}

	scorer, closeScorer, err := newScorer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create scoring client")
	}
	defer func() {
		_ = closeScorer()
	}()

	responseValidator, err := ai.NewResponseValidator()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to compile evaluation schema")
	}

	locker := lock.Chain{lock.NewKeyedMutex()}
	if redisClient != nil {
		locker = append(locker, lock.NewRedisLease(redisClient, lock.RedisLeaseConfig{
			TTL:    cfg.LockTTL,
			Logger: logger,
		}))
	}

	var publisher events.Publisher
	if redisClient != nil || natsConn != nil {
		publisher = events.NewPublisher(redisClient, natsConn, cfg.EventsChannel)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	paperRepo := repository.NewPaperRepository(mongoDB)
	userTypeRepo := repository.NewUserTypeRepository(mongoDB)
	associationRepo := repository.NewAssociationRepository(mongoDB)

	evaluator := service.NewSubmissionEvaluator(scorer, responseValidator, cfg.EvalConcurrency, logger)
	evaluationService := service.NewEvaluationService(paperRepo, runRepo, evaluator, locker, publisher, service.EvaluationServiceConfig{
		LockTimeout: cfg.LockTimeout,
	}, logger)
	paperService := service.NewPaperService(paperRepo, associationRepo, validate, logger)
	userService := service.NewUserService(userTypeRepo, associationRepo, validate, logger)

	deps := router.Dependencies{
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, validate, logger),
		PaperHandler:      handler.NewPaperHandler(paperService, validate, logger),
		UserHandler:       handler.NewUserHandler(userService, validate, logger),
		HealthProbes:      probes,
		EvaluationLimiter: middleware.RateLimit("evaluation", cfg.EvalRateLimit, cfg.EvalRateWindow),
	}
	if cfg.AuthEnabled() {
		deps.JWTMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	} else {
		logger.Warn().Msg("PEAK_JWT_SECRET not set, evaluation routes are unauthenticated")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.AllowOrigins})
	router.Register(app, cfg, deps)

	go func() {
		logger.Info().
			Str("addr", cfg.HTTPAddress()).
			Str("provider", ai.ProviderName(scorer)).
			Int("concurrency", cfg.EvalConcurrency).
			Msg("server starting")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, cfg.ShutdownTimeout, logger)
}

// newScorer builds the configured provider client wrapped in the inter-call pacer.
func newScorer(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ai.Scorer, func() error, error) {
	if cfg.AIProvider == config.ProviderGemini {
		gemini, err := ai.NewGeminiScorer(ctx, ai.GeminiConfig{
			APIKey:      cfg.AIAPIKey(),
			Model:       cfg.AIModel,
			MaxTokens:   cfg.AIMaxTokens,
			Temperature: cfg.AITemperature,
			Timeout:     cfg.AITimeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return ai.NewPacedScorer(gemini, cfg.ScoringInterval), gemini.Close, nil
	}

	openaiScorer, err := ai.NewOpenAIScorer(ai.OpenAIConfig{
		Provider:    cfg.AIProvider,
		APIKey:      cfg.AIAPIKey(),
		BaseURL:     cfg.AIBaseURL,
		Model:       cfg.AIModel,
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
		Timeout:     cfg.AITimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return ai.NewPacedScorer(openaiScorer, cfg.ScoringInterval), func() error { return nil }, nil
}

func waitForShutdown(app *fiber.App, timeout time.Duration, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
