package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/config"
	"github.com/gdugdh24/kindred-backend/internal/delivery/http"
	"github.com/gdugdh24/kindred-backend/internal/delivery/http/handler"
	"github.com/gdugdh24/kindred-backend/internal/delivery/http/middleware"
	"github.com/gdugdh24/kindred-backend/internal/infrastructure/database"
	"github.com/gdugdh24/kindred-backend/internal/infrastructure/gemini"
	"github.com/gdugdh24/kindred-backend/internal/infrastructure/metrics"
	"github.com/gdugdh24/kindred-backend/internal/infrastructure/openai"
	"github.com/gdugdh24/kindred-backend/internal/infrastructure/server"
	"github.com/gdugdh24/kindred-backend/internal/repository"
	"github.com/gdugdh24/kindred-backend/internal/repository/memory"
	"github.com/gdugdh24/kindred-backend/internal/repository/natskv"
	"github.com/gdugdh24/kindred-backend/internal/repository/postgres"
	redisrepo "github.com/gdugdh24/kindred-backend/internal/repository/redis"
	"github.com/gdugdh24/kindred-backend/internal/textgen"
	"github.com/gdugdh24/kindred-backend/internal/usecase/auth"
	"github.com/gdugdh24/kindred-backend/internal/usecase/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const redisKeyPrefix = "kindred"

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Store    repository.ProfileStore
	Sessions *session.Registry
	Server   *server.Server
	Gemini   *gemini.GeminiClient
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	// Initialize storage
	store, authSessions, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize text generation. Without any key every call is answered by the defaults.
	var providers []textgen.Provider
	limit := rate.Limit(cfg.AI.RequestsPerSecond)

	var geminiClient *gemini.GeminiClient
	if cfg.AI.GeminiAPIKey != "" {
		geminiClient, err = gemini.NewGeminiClient(ctx, cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			providers = append(providers, textgen.NewLLMProvider("gemini", geminiClient, textgen.DetailedPrompts{}, rate.NewLimiter(limit, 1)))
		}
	}
	if cfg.AI.OpenAIAPIKey != "" {
		openaiClient, err := openai.NewClient(cfg.AI.OpenAIAPIKey, cfg.AI.OpenAIModel, cfg.AI.OpenAIBaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize OpenAI client")
		} else {
			providers = append(providers, textgen.NewLLMProvider("openai", openaiClient, textgen.CompactPrompts{}, rate.NewLimiter(limit, 1)))
		}
	}
	if len(providers) == 0 {
		log.Warn().Msg("No text generation provider configured, using built-in defaults")
	}
	generator := textgen.NewGateway(providers,
		textgen.WithMetrics(m),
		textgen.WithCallTimeout(cfg.AI.Timeout),
	)

	// Initialize use cases
	authUseCase := auth.NewAuthUseCase(
		authSessions,
		cfg.JWT.AccessSecret,
		time.Duration(cfg.JWT.AccessExpiryMin)*time.Minute,
	)

	registry := session.NewRegistry(session.Dependencies{
		Store:      store,
		Generator:  generator,
		Metrics:    m,
		ReplyDelay: session.UniformDelay(cfg.Session.ReplyDelayMin, cfg.Session.ReplyDelayMax),
	})
	// Every live session holds a store subscription; idle ones give it back.
	if cfg.Session.IdleTimeout > 0 {
		go registry.RunEviction(ctx, cfg.Session.IdleTimeout)
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authUseCase, registry)
	sessionHandler := handler.NewSessionHandler()
	onboardingHandler := handler.NewOnboardingHandler()
	exploreHandler := handler.NewExploreHandler()
	conversationHandler := handler.NewConversationHandler()

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authUseCase, registry)

	// Initialize router
	router := http.NewRouter(
		authHandler,
		sessionHandler,
		onboardingHandler,
		exploreHandler,
		conversationHandler,
		authMiddleware,
		promhttp.Handler(),
	)

	// Setup routes
	ginRouter := router.Setup()

	// Initialize server
	srv := server.NewServer(&cfg.Server, ginRouter)

	return &Container{
		Config:   cfg,
		Store:    store,
		Sessions: registry,
		Server:   srv,
		Gemini:   geminiClient,
	}, nil
}

// newStorage opens the profile store selected by cfg.Storage.Type. Auth sessions share the
// backend when it can hold them and live in memory otherwise.
func newStorage(ctx context.Context, cfg *config.Config) (repository.ProfileStore, repository.AuthSessionRepository, error) {
	switch cfg.Storage.Type {
	case config.StorageRedis:
		client, err := database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		return redisrepo.NewStore(client, redisKeyPrefix), redisrepo.NewAuthSessions(client, redisKeyPrefix), nil

	case config.StoragePostgres:
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewDocumentStore(db, cfg.Database.GetDSN()), postgres.NewAuthSessionRepository(db), nil

	case config.StorageNATS:
		nc, err := database.NewNATSConn(&cfg.NATS)
		if err != nil {
			return nil, nil, err
		}
		store, err := natskv.Open(ctx, nc, cfg.NATS.UsersBucket, cfg.NATS.DismissedBucket)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("failed to open nats kv store: %w", err)
		}
		return store, memory.NewAuthSessions(), nil

	default:
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		return memory.NewStore(), memory.NewAuthSessions(), nil
	}
}

// Close signs every session out, which flushes pending writes and ends open event
// streams, then drains the HTTP server and closes the store and the text generation
// clients.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if err := c.Sessions.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close sessions: %w", err))
	}
	if err := c.Server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	if c.Gemini != nil {
		if err := c.Gemini.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close gemini client: %w", err))
		}
	}
	return errors.Join(errs...)
}
