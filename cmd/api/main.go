// Package main is the entrypoint for the AI tools platform API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/aitools/platform/internal/cache"
	"github.com/aitools/platform/internal/catalog"
	"github.com/aitools/platform/internal/config"
	"github.com/aitools/platform/internal/generation"
	"github.com/aitools/platform/internal/handler"
	"github.com/aitools/platform/internal/identity"
	"github.com/aitools/platform/internal/metrics"
	"github.com/aitools/platform/internal/middleware"
	"github.com/aitools/platform/internal/repository"
	"github.com/aitools/platform/internal/server"
	"github.com/aitools/platform/internal/service"
	"github.com/aitools/platform/internal/usage"
)

func main() {
	ctx := context.Background()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if cfg.MigrateOnStart {
		version, err := repository.Migrate(cfg.DatabaseURL, cfg.MigrationsPath)
		if err != nil {
			logger.Error("failed to run migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
		logger.Info("migrations applied", "version", version)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if cfg.PlansFile != "" {
		n, err := catalog.Sync(ctx, repo, cfg.PlansFile)
		if err != nil {
			logger.Error("failed to sync plan catalog", "path", cfg.PlansFile, "error", err)
			os.Exit(1)
		}
		logger.Info("plan catalog synced", "plans", n)
	}

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.WithPoolSize(cfg.RedisPoolSize))
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	recorder, metricsEndpoint := initMetrics(cfg)

	provider := identity.NewSupabaseProvider(cfg.IdentityURL, cfg.IdentityAnonKey, identity.NewHTTPClient(cfg.IdentityTimeout))
	backend := initBackend(cfg, logger)

	// Services
	usageLogs := repository.NewUsageLogRepository(repo)
	publisher := usage.NewPublisher(cacheClient.Client(), logger, recorder)
	ledger := service.NewLedger(repo, logger, recorder)
	conversations := service.NewConversationStore(repo, logger)
	onboarding := service.NewOnboarding(repo, logger)
	dispatcher := service.NewDispatcher(ledger, conversations, onboarding, backend, publisher, logger, recorder)
	analytics := service.NewAnalytics(usageLogs, logger, time.Local)
	serviceKeys := service.NewServiceKeys(repo, logger)

	dev := cfg.IsDevelopment()
	pages, err := handler.NewPageHandler(cfg.FrontendURL, logger)
	if err != nil {
		logger.Error("invalid frontend URL", "error", err)
		os.Exit(1)
	}

	r := setupRouter(routes{
		base:          handler.New(),
		health:        handler.NewHealthHandler(repo, cacheClient),
		metrics:       metricsEndpoint,
		chat:          handler.NewChatHandler(dispatcher, logger, dev),
		credits:       handler.NewCreditsHandler(ledger, logger, dev),
		conversations: handler.NewConversationHandler(conversations, logger, dev),
		projects:      handler.NewProjectHandler(conversations, logger, dev),
		onboarding:    handler.NewOnboardingHandler(onboarding, logger, dev),
		analytics:     handler.NewAnalyticsHandler(analytics, logger, dev),
		admin:         handler.NewAdminHandler(ledger, logger, dev),
		serviceKeys:   handler.NewServiceKeyHandler(serviceKeys, logger, dev),
		pages:         pages,
	}, middlewareDeps{
		provider: provider,
		profiles: onboarding,
		keys:     serviceKeys,
		limiter:  cacheClient,
		recorder: recorder,
	}, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Stopped in reverse: worker, then Redis, then Postgres.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	if cfg.UsageWorkerEnabled {
		worker := usage.NewWorker(cacheClient.Client(), usageLogs, logger, usage.NewConsumerID(), recorder)
		go func() {
			if err := worker.Run(context.Background()); err != nil {
				logger.Error("usage worker exited", "error", err)
			}
		}()
		srv.OnShutdown("usage worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"generation_backend", cfg.GenerationBackend,
		"metrics_backend", cfg.MetricsBackend,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initMetrics picks the recorder and the handler serving /metrics.
func initMetrics(cfg *config.Config) (metrics.Recorder, http.Handler) {
	switch cfg.MetricsBackend {
	case config.MetricsPrometheus:
		p := metrics.NewPrometheus()
		return p, p.Handler()
	case config.MetricsMemory:
		m := metrics.NewInMemory()
		return m, http.HandlerFunc(handler.NewMetricsHandler(m).Metrics)
	default:
		return metrics.NewNoop(), http.HandlerFunc(handler.NewMetricsHandler(nil).Metrics)
	}
}

func initBackend(cfg *config.Config, logger *slog.Logger) generation.Backend {
	var backend generation.Backend
	switch cfg.GenerationBackend {
	case config.GenerationBackendHTTP:
		backend = generation.NewHTTPBackend(generation.HTTPConfig{
			URL:           cfg.GenerationURL,
			APIKey:        cfg.GenerationAPIKey,
			SigningSecret: cfg.GenerationSigningSecret,
			RPS:           cfg.GenerationRPS,
			Burst:         cfg.GenerationBurst,
		}, nil)
		logger.Info("using HTTP generation backend", "url", redactURL(cfg.GenerationURL))
	default:
		backend = generation.NewMockBackend(cfg.MockGenerationDelay, "")
		logger.Warn("using mock generation backend")
	}
	return generation.WithTimeout(backend, cfg.GenerationTimeout)
}

type routes struct {
	base          *handler.Handler
	health        *handler.HealthHandler
	metrics       http.Handler
	chat          *handler.ChatHandler
	credits       *handler.CreditsHandler
	conversations *handler.ConversationHandler
	projects      *handler.ProjectHandler
	onboarding    *handler.OnboardingHandler
	analytics     *handler.AnalyticsHandler
	admin         *handler.AdminHandler
	serviceKeys   *handler.ServiceKeyHandler
	pages         *handler.PageHandler
}

type middlewareDeps struct {
	provider identity.Provider
	profiles middleware.ProfileStateReader
	keys     middleware.ServiceKeyAuthenticator
	limiter  middleware.RateLimiter
	recorder metrics.Recorder
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(h routes, deps middlewareDeps, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))
	r.Use(middleware.Metrics(deps.recorder))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:    logger,
		Limiter:   deps.limiter,
		Metrics:   deps.recorder,
		Enabled:   cfg.RateLimitEnabled,
		UserRPM:   cfg.RateLimitGenerationRPM,
		UserBurst: cfg.RateLimitGenerationBurst,
		IPRPS:     cfg.RateLimitIPRPS,
		IPBurst:   cfg.RateLimitIPBurst,
	}
	r.Use(middleware.RateLimitIP(rateLimitCfg))

	r.Use(middleware.SessionGate(middleware.GateConfig{
		Logger:           logger,
		Provider:         deps.provider,
		Profiles:         deps.profiles,
		Metrics:          deps.recorder,
		CookieName:       cfg.SessionCookieName,
		LoginPath:        cfg.LoginPath,
		OnboardingPath:   cfg.OnboardingPath,
		SetupProfilePath: cfg.SetupProfilePath,
	}))

	// Ops endpoints
	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Method(http.MethodGet, "/metrics", h.metrics)

	// Browser API, authenticated by the session cookie
	r.Route("/api", func(r chi.Router) {
		r.NotFound(h.base.NotFound)

		// setup-profile takes no body.
		r.Post("/setup-profile", h.onboarding.SetupProfile)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireJSON)

			r.With(middleware.RateLimitUser(rateLimitCfg)).Post("/chat", h.chat.Send)
			r.With(middleware.RateLimitUser(rateLimitCfg)).Post("/generate", h.chat.Generate)

			r.Get("/credits", h.credits.Balance)
			r.Get("/conversations", h.conversations.List)
			r.Get("/messages", h.conversations.Messages)
			r.Get("/projects", h.projects.List)
			r.Post("/projects", h.projects.Create)
			r.Post("/onboarding", h.onboarding.Complete)
			r.Get("/analytics", h.analytics.Get)
		})
	})

	// Back-office API, authenticated by service keys
	r.Route("/admin/v1", func(r chi.Router) {
		r.Use(middleware.ServiceKeyAuth(middleware.AuthConfig{
			Logger: logger,
			Keys:   deps.keys,
		}))
		r.Use(middleware.RequireJSON)
		r.NotFound(h.base.NotFound)

		r.Route("/credits/{user_id}", func(r chi.Router) {
			r.With(middleware.RequireCreditsRead()).Get("/", h.admin.Balance)
			r.With(middleware.RequireCreditsWrite()).Post("/bonus", h.admin.GrantBonus)
		})

		r.Route("/keys", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/", h.serviceKeys.List)
			r.Post("/", h.serviceKeys.Create)
			r.Delete("/{key_id}", h.serviceKeys.Revoke)
		})
	})

	r.MethodNotAllowed(h.base.MethodNotAllowed)

	// Everything else is a page, rendered once the gate has let it through.
	r.NotFound(h.pages.Serve)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
