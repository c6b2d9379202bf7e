// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "sun/docs" // swagger docs
	"sun/internal/bootstrap"
	"sun/internal/config"
	"sun/internal/featureflags"
	"sun/internal/middleware"
	"sun/internal/models"
	"sun/internal/notifications"
	"sun/internal/observability"
	"sun/internal/repository"
	"sun/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
)

const defaultOrigins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"

// Server holds all dependencies and provides handlers
type Server struct {
	config             *config.Config
	store              repository.Store
	redis              *redis.Client
	app                *fiber.App
	promMiddleware     *fiberprometheus.FiberPrometheus
	shutdownCtx        context.Context
	shutdownFn         context.CancelFunc
	tokens             *middleware.TokenManager
	notifier           *notifications.Notifier
	hub                *notifications.Hub
	featureFlags       *featureflags.Manager
	userService        *service.UserService
	donationService    *service.DonationService
	leaderboardService *service.LeaderboardService
}

// Option customizes a Server built by NewServerWithDeps.
type Option func(*serverOptions)

type serverOptions struct {
	userOpts []service.UserServiceOption
}

// WithUserServiceOptions forwards options to the user service, e.g. a cheaper bcrypt cost in tests.
func WithUserServiceOptions(opts ...service.UserServiceOption) Option {
	return func(o *serverOptions) { o.userOpts = append(o.userOpts, opts...) }
}

// NewServer creates a new server instance with all dependencies
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SeedDemo: cfg.SeedDemo})
	if err != nil {
		return nil, fmt.Errorf("runtime initialization failed: %w", err)
	}
	srv, err := NewServerWithDeps(cfg, rt.Store, rt.Redis)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return srv, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; rate limiting is then skipped and events stay in-process.
func NewServerWithDeps(cfg *config.Config, store repository.Store, redisClient *redis.Client, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Initialize Prometheus metrics
	prom := middleware.InitMetrics("sun-api")

	notifier := notifications.NewNotifier(redisClient)
	server := &Server{
		config:         cfg,
		store:          store,
		redis:          redisClient,
		promMiddleware: prom,
		tokens: middleware.NewTokenManager(middleware.TokenConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			TTL:      cfg.TokenTTL(),
		}),
		notifier:     notifier,
		hub:          notifications.NewHub(),
		featureFlags: featureflags.NewManager(cfg.FeatureFlags),
	}
	server.userService = service.NewUserService(store.Users(), o.userOpts...)
	server.donationService = service.NewDonationService(store.Donations(), store.Users(), notifier)
	server.leaderboardService = service.NewLeaderboardService(store.Users())

	return server, nil
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "SUN API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Message: fe.Message})
			}
			observability.Logger.ErrorContext(c.UserContext(), "unhandled error",
				slog.String("path", c.Path()),
				slog.String("error", err.Error()),
			)
			return models.RespondWithError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	app.Use(middleware.TracingMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultOrigins
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, models.NewRateLimitedError())
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "SUN Backend Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := s.tokens.AuthRequired()

	// User routes
	users := api.Group("/users")
	users.Post("/register", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "register"), s.Register)
	users.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	users.Get("/profile", auth, s.GetProfile)

	// Donation routes. Specific paths before the generic /:id.
	donations := api.Group("/donations")
	donations.Get("/", s.ListDonations)
	donations.Get("/available", s.ListAvailableDonations)
	donations.Post("/", auth, middleware.RateLimit(
		s.redis, 30, time.Minute, "create_donation"), s.CreateDonation)
	donations.Put("/:id/claim", auth, s.ClaimDonation)
	donations.Post("/:id/claim", auth, s.ClaimDonation)
	donations.Put("/:id/distribute", auth, s.DistributeDonation)
	donations.Post("/:id/distribute", auth, s.DistributeDonation)
	donations.Get("/:id", s.GetDonation)

	api.Get("/leaderboard", s.GetLeaderboard)

	api.Get("/feature-flags", auth, s.GetFeatureFlags)

	// Lifecycle event feed
	api.Get("/ws", s.tokens.WebSocketAuthRequired(), s.FeedEnabled(), s.FeedHandler())
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
		observability.Logger.Error("failed to start feed wiring", slog.String("error", err.Error()))
	}

	observability.Logger.Info("server starting",
		slog.String("port", s.config.Port),
		slog.String("store", s.store.Name()),
		slog.Bool("redis", s.redis != nil),
	)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the feed subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Close WebSocket connections before the listener so handlers can return
	if err := s.hub.Shutdown(ctx); err != nil {
		observability.Logger.Warn("error shutting down feed hub", slog.String("error", err.Error()))
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			observability.Logger.Warn("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.store.Close(ctx); err != nil {
		observability.Logger.Warn("error closing store", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			observability.Logger.Warn("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	observability.Logger.Info("server shutdown complete")
	return nil
}
