package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tutorhub/apiserver/config"
	"github.com/tutorhub/apiserver/internal/db"
	"github.com/tutorhub/apiserver/internal/events"
	"github.com/tutorhub/apiserver/internal/handlers"
	apimiddleware "github.com/tutorhub/apiserver/internal/middleware"
	"github.com/tutorhub/apiserver/internal/mq"
	"github.com/tutorhub/apiserver/internal/services"
	"github.com/tutorhub/apiserver/internal/store"
	"github.com/tutorhub/apiserver/internal/store/memory"
)

// Repositories are the four collections the services operate on.
type Repositories struct {
	Users    services.UserRepository
	Profiles services.ProfileRepository
	Sessions services.SessionRepository
	Reviews  services.ReviewRepository
}

// Dependencies are the collaborators NewRouter wires into the handlers.
// Publisher and RateLimiter are optional.
type Dependencies struct {
	Repos       Repositories
	Publisher   services.EventPublisher
	Payments    services.PaymentProvider
	RateLimiter apimiddleware.Counter
	Logger      *slog.Logger
	HashCost    int
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     http.Handler
	logger     *slog.Logger
	closers    []io.Closer

	// stopWorker and workerDone are set when events are consumed in-process.
	stopWorker context.CancelFunc
	workerDone chan struct{}
}

// OpenRepositories returns the configured store backend. The closer is nil
// for the in-memory backend.
func OpenRepositories(ctx context.Context, cfg config.Config) (Repositories, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		mem := memory.New()
		return Repositories{
			Users:    mem.Users,
			Profiles: mem.Profiles,
			Sessions: mem.Sessions,
			Reviews:  mem.Reviews,
		}, nil, nil
	case config.StoreBackendPostgres, "":
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return Repositories{}, nil, err
		}
		repos := store.NewRepositories(dbConn)
		return Repositories{
			Users:    repos.Users,
			Profiles: repos.Profiles,
			Sessions: repos.Sessions,
			Reviews:  repos.Reviews,
		}, dbCloser{dbConn}, nil
	default:
		return Repositories{}, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

type dbCloser struct{ db *sql.DB }

func (c dbCloser) Close() error { return c.db.Close() }

// New opens every configured backend and constructs a Server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{logger: logger}
	repos, closer, err := OpenRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}
	srv.track(closer)

	deps := Dependencies{Repos: repos, Logger: logger}

	broker, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = srv.closeAll()
		return nil, err
	}
	if broker != nil {
		srv.track(broker)
		deps.Publisher = events.NewPublisher(broker)
		// The memory bus only reaches subscribers in this process, so the
		// rating worker runs alongside the HTTP server.
		if cfg.MQ.Backend == mq.BackendMemory {
			reviews := services.NewReviewService(repos.Reviews, repos.Sessions, repos.Profiles, repos.Users, nil, logger)
			srv.startWorker(events.NewWorker(broker, reviews, logger))
		}
	}

	if cfg.Redis.Addr != "" {
		redis, err := db.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			srv.stopInProcessWorker()
			_ = srv.closeAll()
			return nil, err
		}
		srv.track(redis)
		deps.RateLimiter = redis
	}

	srv.router, err = NewRouter(cfg, deps)
	if err != nil {
		srv.stopInProcessWorker()
		_ = srv.closeAll()
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// NewRouter builds the full route tree on top of deps.
func NewRouter(cfg config.Config, deps Dependencies) (http.Handler, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	repos := deps.Repos

	userService := services.NewUserService(repos.Users)
	if deps.HashCost > 0 {
		userService = userService.WithHashCost(deps.HashCost)
	}
	profileService := services.NewProfileService(repos.Profiles, repos.Sessions, repos.Reviews, repos.Users, logger)
	sessionService := services.NewSessionService(repos.Sessions, repos.Profiles, repos.Users, deps.Payments, deps.Publisher, logger)
	reviewService := services.NewReviewService(repos.Reviews, repos.Sessions, repos.Profiles, repos.Users, deps.Publisher, logger)
	statsService := services.NewStatsService(repos.Sessions, repos.Profiles, repos.Reviews)

	authHandler := handlers.NewAuthHandler(userService, handlers.AuthOptions{
		Secret:       cfg.Auth.JWTSecret,
		TokenTTL:     cfg.Auth.TokenTTL,
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
	})
	authMiddleware := authHandler.RequireAuth
	sessionHandler := handlers.NewSessionHandler(sessionService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		apimiddleware.Logging(logger),
		middleware.Recoverer,
		apimiddleware.Metrics(),
		apimiddleware.CORS(cfg.HTTP.AllowedOrigins),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/auth", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(apimiddleware.RateLimit(deps.RateLimiter, cfg.RateLimit))
		}
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/profiles", func(r chi.Router) {
		handlers.ProfileRouter(r, handlers.NewProfileHandler(profileService, cfg.HTTP.DefaultPageSize), authMiddleware)
	})
	router.Route("/sessions", func(r chi.Router) {
		handlers.SessionRouter(r, sessionHandler, authMiddleware)
	})
	router.Route("/payments", func(r chi.Router) {
		handlers.PaymentRouter(r, sessionHandler, authMiddleware)
	})
	router.Route("/reviews", func(r chi.Router) {
		handlers.ReviewRouter(r, handlers.NewReviewHandler(reviewService), authMiddleware)
	})
	router.Route("/stats", func(r chi.Router) {
		handlers.StatsRouter(r, handlers.NewStatsHandler(statsService), authMiddleware)
	})

	return router, nil
}

// Handler exposes the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, stops the in-process worker and
// releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.stopInProcessWorker()
	return errors.Join(err, s.closeAll())
}

func (s *Server) startWorker(worker *events.Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWorker = cancel
	s.workerDone = make(chan struct{})
	go func() {
		defer close(s.workerDone)
		if err := worker.Run(ctx); err != nil {
			s.logger.Error("in-process worker stopped", slog.Any("error", err))
		}
	}()
}

func (s *Server) stopInProcessWorker() {
	if s.stopWorker == nil {
		return
	}
	s.stopWorker()
	<-s.workerDone
	s.stopWorker = nil
}

func (s *Server) track(c io.Closer) {
	if c != nil {
		s.closers = append(s.closers, c)
	}
}

func (s *Server) closeAll() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}
