package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/safeher/apiserver/config"
	"github.com/safeher/apiserver/internal/auth"
	"github.com/safeher/apiserver/internal/cache"
	"github.com/safeher/apiserver/internal/db"
	"github.com/safeher/apiserver/internal/handlers"
	"github.com/safeher/apiserver/internal/logging"
	"github.com/safeher/apiserver/internal/mq"
	"github.com/safeher/apiserver/internal/services"
	"github.com/safeher/apiserver/internal/storage"
	"github.com/safeher/apiserver/internal/store"
)

const (
	defaultPort           = 8080
	defaultRequestTimeout = 60 * time.Second
	cachePrefix           = "safeher:"
)

// Services bundles what the router needs to serve requests.
type Services struct {
	Users       *services.UserService
	Reports     *services.ReportService
	Moderation  *services.ModerationService
	Stats       *services.StatsService
	Export      *services.ExportService
	Attachments *services.AttachmentService
	Tokens      *auth.TokenManager

	MaxUploadSize  int64
	RequestTimeout time.Duration
	DB             handlers.Pinger
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	redis      *redis.Client
}

// New connects to the backing services and builds the router. The message
// queue and Redis are optional: when unreachable, queued exports and stats
// caching are disabled.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", blobs.Bucket(), err)
	}

	log := logging.Logger.WithField("source", "server")

	var publisher services.Publisher
	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		log.WithError(err).WithField("backend", cfg.MQ.Backend).Warn("message queue unavailable, queued exports disabled")
		queue = nil
	} else {
		publisher = queue
	}

	var statsCache services.Cache
	redisClient := cache.NewRedisClient(ctx, cfg.Redis)
	if redisClient != nil {
		statsCache = cache.NewRedisCache(redisClient, cachePrefix)
	} else {
		log.WithField("addr", cfg.Redis.Addr).Warn("redis unavailable, stats caching disabled")
	}

	userRepo := store.NewUserRepository(dbConn)
	reportRepo := store.NewReportRepository(dbConn)
	noteRepo := store.NewNoteRepository(dbConn)
	statsRepo := store.NewStatsRepository(dbConn)

	svc := Services{
		Users:          services.NewUserService(userRepo, services.BcryptHasher{}),
		Reports:        services.NewReportService(reportRepo, noteRepo),
		Moderation:     services.NewModerationService(reportRepo, noteRepo),
		Stats:          services.NewStatsService(statsRepo, statsCache, cfg.Redis.StatsTTL),
		Export:         services.NewExportService(statsRepo, blobs, publisher, cfg.MQ.ExportChannel),
		Attachments:    services.NewAttachmentService(blobs, cfg.Uploads),
		Tokens:         auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		MaxUploadSize:  cfg.Uploads.MaxFileSize,
		RequestTimeout: cfg.RequestTimeout,
		DB:             dbConn,
	}
	router := NewRouter(svc)

	port := cfg.ServerPort
	if port == 0 {
		port = defaultPort
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.WithFields(logrus.Fields{
		"port":    port,
		"storage": cfg.Storage.Backend,
		"mq":      queue != nil,
		"cache":   redisClient != nil,
	}).Info("server configured")

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		redis:      redisClient,
	}, nil
}

// NewRouter registers every route on a fresh chi router.
func NewRouter(svc Services) *chi.Mux {
	timeout := svc.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware,
		middleware.Recoverer,
		sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle,
		middleware.Timeout(timeout),
	)

	authMiddleware := handlers.RequireAuth(svc.Tokens)
	uploads := handlers.NewUploadHandler(svc.Attachments, svc.MaxUploadSize)
	health := handlers.Healthz(svc.DB)

	router.Get("/healthz", health)
	router.Get("/uploads/*", uploads.ServeFile)
	router.Route("/api", func(r chi.Router) {
		r.Get("/health", health)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, svc.Users, svc.Tokens)
		})
		r.Route("/reports", func(r chi.Router) {
			handlers.ReportRouter(r, svc.Reports, authMiddleware)
		})
		r.Route("/moderator", func(r chi.Router) {
			handlers.ModeratorRouter(r, svc.Moderation, authMiddleware)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, svc.Users, svc.Stats, svc.Export, authMiddleware)
		})
		r.Route("/uploads", func(r chi.Router) {
			handlers.UploadRouter(r, uploads, authMiddleware)
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
