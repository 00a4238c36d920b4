package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pos-backoffice/internal/auth"
	"pos-backoffice/internal/config"
	"pos-backoffice/internal/database"
	"pos-backoffice/internal/metrics"
	custommiddleware "pos-backoffice/internal/middleware"
	"pos-backoffice/internal/repository"
	"pos-backoffice/internal/service"
	"pos-backoffice/internal/session"
	"pos-backoffice/internal/transport"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *database.Manager
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers over db. redisClient
// may be nil, in which case login rate limiting is per process.
func NewServer(cfg *config.Config, logger *zap.Logger, db *database.Manager, redisClient *redis.Client) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	loc := cfg.Store.Location()
	hasher := auth.NewPasswordHasher(auth.DefaultCost)
	sessions := session.New()
	tokens := session.NewTokenIssuer(cfg.Session.Secret, cfg.Session.TTL)

	// Initialize repositories
	users := repository.NewUserRepository(db, hasher)
	categories := repository.NewCategoryRepository(db)
	products := repository.NewProductRepository(db)
	sales := repository.NewSaleRepository(db, loc)
	lines := repository.NewSaleLineRepository(db)

	// Initialize services
	userService := service.NewUserService(users, hasher, sessions, tokens, m, logger)
	catalogService := service.NewCatalogService(db, categories, products, sessions, logger)
	saleService := service.NewSaleService(db,
		service.SaleRepositories{Sales: sales, Lines: lines, Products: products, Users: users},
		sessions,
		service.SaleOptions{StoreName: cfg.Store.Name, ReceiptDir: cfg.Store.ReceiptDir},
		m, logger,
	)
	reportService := service.NewReportService(sales, lines, sessions)

	router := chi.NewRouter()
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.MetricsMiddleware(m))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.RequireJSON(logger))

	router.Get("/health", healthHandler(db, m))
	router.Handle("/metrics", m.Handler())

	routes := transport.Routes{
		Auth:    custommiddleware.AuthMiddleware(tokens, sessions, logger),
		Limiter: custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.LoginAttempts,
			Window:            cfg.RateLimit.LoginWindow,
			KeyPrefix:         "login",
		}, logger),
	}
	transport.NewSessionHandler(userService, logger).RegisterRoutes(router, routes)
	transport.NewUserHandler(userService, logger).RegisterRoutes(router, routes)
	transport.NewCatalogHandler(catalogService, logger).RegisterRoutes(router, routes)
	transport.NewSaleHandler(saleService, reportService, loc, logger).RegisterRoutes(router, routes)
	transport.NewReportHandler(reportService, loc, logger).RegisterRoutes(router, routes)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

// healthHandler reports the store connection and mirrors it into the db_up
// gauge.
func healthHandler(db *database.Manager, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := db.Health(r.Context())
		up := stats["status"] == "up"
		m.SetDBUp(up)

		status := http.StatusOK
		if !up {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, stats)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database connection", zap.Error(err))
	}

	_ = s.logger.Sync()
	return nil
}

// Ping reports whether the store answers, for readiness checks.
func (s *Server) Ping(ctx context.Context) bool {
	return s.db.IsHealthy(ctx)
}
