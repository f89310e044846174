// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/auth"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/pkg/logger"
)

const (
	roleClerk = auth.RoleClerk
	roleAdmin = auth.RoleAdmin
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Release selects gin release mode
	Release bool

	// Domain services
	Items  handlers.ItemService
	Engine interface {
		handlers.StockEngine
		handlers.Reconciler
	}
	Ledger  handlers.LedgerReader
	Reports handlers.ReportService
	History handlers.HistoryReader // optional

	// Health probes
	Health *handlers.HealthHandler

	// JWTValidator enables bearer auth on /api/v1 when set
	JWTValidator middleware.JWTValidator

	// Idempotency enables X-Idempotency-Key handling when set
	Idempotency middleware.IdempotencyStore

	// Metrics, when set, instruments requests and serves /metrics
	Metrics interface {
		middleware.HTTPRecorder
		Handler() http.Handler
	}
	InFlight middleware.InFlightGauge
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics, cfg.InFlight))
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	router.Use(middleware.ErrorHandler())

	if cfg.Health != nil {
		health := router.Group("/health")
		health.GET("/live", cfg.Health.Live)
		health.GET("/ready", cfg.Health.Ready)
		health.GET("/info", cfg.Health.Info)
	}

	authEnabled := cfg.JWTValidator != nil

	api := router.Group("/api/v1")
	if authEnabled {
		api.Use(middleware.Auth(cfg.JWTValidator))
	}
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()

	RegisterItemRoutes(api.Group("/items"),
		handlers.NewItemHandler(base, cfg.Items, cfg.Engine, cfg.History), authEnabled)
	RegisterLedgerRoutes(api,
		handlers.NewLedgerHandler(base, cfg.Engine, cfg.Ledger), authEnabled)
	RegisterReportRoutes(api.Group("/reports"),
		handlers.NewReportsHandler(base, cfg.Reports), authEnabled)

	return router
}
