package api

import (
	"strconv"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/upload-gateway/docs"
	"github.com/99minutos/upload-gateway/internal/api/handler"
	"github.com/99minutos/upload-gateway/internal/api/middleware"
	"github.com/99minutos/upload-gateway/internal/core/domain"
	"github.com/99minutos/upload-gateway/internal/core/ports"
)

// Deps holds everything the router needs. Sessions may be nil, which
// disables cookie sessions and the /auth/session routes.
type Deps struct {
	Auth     ports.AuthService
	Sessions ports.SessionService
	Files    ports.FileService

	TokenScheme  string
	CookieName   string
	SecureCookie bool
	// MaxUploadBytes bounds request bodies; multipart overhead is allowed on top.
	MaxUploadBytes int64

	HealthChecks map[string]handler.Check
	Logger       zerolog.Logger

	// Registry receives the HTTP metrics instead of the default registerer.
	// /metrics serves it together with the default gatherer.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	if d.MaxUploadBytes > 0 {
		e.Use(echomiddleware.BodyLimit(strconv.FormatInt(d.MaxUploadBytes+1<<20, 10) + "B"))
	}

	promCfg := echoprometheus.MiddlewareConfig{Subsystem: "http"}
	handlerCfg := echoprometheus.HandlerConfig{}
	if d.Registry != nil {
		promCfg.Registerer = d.Registry
		handlerCfg.Gatherer = prometheus.Gatherers{prometheus.DefaultGatherer, d.Registry}
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(promCfg))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth, d.TokenScheme)
	fileHandler := handler.NewFileHandler(d.Files)
	requireAuth := middleware.Auth(d.Auth, d.Sessions, d.CookieName)

	// --- Auth routes ---
	e.POST("/auth/token", authHandler.Token)
	e.POST("/oauth/token", authHandler.Token)
	e.POST("/login", authHandler.Token)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/password", authHandler.ChangePassword, requireAuth)

	if d.Sessions != nil {
		sessionHandler := handler.NewSessionHandler(d.Auth, d.Sessions, d.CookieName, d.SecureCookie)
		e.POST("/auth/session", sessionHandler.Login)
		e.DELETE("/auth/session", sessionHandler.Logout)
	}

	admin := e.Group("/admin", requireAuth, middleware.RBAC(domain.RoleAdmin))
	admin.PUT("/users/:username/role", authHandler.SetRole)

	// --- File routes ---
	e.POST("/upload", fileHandler.Upload, requireAuth, middleware.RBAC(domain.RoleUser, domain.RoleAdmin))

	files := e.Group("/files", requireAuth)
	files.GET("", fileHandler.List)
	files.GET("/:id", fileHandler.Download)
	files.DELETE("/:id", fileHandler.Delete, middleware.RBAC(domain.RoleAdmin))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.HealthChecks)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)

	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(handlerCfg))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
