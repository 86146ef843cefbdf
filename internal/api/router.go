package api

import (
	"net"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/linkrelay/panel/internal/api/handler"
	"github.com/linkrelay/panel/internal/api/middleware"
	"github.com/linkrelay/panel/internal/api/session"
	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/internal/core/ports"
	"github.com/linkrelay/panel/internal/infrastructure/http/handlers"
	"github.com/linkrelay/panel/pkg/logger"

	_ "github.com/linkrelay/panel/docs"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Auth          ports.AuthService
	Identity      ports.IdentityResolver
	Impersonation ports.Impersonator
	Accounts      ports.AccountManager
	Sessions      *session.Store
	// Readiness probes keyed by dependency name.
	Readiness map[string]handlers.Check
	// TrustedProxies, when set, makes the client IP the right-most
	// X-Forwarded-For entry not owned by one of these ranges.
	TrustedProxies []*net.IPNet
	// StaticDir, when set, serves the built panel UI behind the Gate.
	StaticDir string
	// Registry receives the HTTP request metrics; nil uses the default
	// Prometheus registry.
	Registry *prometheus.Registry
	Log      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)
	if len(d.TrustedProxies) > 0 {
		e.IPExtractor = trustedIPExtractor(d.TrustedProxies)
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(logger.Middleware(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(metricsConfig(d.Registry)))
	e.Use(middleware.Gate(d.Sessions))

	// --- Operational endpoints (public) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(d.Readiness)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", metricsHandler(d.Registry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Identity, d.Sessions)
	impersonationHandler := handler.NewImpersonationHandler(d.Impersonation, d.Identity, d.Sessions)
	accountHandler := handler.NewAccountHandler(d.Accounts, d.Identity)

	e.POST("/api/auth/login", authHandler.Login)
	e.POST("/api/auth/logout", authHandler.Logout)

	authed := e.Group("/api", middleware.RequireSession(d.Sessions))
	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/impersonate", impersonationHandler.Enter, middleware.RBAC(domain.RoleAdmin))
	authed.DELETE("/impersonate", impersonationHandler.Exit)
	authed.PATCH("/users/:id/password", accountHandler.ChangePassword)
	authed.PATCH("/users/:id/status", accountHandler.UpdateStatus, middleware.RBAC(domain.RoleAdmin))

	// --- Panel UI ---
	if d.StaticDir != "" {
		e.Use(echomiddleware.StaticWithConfig(echomiddleware.StaticConfig{
			Root:  d.StaticDir,
			HTML5: true,
			Skipper: func(c echo.Context) bool {
				p := c.Request().URL.Path
				return p == "/api" || strings.HasPrefix(p, "/api/")
			},
		}))
	}

	return e
}

func trustedIPExtractor(nets []*net.IPNet) echo.IPExtractor {
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range nets {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

func metricsConfig(reg *prometheus.Registry) echoprometheus.MiddlewareConfig {
	cfg := echoprometheus.MiddlewareConfig{Subsystem: "panel"}
	if reg != nil {
		cfg.Registerer = reg
	}
	return cfg
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}
