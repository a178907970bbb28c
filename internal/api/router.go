package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Simon2219/BetterIntelligence/internal/api/handler"
	"github.com/Simon2219/BetterIntelligence/internal/api/middleware"
	"github.com/Simon2219/BetterIntelligence/internal/core/ports"
	"github.com/Simon2219/BetterIntelligence/internal/hooks"
	"github.com/Simon2219/BetterIntelligence/internal/realtime"
)

// Deps carries everything the router needs; constructed in main.
type Deps struct {
	AuthService ports.AuthService
	Tokens      ports.TokenService
	Users       ports.UserRepository
	Gateway     *realtime.Gateway
	Registry    *hooks.Registry
	AuthHandler *handler.AuthHandler
	Mongo       *mongo.Database
	Redis       *redis.Client
	Log         zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("betterintelligence"))

	authenticate := middleware.Authenticate(d.Tokens, d.Users)

	// --- Auth routes ---
	e.POST("/auth/signup", d.AuthHandler.Signup)
	e.POST("/auth/login", d.AuthHandler.Login)
	e.POST("/auth/refresh", d.AuthHandler.Refresh)
	e.POST("/auth/logout", d.AuthHandler.Logout, authenticate)
	e.GET("/auth/session", d.AuthHandler.Session, authenticate)

	// --- Realtime gateway ---
	e.GET("/ws", d.Gateway.Handle)

	// --- Hook registrations (admin only) ---
	hooksHandler := handler.NewHooksHandler(d.Registry)
	hookGroup := e.Group("/hooks", authenticate, middleware.RequireAdmin())
	hookGroup.POST("", hooksHandler.Register)
	hookGroup.GET("", hooksHandler.List)
	hookGroup.DELETE("/:event", hooksHandler.Clear)

	// --- Observability (no auth required) ---
	e.GET("/metrics", echoprometheus.NewHandler())

	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Mongo, d.Redis)
	e.GET("/health", healthHandler.Liveness)             // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness)   // readiness – are dependencies up?

	return e
}
