package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bibliora/library-system/internal/api/handler"
	"github.com/bibliora/library-system/internal/api/middleware"
	"github.com/bibliora/library-system/internal/core/domain"
	"github.com/bibliora/library-system/internal/core/ports"
)

// Dependencies carries everything the router needs. Services are constructed
// in main so their lifecycles (audit dispatcher, connections) are owned there.
type Dependencies struct {
	DB    *mongo.Database
	Redis *redis.Client

	CopyService ports.CopyService
	CardService ports.CardService
	AuthService ports.AuthService

	JWTSecret          string
	LoanPeriodDays     int
	DailyFineRate      float64
	CardValidityMonths int

	Logger zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("library"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.AuthService)
	copyHandler := handler.NewCopyHandler(deps.CopyService, deps.LoanPeriodDays, deps.DailyFineRate)
	cardHandler := handler.NewCardHandler(deps.CardService, deps.CardValidityMonths)
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.DB, deps.Redis)

	authRequired := middleware.Auth(deps.JWTSecret)
	staffOnly := middleware.RBAC(domain.RoleAdmin, domain.RoleLibrarian)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Health probes and metrics (no auth required) ---
	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Copy lifecycle ---
	v1 := e.Group("/v1", authRequired)

	v1.POST("/books/:book_id/copies", copyHandler.Create, staffOnly)
	v1.GET("/books/:book_id/copies/best", copyHandler.BestAvailable)
	v1.GET("/books/:book_id/copies/statistics", copyHandler.Statistics)
	v1.GET("/books/:book_id/deletable", copyHandler.Deletable, staffOnly)

	v1.GET("/copies/overdue", copyHandler.Overdue, staffOnly)
	v1.GET("/copies/due-soon", copyHandler.DueSoon, staffOnly)
	v1.POST("/copies/:id/borrow", copyHandler.Borrow, staffOnly)
	v1.POST("/copies/:id/return", copyHandler.Return, staffOnly)
	v1.POST("/copies/:id/reserve", copyHandler.Reserve)
	v1.GET("/copies/:id/fine", copyHandler.Fine)
	v1.POST("/copies/maintenance", copyHandler.Maintenance, staffOnly)
	v1.POST("/copies/:id/maintenance/complete", copyHandler.CompleteMaintenance, staffOnly)
	v1.POST("/copies/:id/lost", copyHandler.MarkLost, staffOnly)
	v1.DELETE("/copies/:id", copyHandler.Delete, staffOnly)

	// --- Card lifecycle ---
	v1.POST("/cards", cardHandler.Create, staffOnly)
	v1.PATCH("/cards/:id/status", cardHandler.UpdateStatus, staffOnly)
	v1.DELETE("/cards/:id", cardHandler.Deactivate, staffOnly)
	v1.GET("/users/:user_id/cards", cardHandler.ListForUser)
	v1.GET("/users/:user_id/cards/active", cardHandler.HasActive)

	return e
}
