package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/train-ticket-market/internal/config"
	"github.com/iliyamo/train-ticket-market/internal/handler"
	"github.com/iliyamo/train-ticket-market/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI wires the market endpoints.  Read routes are public and may
// be served out of the Redis response cache; write routes always hit the
// engines.  Only /v1/me requires a bearer token, since it is the only
// operation bound to an account.  The rate limiter guards every /v1 route.
func RegisterAPI(e *echo.Echo, a *handler.API, jwtSecret string, rdb *redis.Client) {
	v1 := e.Group("/v1")
	v1.Use(middleware.RateLimit(config.LoadRateLimitConfig(), rdb))

	cached := middleware.ResponseCache(config.LoadCacheConfig(), rdb)
	v1.GET("/trains", a.Trains, cached)
	v1.GET("/trains/:id", a.TrainInfo, cached)
	v1.GET("/trains/:id/tickets", a.Tickets, cached)

	v1.POST("/tickets/book", a.BookTickets)
	v1.POST("/tickets/cancel", a.CancelTickets)

	v1.GET("/me", a.Me, middleware.Identity(jwtSecret))
}
