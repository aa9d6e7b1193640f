package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/virtual-cafe/internal/config"
	"github.com/iliyamo/virtual-cafe/internal/handler"
	"github.com/iliyamo/virtual-cafe/internal/middleware"
)

// RegisterRoutes registers routes that need no middleware on the provided
// Echo instance. Currently it exposes only a health check used by load
// balancers and monitoring to verify that the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterActions registers the user-initiated engine operations under /v1.
// Every route here mutates shared state, so the Redis token bucket sits in
// front of all of them; identity headers are validated inside the handlers.
func RegisterActions(e *echo.Echo, a *handler.ActionHandler, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	// Session creation mints the generation used for ghost reconciliation.
	g.POST("/session", a.CreateSession)
	// Seat occupancy: join doubles as seat change, leave keeps consumables
	// recoverable for the grace window.
	g.POST("/rooms/:room/seats/:seat/join", a.JoinSeat)
	// Moving is joining another seat; the handler detects the held seat and
	// transfers consumables, so both routes share it.
	g.POST("/rooms/:room/seats/:seat/move", a.JoinSeat)
	g.POST("/rooms/:room/leave", a.LeaveSeat)
	// Orders: one endpoint covers catalog and free-form placement.
	g.POST("/rooms/:room/orders", a.PlaceOrder)
	g.POST("/orders/:id/complete", a.CompleteOrder)
	// Chat is only a presence/activity signal here; message delivery is the
	// transport layer's business.
	g.POST("/rooms/:room/chat", a.Chat)
	// Reconnect restoration.
	g.POST("/rooms/:room/restore", a.Restore)
}

// RegisterIntrospection registers the read-only diagnostic endpoints under
// /v1. They are safe to expose without rate limiting and sit behind a short
// response cache so polling dashboards do not hammer the store.
func RegisterIntrospection(e *echo.Echo, h *handler.IntrospectHandler, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	g.GET("/rooms/:room/seats", h.RoomSeats)
	g.GET("/orders/queue", h.OrderQueue)
	g.GET("/activity/stats", h.ActivityStats)
	g.GET("/menu", h.MenuItems)
}
