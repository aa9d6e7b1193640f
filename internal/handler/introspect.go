package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/virtual-cafe/internal/engine"
	"github.com/iliyamo/virtual-cafe/internal/repository"
)

// IntrospectHandler serves the read-only diagnostic surface: occupancy
// dumps, queue depth, activity stats and the public menu. Nothing here
// mutates state; these endpoints are for operators and dashboards, not for
// clients driving the engine.
type IntrospectHandler struct {
	Engine *engine.Engine
	Menu   *repository.MenuRepo
}

// NewIntrospectHandler constructs an IntrospectHandler.
func NewIntrospectHandler(e *engine.Engine, menu *repository.MenuRepo) *IntrospectHandler {
	if e == nil {
		panic("nil engine passed to NewIntrospectHandler")
	}
	return &IntrospectHandler{Engine: e, Menu: menu}
}

// RoomSeats handles GET /v1/rooms/:room/seats, dumping the room's occupancy
// ordered by seat.
func (h *IntrospectHandler) RoomSeats(c echo.Context) error {
	assignments, err := h.Engine.Seats.ListRoom(c.Request().Context(), c.Param("room"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "occupancy read failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"room_id": c.Param("room"), "seats": assignments})
}

// OrderQueue handles GET /v1/orders/queue: queue depth plus whatever sits in
// the preparer slot.
func (h *IntrospectHandler) OrderQueue(c echo.Context) error {
	depth, preparing, err := h.Engine.OrderFlow.QueueInfo(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "queue read failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"depth": depth, "preparing": preparing})
}

// ActivityStats handles GET /v1/activity/stats.
func (h *IntrospectHandler) ActivityStats(c echo.Context) error {
	stats, err := h.Engine.Activity.ActivityStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stats read failed"})
	}
	return c.JSON(http.StatusOK, stats)
}

// MenuItems handles GET /v1/menu, listing the active catalog.
func (h *IntrospectHandler) MenuItems(c echo.Context) error {
	if h.Menu == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "catalog unavailable"})
	}
	items, err := h.Menu.ListActive(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "menu read failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
