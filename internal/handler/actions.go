package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/virtual-cafe/internal/engine"
	"github.com/iliyamo/virtual-cafe/internal/store"
)

// ActionHandler exposes the user-initiated engine operations: sessions,
// seats, orders, chat activity and reconnect restoration. Identity arrives
// from the external auth layer as headers (X-User-ID, X-Display-Name); the
// handler owns no authentication logic. Every action refreshes the user's
// activity record before touching anything else, because the activity
// record is what keeps the eviction sweep away.
type ActionHandler struct {
	Engine *engine.Engine
}

// NewActionHandler constructs an ActionHandler. The engine must be non-nil.
func NewActionHandler(e *engine.Engine) *ActionHandler {
	if e == nil {
		panic("nil engine passed to NewActionHandler")
	}
	return &ActionHandler{Engine: e}
}

// identity pulls the caller's identity headers. Display name falls back to
// the user ID so broadcasts never show an empty name.
func identity(c echo.Context) (userID, displayName string, ok bool) {
	userID = c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return "", "", false
	}
	displayName = c.Request().Header.Get("X-Display-Name")
	if displayName == "" {
		displayName = userID
	}
	return userID, displayName, true
}

// generation reads the session generation the client obtained from
// CreateSession. Absent or malformed values become 0, which loses every
// ghost-reconciliation comparison; a headerless client can join free seats
// but can never displace anyone.
func generation(c echo.Context) int64 {
	g, _ := strconv.ParseInt(c.Request().Header.Get("X-Session-Generation"), 10, 64)
	return g
}

// CreateSession handles POST /v1/session. It mints a session with the next
// store-wide generation; the client echoes the generation back on joins so
// the registry can order its sessions.
func (h *ActionHandler) CreateSession(c echo.Context) error {
	if _, _, ok := identity(c); !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing identity"})
	}
	s, err := h.Engine.Seats.NewSession(c.Request().Context(), uuid.NewString())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session creation failed"})
	}
	return c.JSON(http.StatusCreated, s)
}

// JoinSeat handles POST /v1/rooms/:room/seats/:seat/join. A join while
// already seated elsewhere in the room is a seat change: the registry moves
// the assignment atomically and the user's consumables follow, old seat
// cleared before the new one is populated.
func (h *ActionHandler) JoinSeat(c echo.Context) error {
	userID, displayName, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing identity"})
	}
	roomID := c.Param("room")
	seatID, err := strconv.Atoi(c.Param("seat"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat"})
	}
	ctx := c.Request().Context()

	if err := h.Engine.Activity.RecordActivity(ctx, userID, displayName, roomID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "activity update failed"})
	}

	oldSeat, err := h.Engine.Seats.GetUserSeat(ctx, roomID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "seat lookup failed"})
	}

	err = h.Engine.Seats.JoinSeat(ctx, roomID, seatID, userID, displayName, generation(c))
	switch {
	case errors.Is(err, store.ErrInvalidSeat):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat"})
	case errors.Is(err, store.ErrSeatOccupied):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat occupied"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
	}

	if oldSeat != 0 && oldSeat != seatID {
		if err := h.Engine.Consumables.TransferSeat(ctx, roomID, userID, oldSeat, seatID); err != nil {
			c.Logger().Warnf("consumable transfer for %s failed: %v", userID, err)
		}
	}
	if err := h.Engine.Activity.SetSeat(ctx, userID, seatID); err != nil {
		c.Logger().Warnf("seat record for %s failed: %v", userID, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"room_id": roomID, "seat_id": seatID})
}

// LeaveSeat handles POST /v1/rooms/:room/leave. Consumables are not deleted:
// they shift to the grace window so a reconnect can restore them.
func (h *ActionHandler) LeaveSeat(c echo.Context) error {
	userID, displayName, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing identity"})
	}
	roomID := c.Param("room")
	ctx := c.Request().Context()

	if err := h.Engine.Activity.RecordActivity(ctx, userID, displayName, roomID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "activity update failed"})
	}
	seatID, err := h.Engine.Seats.GetUserSeat(ctx, roomID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "seat lookup failed"})
	}
	removed, err := h.Engine.Seats.LeaveSeat(ctx, roomID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "leave failed"})
	}
	if removed {
		if err := h.Engine.Consumables.ClearForLeave(ctx, roomID, userID, seatID); err != nil {
			c.Logger().Warnf("consumable clear for %s failed: %v", userID, err)
		}
	}
	if err := h.Engine.Activity.MarkLeft(ctx, userID); err != nil {
		c.Logger().Warnf("leave record for %s failed: %v", userID, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": removed})
}

// orderRequest is the body for PlaceOrder. Exactly one of item_id and
// request should be set; item_id wins when both are.
type orderRequest struct {
	ItemID  string `json:"item_id"`
	Request string `json:"request"`
}

// PlaceOrder handles POST /v1/rooms/:room/orders for both catalog and
// free-form orders.
func (h *ActionHandler) PlaceOrder(c echo.Context) error {
	userID, displayName, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing identity"})
	}
	roomID := c.Param("room")
	var req orderRequest
	if err := c.Bind(&req); err != nil || (req.ItemID == "" && req.Request == "") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "item_id or request required"})
	}
	ctx := c.Request().Context()

	if err := h.Engine.Activity.RecordActivity(ctx, userID, displayName, roomID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "activity update failed"})
	}
	seatID, err := h.Engine.Seats.GetUserSeat(ctx, roomID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "seat lookup failed"})
	}

	if req.ItemID != "" {
		o, err := h.Engine.OrderFlow.PlaceOrder(ctx, userID, displayName, roomID, req.ItemID, seatID)
		if errors.Is(err, store.ErrItemNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "order failed"})
		}
		return c.JSON(http.StatusCreated, o)
	}

	o, err := h.Engine.OrderFlow.PlaceFreeformOrder(ctx, userID, displayName, roomID, req.Request, seatID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "order failed"})
	}
	return c.JSON(http.StatusCreated, o)
}

// CompleteOrder handles POST /v1/orders/:id/complete.
func (h *ActionHandler) CompleteOrder(c echo.Context) error {
	userID, displayName, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing identity"})
	}
	orderID := c.Param("id")
	ctx := c.Request().Context()

	if a, err := h.Engine.Activity.Get(ctx, userID); err == nil {
		_ = h.Engine.Activity.RecordActivity(ctx, userID, displayName, a.RoomID)
	}

	err := h.Engine.OrderFlow.CompleteOrder(ctx, userID, orderID)
	switch {
	case errors.Is(err, store.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "complete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Chat handles POST /v1/rooms/:room/chat. The engine does not see message
// content (that belongs to the conversation pipeline), only the activity
// and presence signal a message implies.
func (h *ActionHandler) Chat(c echo.Context) error {
	userID, displayName, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing identity"})
	}
	roomID := c.Param("room")
	ctx := c.Request().Context()

	if err := h.Engine.Activity.RecordActivity(ctx, userID, displayName, roomID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "activity update failed"})
	}
	if err := h.Engine.Avatars.MarkChatting(ctx, userID, roomID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "presence update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Restore handles POST /v1/rooms/:room/restore, the reconnect path: it
// refreshes activity, revives consumables surviving the grace window at the
// user's current seat, and replays persisted orders.
func (h *ActionHandler) Restore(c echo.Context) error {
	userID, displayName, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing identity"})
	}
	roomID := c.Param("room")
	ctx := c.Request().Context()

	if err := h.Engine.Activity.RecordActivity(ctx, userID, displayName, roomID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "activity update failed"})
	}
	seatID, err := h.Engine.Seats.GetUserSeat(ctx, roomID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "seat lookup failed"})
	}
	consumables, err := h.Engine.Consumables.RestoreForJoin(ctx, roomID, userID, seatID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "restore failed"})
	}
	orders, err := h.Engine.OrderFlow.RestoreUserOrders(ctx, userID, roomID, seatID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "restore failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"seat_id":     seatID,
		"consumables": consumables,
		"orders":      orders,
	})
}
