package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/souq/pkg/logging"
	middleware "github.com/Skotchmaster/souq/pkg/middleware/auth"
	"github.com/Skotchmaster/souq/services/storefront/internal/notify"
	"github.com/Skotchmaster/souq/services/storefront/internal/service"
	"github.com/Skotchmaster/souq/services/storefront/internal/transport"
	"github.com/Skotchmaster/souq/services/storefront/internal/util"
)

type OrderHTTP struct {
	Svc       *service.OrderService
	Dashboard *service.DashboardService
	Hub       *notify.Hub
	Upgrader  websocket.Upgrader
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_order_failed", "invalid body", err)
	}

	var userID *uuid.UUID
	if uid, ok := middleware.UserID(c); ok {
		userID = &uid
	}

	o, err := h.Svc.CreateOrder(ctx, req, userID)
	if err != nil {
		return fail(l, "create_order_failed", err)
	}
	return c.JSON(http.StatusCreated, transport.CreateOrderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Total:       o.Total,
		Status:      o.Status,
	})
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "get_order_failed", "id is not a valid id", err)
	}
	o, err := h.Svc.GetOrder(ctx, id)
	if err != nil {
		return fail(l, "get_order_failed", err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "update_status_failed", "id is not a valid id", err)
	}
	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_status_failed", "invalid body", err)
	}

	o, err := h.Svc.UpdateStatus(ctx, id, req.Status, req.Notes)
	if err != nil {
		return fail(l, "update_status_failed", err)
	}
	return c.JSON(http.StatusOK, transport.OrderSummary{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
	})
}

func (h *OrderHTTP) MyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.my")

	uid, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	page, _, limit := util.Calculate(
		util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("limit"), 10),
	)
	out, err := h.Svc.MyOrders(ctx, uid, page, limit)
	if err != nil {
		return fail(l, "my_orders_failed", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHTTP) Recent(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.recent")

	orders, err := h.Svc.RecentOrders(ctx, util.Limit(c.QueryParam("limit"), 10))
	if err != nil {
		return fail(l, "recent_orders_failed", err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) ByStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.by_status")

	orders, err := h.Svc.OrdersByStatus(ctx, c.Param("status"))
	if err != nil {
		return fail(l, "orders_by_status_failed", err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.stats")

	stats, err := h.Dashboard.Stats(ctx)
	if err != nil {
		return fail(l, "order_stats_failed", err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Live upgrades to a websocket and streams order events until the client leaves.
func (h *OrderHTTP) Live(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.live")

	if h.Hub == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "live feed disabled")
	}
	conn, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		l.Warn("live_upgrade_failed", "error", err)
		return nil
	}
	l.Info("live_client_connected")
	h.Hub.Serve(ctx, notify.NewClient(conn))
	l.Info("live_client_disconnected")
	return nil
}
