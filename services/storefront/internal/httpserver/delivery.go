package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/souq/pkg/logging"
	"github.com/Skotchmaster/souq/services/storefront/internal/service"
	"github.com/Skotchmaster/souq/services/storefront/internal/transport"
)

type DeliveryHTTP struct {
	Svc *service.DeliveryService
}

func (h *DeliveryHTTP) Zones(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delivery.zones")

	zones, err := h.Svc.Zones(ctx)
	if err != nil {
		return fail(l, "delivery_zones_failed", err)
	}
	return c.JSON(http.StatusOK, zones)
}

func (h *DeliveryHTTP) Cities(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delivery.cities")

	out, err := h.Svc.CitiesByZone(ctx)
	if err != nil {
		return fail(l, "delivery_cities_failed", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DeliveryHTTP) Check(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delivery.check")

	var req transport.CheckDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "delivery_check_failed", "invalid body", err)
	}
	if strings.TrimSpace(req.City) == "" {
		return badRequest(l, "delivery_check_failed", "city is required", nil)
	}
	out, err := h.Svc.IsAvailable(ctx, req.City)
	if err != nil {
		return fail(l, "delivery_check_failed", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DeliveryHTTP) Calculate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delivery.calculate")

	var req transport.CalculateDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "delivery_calculate_failed", "invalid body", err)
	}
	if strings.TrimSpace(req.City) == "" {
		return badRequest(l, "delivery_calculate_failed", "city is required", nil)
	}
	if req.OrderAmount == nil || req.OrderAmount.IsNegative() {
		return badRequest(l, "delivery_calculate_failed", "orderAmount must be a non-negative amount", nil)
	}
	out, err := h.Svc.Calculate(ctx, req.City, *req.OrderAmount)
	if err != nil {
		return fail(l, "delivery_calculate_failed", err)
	}
	return c.JSON(http.StatusOK, out)
}
