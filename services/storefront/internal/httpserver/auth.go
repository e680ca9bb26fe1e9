package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/souq/pkg/logging"
	middleware "github.com/Skotchmaster/souq/pkg/middleware/auth"
	"github.com/Skotchmaster/souq/services/storefront/internal/service"
	"github.com/Skotchmaster/souq/services/storefront/internal/transport"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login_failed", "invalid body", err)
	}

	res, err := h.Svc.Login(ctx, req.Phone, req.Name)
	if err != nil {
		return fail(l, "login_failed", err)
	}

	msg := "login successful"
	if res.Created {
		msg = "account created"
	}
	return c.JSON(http.StatusOK, transport.LoginResponse{
		Message: msg,
		User:    transport.NewUserDTO(res.User),
		Tokens:  res.Tokens,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "refresh_failed", "invalid body", err)
	}
	pair, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(l, "refresh_failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tokens": pair})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "logout_failed", "invalid body", err)
	}
	if err := h.Svc.Logout(ctx, req.RefreshToken); err != nil {
		return fail(l, "logout_failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) Profile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.profile")

	uid, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	u, err := h.Svc.Profile(ctx, uid)
	if err != nil {
		return fail(l, "profile_failed", err)
	}
	return c.JSON(http.StatusOK, transport.NewUserDTO(u))
}

func (h *AuthHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.update_profile")

	uid, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var req transport.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_profile_failed", "invalid body", err)
	}
	u, err := h.Svc.UpdateProfile(ctx, uid, req)
	if err != nil {
		return fail(l, "update_profile_failed", err)
	}
	return c.JSON(http.StatusOK, transport.NewUserDTO(u))
}
