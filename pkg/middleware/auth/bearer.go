package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/souq/pkg/hash"
	"github.com/Skotchmaster/souq/pkg/logging"
	"github.com/Skotchmaster/souq/pkg/tokens"
)

const (
	ctxUserID = "user_id"
	ctxPhone  = "phone"

	HeaderAdminSecret = "X-Admin-Secret"
)

type BearerAuth struct {
	AccessSecret    []byte
	AdminSecretHash string
}

func NewBearerAuth(accessSecret []byte, adminSecretHash string) *BearerAuth {
	return &BearerAuth{AccessSecret: accessSecret, AdminSecretHash: adminSecretHash}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (m *BearerAuth) claims(c echo.Context) (*tokens.AccessClaims, error) {
	tok := bearerToken(c)
	if tok == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}
	claims, err := tokens.AccessClaimsFromToken(tok, m.AccessSecret)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired access token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid access token subject")
	}
	return claims, nil
}

func (m *BearerAuth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.claims(c)
		if err != nil {
			logging.FromContext(c.Request().Context()).Warn("auth_rejected", "status", http.StatusUnauthorized, "reason", err.Error())
			return err
		}
		setUserContext(c, claims)
		return next(c)
	}
}

// OptionalAuth attaches the user when a valid token is present and lets guests through otherwise.
func (m *BearerAuth) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if bearerToken(c) != "" {
			if claims, err := m.claims(c); err == nil {
				setUserContext(c, claims)
			}
		}
		return next(c)
	}
}

func (m *BearerAuth) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireAuth(func(c echo.Context) error {
		secret := c.Request().Header.Get(HeaderAdminSecret)
		if secret == "" || !hash.CheckSecret(m.AdminSecretHash, secret) {
			logging.FromContext(c.Request().Context()).Warn("admin_rejected", "status", http.StatusForbidden, "user_id", c.Get(ctxUserID))
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	})
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set(ctxUserID, claims.Subject)
	c.Set(ctxPhone, claims.Phone)
}

// UserID returns the authenticated user, if any.
func UserID(c echo.Context) (uuid.UUID, bool) {
	s, ok := c.Get(ctxUserID).(string)
	if !ok || s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
