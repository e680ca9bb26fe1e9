package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/souq/pkg/hash"
	middleware "github.com/Skotchmaster/souq/pkg/middleware/auth"
	"github.com/Skotchmaster/souq/pkg/middleware/ratelimit"
	"github.com/Skotchmaster/souq/pkg/tokens"
	"github.com/Skotchmaster/souq/services/storefront/internal/models"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo/repotest"
	"github.com/Skotchmaster/souq/services/storefront/internal/service"
)

const adminSecret = "admin-pass"

type testEnv struct {
	E       *echo.Echo
	Repo    *repo.GormRepo
	Access  []byte
	Msemmen *models.Product
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	r := repotest.New(t)
	cat := repotest.Category(t, r, "crepes")
	msemmen := repotest.Product(t, r, cat, "Msemmen", 25, 4)
	repotest.Zone(t, r, "Kenitra", 35, repotest.Min(250), "kenitra")

	access := []byte("access-secret")
	adminHash, err := hash.HashSecret(adminSecret)
	require.NoError(t, err)

	delivery := &service.DeliveryService{Repo: r}
	auth := &service.AuthService{Repo: r, AccessSecret: access, RefreshSecret: []byte("refresh-secret")}
	orders := &service.OrderService{Repo: r, Delivery: delivery, Location: time.UTC}

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(false)
	Register(e, &Deps{
		Catalog:      &CatalogHTTP{Svc: &service.CatalogService{Repo: r}},
		Delivery:     &DeliveryHTTP{Svc: delivery},
		Orders:       &OrderHTTP{Svc: orders, Dashboard: &service.DashboardService{Repo: r}},
		Auth:         &AuthHTTP{Svc: auth},
		Bearer:       middleware.NewBearerAuth(access, adminHash),
		LoginLimiter: ratelimit.NewPerMinute(3),
		Ready:        func(context.Context) error { return nil },
	})
	return &testEnv{E: e, Repo: r, Access: access, Msemmen: msemmen}
}

func (env *testEnv) doJSONRequest(method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func (env *testEnv) bearer(t *testing.T) map[string]string {
	t.Helper()
	u, _, err := env.Repo.FindOrCreateUserByPhone(context.Background(), "+212600000001", "Admin")
	require.NoError(t, err)
	tok, err := tokens.NewAccessToken(u.ID.String(), u.Phone, time.Now().Add(time.Minute), env.Access)
	require.NoError(t, err)
	return map[string]string{echo.HeaderAuthorization: "Bearer " + tok}
}

func (env *testEnv) admin(t *testing.T) map[string]string {
	h := env.bearer(t)
	h[middleware.HeaderAdminSecret] = adminSecret
	return h
}

func (env *testEnv) orderBody(qty int) map[string]any {
	return map[string]any{
		"customerName":    "Fatima",
		"customerPhone":   "0612345678",
		"deliveryAddress": "12 Rue Ibn Batouta",
		"city":            "Kenitra",
		"items":           []map[string]any{{"productId": env.Msemmen.ID.String(), "quantity": qty, "price": 25}},
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.doJSONRequest(http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.doJSONRequest(http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrderAndFetch(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.doJSONRequest(http.MethodPost, "/api/orders", env.orderBody(2), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", body["status"])
	assert.EqualValues(t, 85, body["total"], "totals are JSON numbers")
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	rec, body = env.doJSONRequest(http.MethodGet, "/api/orders/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 50, body["subtotal"])
	assert.EqualValues(t, 35, body["deliveryFee"])
	items, _ := body["items"].([]any)
	assert.Len(t, items, 1)
}

func TestCreateOrder_ClientErrors(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.doJSONRequest(http.MethodPost, "/api/orders", env.orderBody(5), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "insufficient stock")

	noZone := env.orderBody(1)
	noZone["city"] = "Ouarzazate"
	rec, body = env.doJSONRequest(http.MethodPost, "/api/orders", noZone, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "delivery zone unavailable")

	empty := env.orderBody(1)
	empty["items"] = []any{}
	rec, _ = env.doJSONRequest(http.MethodPost, "/api/orders", empty, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.doJSONRequest(http.MethodGet, "/api/orders/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.doJSONRequest(http.MethodGet, "/api/orders/00000000-0000-0000-0000-000000000001", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, body["error"])
}

func TestUpdateStatus_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	_, created := env.doJSONRequest(http.MethodPost, "/api/orders", env.orderBody(1), nil)
	path := "/api/orders/" + created["id"].(string) + "/status"
	delivered := map[string]any{"status": "delivered", "notes": "ok"}

	rec, _ := env.doJSONRequest(http.MethodPut, path, delivered, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.doJSONRequest(http.MethodPut, path, delivered, env.bearer(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.doJSONRequest(http.MethodPut, path, map[string]any{"status": "shipped"}, env.admin(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := env.doJSONRequest(http.MethodPut, path, delivered, env.admin(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "delivered", body["status"])
	assert.Equal(t, "paid", body["paymentStatus"])

	rec, body = env.doJSONRequest(http.MethodGet, "/api/orders/stats", nil, env.admin(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["totalOrders"])
}

func TestLoginThenMyOrders(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.doJSONRequest(http.MethodPost, "/api/auth/login", map[string]any{"phone": "0612345678"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "account created", body["message"])
	tok := body["tokens"].(map[string]any)["accessToken"].(string)
	auth := map[string]string{echo.HeaderAuthorization: "Bearer " + tok}

	rec, _ = env.doJSONRequest(http.MethodPost, "/api/orders", env.orderBody(1), auth)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = env.doJSONRequest(http.MethodPost, "/api/orders", env.orderBody(1), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body = env.doJSONRequest(http.MethodGet, "/api/orders/my", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["total"])

	rec, _ = env.doJSONRequest(http.MethodGet, "/api/orders/my", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = env.doJSONRequest(http.MethodPost, "/api/auth/login", map[string]any{"phone": "+212612345678"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "login successful", body["message"])
}

func TestLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		rec, _ := env.doJSONRequest(http.MethodPost, "/api/auth/login", map[string]any{"phone": "bad"}, nil)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{400, 400, 400, http.StatusTooManyRequests}, codes)
}

func TestDeliveryEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.doJSONRequest(http.MethodPost, "/api/delivery/calculate", map[string]any{"city": "kenitra", "orderAmount": 10}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 35, body["deliveryFee"])
	assert.Equal(t, false, body["freeDelivery"])

	rec, _ = env.doJSONRequest(http.MethodPost, "/api/delivery/calculate", map[string]any{"city": "kenitra"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.doJSONRequest(http.MethodPost, "/api/delivery/check", map[string]any{"city": "Tanger"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["available"])

	rec, _ = env.doJSONRequest(http.MethodPost, "/api/delivery/check", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.doJSONRequest(http.MethodGet, "/api/products?limit=5&sortBy=price&order=asc", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["total"])

	rec, _ = env.doJSONRequest(http.MethodGet, "/api/products?minPrice=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.doJSONRequest(http.MethodGet, "/api/products/"+env.Msemmen.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 25, body["price"])
	first := rec.Body.String()

	rec, _ = env.doJSONRequest(http.MethodGet, "/api/products/"+env.Msemmen.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, first, rec.Body.String(), "repeated reads return the same product")

	rec, _ = env.doJSONRequest(http.MethodGet, "/api/products/low-stock", nil, env.bearer(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.doJSONRequest(http.MethodDelete, "/api/products/"+env.Msemmen.ID.String(), nil, env.admin(t))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = env.doJSONRequest(http.MethodGet, "/api/products/"+env.Msemmen.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorHandler_MasksServerErrorsInProduction(t *testing.T) {
	for _, tc := range []struct {
		production bool
		want       string
	}{
		{false, "db exploded"},
		{true, internalMessage},
	} {
		e := echo.New()
		e.HTTPErrorHandler = ErrorHandler(tc.production)
		e.GET("/boom", func(echo.Context) error { return errors.New("db exploded") })
		e.GET("/teapot", func(echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") })

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"`+tc.want+`"}`, rec.Body.String())

		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.JSONEq(t, `{"error":"short and stout"}`, rec.Body.String())
	}
}
