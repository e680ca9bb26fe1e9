package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/souq/pkg/logging"
	middleware "github.com/Skotchmaster/souq/pkg/middleware/auth"
	"github.com/Skotchmaster/souq/services/storefront/internal/service"
	"github.com/Skotchmaster/souq/services/storefront/internal/transport"
	"github.com/Skotchmaster/souq/services/storefront/internal/util"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func parseDecimalParam(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *CatalogHTTP) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.list")

	page, _, limit := util.Calculate(
		util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("limit"), util.DefaultPageSize),
	)
	f := transport.ProductFilters{
		Page:   page,
		Limit:  limit,
		SortBy: c.QueryParam("sortBy"),
		Order:  c.QueryParam("order"),
		Search: c.QueryParam("search"),
	}

	if raw := c.QueryParam("category"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(l, "list_products_failed", "category is not a valid id", err)
		}
		f.CategoryID = &id
	}
	if raw := c.QueryParam("featured"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(l, "list_products_failed", "featured must be true or false", err)
		}
		f.Featured = &v
	}
	var err error
	if f.MinPrice, err = parseDecimalParam(c.QueryParam("minPrice")); err != nil {
		return badRequest(l, "list_products_failed", "minPrice is not a number", err)
	}
	if f.MaxPrice, err = parseDecimalParam(c.QueryParam("maxPrice")); err != nil {
		return badRequest(l, "list_products_failed", "maxPrice is not a number", err)
	}

	out, err := h.Svc.ListProducts(ctx, f)
	if err != nil {
		return fail(l, "list_products_failed", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "get_product_failed", "id is not a valid id", err)
	}
	p, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return fail(l, "get_product_failed", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHTTP) Featured(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.featured")

	items, err := h.Svc.Featured(ctx, util.Limit(c.QueryParam("limit"), 6))
	if err != nil {
		return fail(l, "featured_products_failed", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHTTP) ByCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.by_category")

	id, err := uuid.Parse(c.Param("categoryId"))
	if err != nil {
		return badRequest(l, "category_products_failed", "categoryId is not a valid id", err)
	}
	items, err := h.Svc.ByCategory(ctx, id, util.Limit(c.QueryParam("limit"), 8))
	if err != nil {
		return fail(l, "category_products_failed", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return badRequest(l, "search_products_failed", "q is required", nil)
	}
	items, err := h.Svc.Search(ctx, q, util.Limit(c.QueryParam("limit"), 10))
	if err != nil {
		return fail(l, "search_products_failed", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHTTP) LowStock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.low_stock")

	threshold := util.ParseIntDefault(c.QueryParam("threshold"), 5)
	if threshold < 0 {
		return badRequest(l, "low_stock_failed", "threshold cannot be negative", nil)
	}
	items, err := h.Svc.LowStock(ctx, threshold)
	if err != nil {
		return fail(l, "low_stock_failed", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHTTP) Categories(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.list")

	cats, err := h.Svc.Categories(ctx)
	if err != nil {
		return fail(l, "list_categories_failed", err)
	}
	return c.JSON(http.StatusOK, cats)
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_product_failed", "invalid body", err)
	}
	p, err := h.Svc.CreateProduct(ctx, req)
	if err != nil {
		return fail(l, "create_product_failed", err)
	}
	l.Info("create_product_success", "product_id", p.ID)
	return c.JSON(http.StatusCreated, p)
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.patch")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "patch_product_failed", "id is not a valid id", err)
	}
	var req transport.PatchProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "patch_product_failed", "invalid body", err)
	}
	p, err := h.Svc.PatchProduct(ctx, id, req)
	if err != nil {
		return fail(l, "patch_product_failed", err)
	}
	l.Info("patch_product_success", "product_id", id)
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "delete_product_failed", "id is not a valid id", err)
	}
	if err := h.Svc.DeactivateProduct(ctx, id); err != nil {
		return fail(l, "delete_product_failed", err)
	}
	l.Info("delete_product_success", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHTTP) AddReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.add_review")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "add_review_failed", "id is not a valid id", err)
	}
	var req transport.CreateReviewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_review_failed", "invalid body", err)
	}
	var userID *uuid.UUID
	if uid, ok := middleware.UserID(c); ok {
		userID = &uid
	}
	rv, err := h.Svc.AddReview(ctx, id, userID, req)
	if err != nil {
		return fail(l, "add_review_failed", err)
	}
	return c.JSON(http.StatusCreated, rv)
}
