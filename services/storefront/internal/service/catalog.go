package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/souq/pkg/apperr"
	"github.com/Skotchmaster/souq/pkg/logging"
	"github.com/Skotchmaster/souq/services/storefront/internal/models"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo"
	"github.com/Skotchmaster/souq/services/storefront/internal/transport"
	"github.com/Skotchmaster/souq/services/storefront/internal/util"
)

// ProductIndex is an external full-text index over the catalog.
type ProductIndex interface {
	Index(ctx context.Context, p *models.Product) error
	Search(ctx context.Context, q string, limit int) ([]uuid.UUID, error)
}

type CatalogService struct {
	Repo  *repo.GormRepo
	Index ProductIndex
}

func (s *CatalogService) ListProducts(ctx context.Context, f transport.ProductFilters) (transport.ProductList, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return transport.ProductList{}, fmt.Errorf("%w: minPrice is greater than maxPrice", apperr.ErrValidation)
	}
	page, offset, limit := util.Calculate(f.Page, f.Limit)
	q := repo.ProductQuery{
		CategoryID: f.CategoryID,
		Featured:   f.Featured,
		Search:     f.Search,
		MinPrice:   f.MinPrice,
		MaxPrice:   f.MaxPrice,
		SortBy:     f.SortBy,
		Desc:       !strings.EqualFold(f.Order, "asc"),
		Offset:     offset,
		Limit:      limit,
	}
	total, items, err := s.Repo.ListProducts(ctx, q)
	if err != nil {
		return transport.ProductList{}, err
	}
	return transport.ProductList{Products: items, Pagination: transport.NewPagination(page, limit, total)}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.Repo.GetActiveProduct(ctx, id)
}

func (s *CatalogService) Featured(ctx context.Context, limit int) ([]models.Product, error) {
	return s.Repo.FeaturedProducts(ctx, limit)
}

func (s *CatalogService) ByCategory(ctx context.Context, categoryID uuid.UUID, limit int) ([]models.Product, error) {
	return s.Repo.ProductsByCategory(ctx, categoryID, limit)
}

// Search asks the index first and falls back to the database match when the index is absent or failing.
func (s *CatalogService) Search(ctx context.Context, q string, limit int) ([]models.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Product{}, nil
	}
	if s.Index != nil {
		ids, err := s.Index.Search(ctx, q, limit)
		if err == nil {
			return s.Repo.ProductsByIDs(ctx, ids)
		}
		logging.FromContext(ctx).Warn("search_index_failed", "query", q, "error", err)
	}
	return s.Repo.SearchProducts(ctx, q, limit)
}

func (s *CatalogService) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	return s.Repo.LowStockProducts(ctx, threshold)
}

func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	return s.Repo.ListCategories(ctx)
}

func (s *CatalogService) reindex(ctx context.Context, p *models.Product) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, p); err != nil {
		logging.FromContext(ctx).Error("search_index_update_failed", "product_id", p.ID, "error", err)
	}
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func encodeImages(images []string) (string, error) {
	b, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("%w: images: %v", apperr.ErrValidation, err)
	}
	return string(b), nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in transport.CreateProductRequest) (*models.Product, error) {
	name := strings.TrimSpace(in.Name)
	slug := strings.TrimSpace(in.Slug)
	if name == "" || slug == "" {
		return nil, fmt.Errorf("%w: name and slug are required", apperr.ErrValidation)
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price cannot be negative", apperr.ErrValidation)
	}
	if in.Stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative", apperr.ErrValidation)
	}
	categoryID, err := uuid.Parse(in.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("%w: categoryId is not a valid id", apperr.ErrValidation)
	}
	ok, err := s.Repo.CategoryExists(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: category %s does not exist", apperr.ErrValidation, categoryID)
	}

	images := in.Images
	if images == nil {
		images = []string{}
	}
	p := &models.Product{
		Name:            name,
		NameAr:          strings.TrimSpace(in.NameAr),
		Slug:            slug,
		Description:     in.Description,
		Price:           in.Price,
		OldPrice:        nullable(in.OldPrice),
		Stock:           in.Stock,
		Images:          images,
		IsActive:        true,
		IsFeatured:      in.IsFeatured,
		PreparationTime: in.PreparationTime,
		ShelfLife:       in.ShelfLife,
		CategoryID:      categoryID,
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("%w: slug %q already used", apperr.ErrConflict, slug)
		}
		return nil, err
	}
	s.reindex(ctx, p)
	return p, nil
}

// PatchProduct copies only the allow-listed fields that were present in the request.
func (s *CatalogService) PatchProduct(ctx context.Context, id uuid.UUID, in transport.PatchProductRequest) (*models.Product, error) {
	fields := map[string]any{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", apperr.ErrValidation)
		}
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.NameAr != nil {
		fields["name_ar"] = strings.TrimSpace(*in.NameAr)
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return nil, fmt.Errorf("%w: price cannot be negative", apperr.ErrValidation)
		}
		fields["price"] = *in.Price
	}
	if in.OldPrice != nil {
		fields["old_price"] = nullable(in.OldPrice)
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, fmt.Errorf("%w: stock cannot be negative", apperr.ErrValidation)
		}
		fields["stock"] = *in.Stock
	}
	if in.Images != nil {
		// map updates bypass the field serializer
		raw, err := encodeImages(in.Images)
		if err != nil {
			return nil, err
		}
		fields["images"] = raw
	}
	if in.IsFeatured != nil {
		fields["is_featured"] = *in.IsFeatured
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	if in.PreparationTime != nil {
		fields["preparation_time"] = *in.PreparationTime
	}
	if in.ShelfLife != nil {
		fields["shelf_life"] = *in.ShelfLife
	}

	p, err := s.Repo.UpdateProduct(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, p)
	return p, nil
}

func (s *CatalogService) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.Repo.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	if p, err := s.Repo.GetProduct(ctx, id); err == nil {
		s.reindex(ctx, p)
	}
	return nil
}

func (s *CatalogService) AddReview(ctx context.Context, productID uuid.UUID, userID *uuid.UUID, in transport.CreateReviewRequest) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", apperr.ErrValidation)
	}
	if _, err := s.Repo.GetActiveProduct(ctx, productID); err != nil {
		return nil, err
	}
	rv := &models.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		IsActive:  true,
	}
	if err := s.Repo.CreateReview(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}
