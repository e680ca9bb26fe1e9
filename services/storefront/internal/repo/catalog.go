package repo

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/souq/services/storefront/internal/models"
)

type ProductQuery struct {
	CategoryID *uuid.UUID
	Featured   *bool
	Search     string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	SortBy     string
	Desc       bool
	Offset     int
	Limit      int
}

const (
	ratingJoin = `LEFT JOIN (SELECT product_id, AVG(rating) AS avg_rating, COUNT(*) AS review_count
		FROM reviews WHERE is_active = ? GROUP BY product_id) r ON r.product_id = products.id`
	ratingSelect = "products.*, COALESCE(r.avg_rating, 0) AS rating, COALESCE(r.review_count, 0) AS review_count"
)

var sortColumns = map[string]string{
	"createdAt": "products.created_at",
	"price":     "products.price",
	"name":      "products.name",
	"rating":    "rating",
}

func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

func (r *GormRepo) activeProducts(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&models.Product{}).Where("products.is_active = ?", true)
}

func searchClause(db *gorm.DB, q string) *gorm.DB {
	q = strings.TrimSpace(q)
	if q == "" {
		return db
	}
	folded := "%" + strings.ToLower(q) + "%"
	return db.Where("(LOWER(products.name) LIKE ? OR products.name_ar LIKE ? OR LOWER(products.description) LIKE ?)",
		folded, "%"+q+"%", folded)
}

func applyFilters(db *gorm.DB, q ProductQuery) *gorm.DB {
	if q.CategoryID != nil {
		db = db.Where("products.category_id = ?", *q.CategoryID)
	}
	if q.Featured != nil {
		db = db.Where("products.is_featured = ?", *q.Featured)
	}
	if q.MinPrice != nil {
		db = db.Where("products.price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		db = db.Where("products.price <= ?", *q.MaxPrice)
	}
	return searchClause(db, q.Search)
}

func (r *GormRepo) ListProducts(ctx context.Context, q ProductQuery) (int64, []models.Product, error) {
	var total int64
	if err := applyFilters(r.activeProducts(ctx), q).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = sortColumns["createdAt"]
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}

	items := make([]models.Product, 0, q.Limit)
	err := applyFilters(r.activeProducts(ctx), q).
		Select(ratingSelect).
		Joins(ratingJoin, true).
		Preload("Category").
		Order(fmt.Sprintf("%s %s, products.id ASC", col, dir)).
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&items).Error
	if err != nil {
		return 0, nil, err
	}
	for i := range items {
		items[i].Rating = RoundRating(items[i].Rating)
	}
	return total, items, nil
}

// GetActiveProduct loads an active product with its category and active reviews, newest first.
func (r *GormRepo) GetActiveProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.activeProducts(ctx).
		Preload("Category").
		Preload("Reviews", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("created_at DESC")
		}).
		Preload("Reviews.User", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name")
		}).
		Where("products.id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, translate(err, "product")
	}

	if n := len(p.Reviews); n > 0 {
		sum := 0
		for _, rv := range p.Reviews {
			sum += rv.Rating
		}
		p.Rating = RoundRating(float64(sum) / float64(n))
		p.ReviewCount = int64(n)
	}
	return &p, nil
}

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err, "product")
	}
	return &p, nil
}

func (r *GormRepo) FeaturedProducts(ctx context.Context, limit int) ([]models.Product, error) {
	var items []models.Product
	err := r.activeProducts(ctx).
		Where("products.is_featured = ?", true).
		Preload("Category").
		Order("products.created_at DESC, products.id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *GormRepo) ProductsByCategory(ctx context.Context, categoryID uuid.UUID, limit int) ([]models.Product, error) {
	var items []models.Product
	err := r.activeProducts(ctx).
		Where("products.category_id = ?", categoryID).
		Preload("Category").
		Order("products.created_at DESC, products.id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *GormRepo) SearchProducts(ctx context.Context, q string, limit int) ([]models.Product, error) {
	var items []models.Product
	err := searchClause(r.activeProducts(ctx), q).
		Preload("Category").
		Order("products.name ASC, products.id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// ProductsByIDs keeps the order of ids and drops inactive or unknown products.
func (r *GormRepo) ProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	var found []models.Product
	if err := r.activeProducts(ctx).
		Where("products.id IN ?", ids).
		Preload("Category").
		Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *GormRepo) LowStockProducts(ctx context.Context, threshold int) ([]models.Product, error) {
	var items []models.Product
	err := r.activeProducts(ctx).
		Where("products.stock <= ?", threshold).
		Preload("Category").
		Order("products.stock ASC, products.name ASC").
		Find(&items).Error
	return items, err
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	return translate(r.DB.WithContext(ctx).Omit("Category", "Reviews").Create(prod).Error, "product")
}

// UpdateProduct writes only the given columns.
func (r *GormRepo) UpdateProduct(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.Product, error) {
	if len(fields) > 0 {
		res := r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, translate(res.Error, "product")
		}
		if res.RowsAffected == 0 {
			return nil, translate(gorm.ErrRecordNotFound, "product")
		}
	}
	return r.GetProduct(ctx, id)
}

func (r *GormRepo) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "product")
	}
	return nil
}

func (r *GormRepo) CreateReview(ctx context.Context, rv *models.Review) error {
	return r.DB.WithContext(ctx).Omit("User").Create(rv).Error
}

func (r *GormRepo) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	err := r.DB.WithContext(ctx).Order("sort_order ASC, name ASC").Find(&cats).Error
	return cats, err
}

func (r *GormRepo) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *GormRepo) UpsertCategory(ctx context.Context, c *models.Category) error {
	return r.DB.WithContext(ctx).Where("slug = ?", c.Slug).FirstOrCreate(c).Error
}

func (r *GormRepo) UpsertProduct(ctx context.Context, p *models.Product) error {
	return r.DB.WithContext(ctx).Omit("Category", "Reviews").Where("slug = ?", p.Slug).FirstOrCreate(p).Error
}
