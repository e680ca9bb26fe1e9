// Package repotest builds throwaway in-memory stores for tests.
package repotest

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	pkgdb "github.com/Skotchmaster/souq/pkg/db"
	"github.com/Skotchmaster/souq/services/storefront/internal/models"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo"
)

func New(t testing.TB) *repo.GormRepo {
	t.Helper()
	ctx := context.Background()
	db, err := pkgdb.Open(ctx, "sqlite://:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(db) })

	r := &repo.GormRepo{DB: db}
	require.NoError(t, r.Migrate(ctx))
	return r
}

// Postgres opens the database named by DATABASE_TEST_URL with every table dropped and
// recreated, and skips the test when the variable is unset. Point it at a scratch database.
func Postgres(t testing.TB) *repo.GormRepo {
	t.Helper()
	dsn := os.Getenv("DATABASE_TEST_URL")
	if dsn == "" {
		t.Skip("DATABASE_TEST_URL not set")
	}
	ctx := context.Background()
	db, err := pkgdb.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(db) })

	tables := models.All()
	for i := len(tables) - 1; i >= 0; i-- {
		require.NoError(t, db.Migrator().DropTable(tables[i]))
	}
	r := &repo.GormRepo{DB: db}
	require.NoError(t, r.Migrate(ctx))
	return r
}

func Category(t testing.TB, r *repo.GormRepo, slug string) *models.Category {
	t.Helper()
	c := &models.Category{Name: slug, NameAr: slug, Slug: slug}
	require.NoError(t, r.DB.Create(c).Error)
	return c
}

type ProductOpt func(*models.Product)

func Inactive(p *models.Product) { p.IsActive = false }

func Featured(p *models.Product) { p.IsFeatured = true }

func WithDescription(d string) ProductOpt {
	return func(p *models.Product) { p.Description = d }
}

func Product(t testing.TB, r *repo.GormRepo, cat *models.Category, name string, price int64, stock int, opts ...ProductOpt) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:       name,
		NameAr:     name,
		Slug:       name + "-" + uuid.NewString()[:8],
		Price:      decimal.NewFromInt(price),
		Stock:      stock,
		Images:     []string{},
		IsActive:   true,
		CategoryID: cat.ID,
	}
	for _, o := range opts {
		o(p)
	}
	require.NoError(t, r.DB.Omit("Category", "Reviews").Create(p).Error)
	return p
}

func Zone(t testing.TB, r *repo.GormRepo, name string, price int64, minOrder *int64, cities ...string) *models.DeliveryZone {
	t.Helper()
	z := &models.DeliveryZone{
		Name:     name,
		Cities:   cities,
		Price:    decimal.NewFromInt(price),
		IsActive: true,
	}
	if minOrder != nil {
		z.MinOrder = decimal.NewNullDecimal(decimal.NewFromInt(*minOrder))
	}
	require.NoError(t, r.DB.Create(z).Error)
	return z
}

func Min(v int64) *int64 { return &v }
