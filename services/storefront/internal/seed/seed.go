// Package seed loads the reference catalog and delivery zones. Existing rows, matched by slug or name, are left untouched.
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/souq/services/storefront/internal/models"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo"
)

type Result struct {
	Categories int
	Products   int
	Zones      int
}

type productSeed struct {
	category string
	product  models.Product
}

func intp(v int) *int { return &v }

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var categories = []models.Category{
	{Name: "Crêpes Marocaines", NameAr: "الفطائر المغربية", Slug: "crepes-marocaines", Description: "Délicieuses crêpes traditionnelles marocaines", Icon: "🥞", SortOrder: 1},
	{Name: "Pains Traditionnels", NameAr: "الخبز التقليدي", Slug: "pains-traditionnels", Description: "Pains authentiques cuits au four traditionnel", Icon: "🍞", SortOrder: 2},
	{Name: "Pâtisseries", NameAr: "الحلويات", Slug: "patisseries", Description: "Pâtisseries marocaines traditionnelles", Icon: "🧁", SortOrder: 3},
	{Name: "Pastilla", NameAr: "البسطيلة", Slug: "pastilla", Description: "Feuilles de pastilla et préparations", Icon: "🥟", SortOrder: 4},
}

var products = []productSeed{
	{"crepes-marocaines", models.Product{
		Name: "Msemmen Traditionnel (x5)", NameAr: "المسمن التقليدي (x5)", Slug: "msemmen-traditionnel",
		Description: "Crêpes feuilletées, croustillantes à l'extérieur et moelleuses à l'intérieur.",
		Price:       money(25), OldPrice: decimal.NewNullDecimal(money(30)), Stock: 50,
		Images: []string{"/uploads/placeholder-msemmen.jpg"}, IsFeatured: true,
		PreparationTime: intp(20), ShelfLife: intp(24),
	}},
	{"pains-traditionnels", models.Product{
		Name: "Harcha aux Graines (x4)", NameAr: "الحرشة بالحبوب (x4)", Slug: "harcha-graines",
		Description: "Pain de semoule parfumé aux graines de fenouil et d'anis.",
		Price:       money(20), Stock: 30,
		Images: []string{"/uploads/placeholder-harcha.jpg"}, IsFeatured: true,
		PreparationTime: intp(15), ShelfLife: intp(48),
	}},
	{"pastilla", models.Product{
		Name: "Feuilles de Pastilla (x10)", NameAr: "أوراق البسطيلة (x10)", Slug: "feuilles-pastilla",
		Description: "Feuilles ultra-fines faites à la main, pour pastillas sucrées ou salées.",
		Price:       money(35), Stock: 20,
		Images:          []string{"/uploads/placeholder-pastilla.jpg"},
		PreparationTime: intp(30), ShelfLife: intp(72),
	}},
	{"patisseries", models.Product{
		Name: "Chebakia Dorée (x6)", NameAr: "الشباكية الذهبية (x6)", Slug: "chebakia-doree",
		Description: "Pâtisserie en forme de rose, dorée au miel et parsemée de sésame grillé.",
		Price:       money(40), Stock: 25,
		Images: []string{"/uploads/placeholder-chebakia.jpg"}, IsFeatured: true,
		PreparationTime: intp(45), ShelfLife: intp(120),
	}},
	{"pains-traditionnels", models.Product{
		Name: "Khubz Beldi (x2)", NameAr: "الخبز البلدي (x2)", Slug: "khubz-beldi",
		Description: "Pain cuit au four à bois, croûte croustillante et mie moelleuse.",
		Price:       money(15), Stock: 40,
		Images:          []string{"/uploads/placeholder-khubz.jpg"},
		PreparationTime: intp(10), ShelfLife: intp(24),
	}},
	{"crepes-marocaines", models.Product{
		Name: "Mlawi Feuilleté (x3)", NameAr: "الملوي المورق (x3)", Slug: "mlawi-feuillete",
		Description: "Galette feuilletée pour le petit-déjeuner, avec du miel ou de la confiture.",
		Price:       money(22), Stock: 15,
		Images:          []string{"/uploads/placeholder-mlawi.jpg"},
		PreparationTime: intp(25), ShelfLife: intp(36),
	}},
}

var zones = []models.DeliveryZone{
	{Name: "Casablanca Centre", Cities: []string{"casablanca", "casa"}, Price: money(0), MinOrder: decimal.NewNullDecimal(money(100))},
	{Name: "Casablanca Périphérie", Cities: []string{"ain sebaa", "mohammedia", "bouskoura"}, Price: money(15), MinOrder: decimal.NewNullDecimal(money(150))},
	{Name: "Rabat-Salé", Cities: []string{"rabat", "sale", "temara"}, Price: money(25), MinOrder: decimal.NewNullDecimal(money(200))},
	{Name: "Kenitra", Cities: []string{"kenitra"}, Price: money(35), MinOrder: decimal.NewNullDecimal(money(250))},
}

// Run is idempotent: a second call creates nothing.
func Run(ctx context.Context, store *repo.GormRepo) (Result, error) {
	var res Result
	err := store.Transaction(ctx, func(tx *repo.GormRepo) error {
		bySlug := make(map[string]*models.Category, len(categories))
		for _, c := range categories {
			c := c
			if err := tx.UpsertCategory(ctx, &c); err != nil {
				return fmt.Errorf("category %s: %w", c.Slug, err)
			}
			bySlug[c.Slug] = &c
			res.Categories++
		}

		for _, ps := range products {
			cat, ok := bySlug[ps.category]
			if !ok {
				return fmt.Errorf("product %s: unknown category %s", ps.product.Slug, ps.category)
			}
			p := ps.product
			p.CategoryID = cat.ID
			p.IsActive = true
			if err := tx.UpsertProduct(ctx, &p); err != nil {
				return fmt.Errorf("product %s: %w", p.Slug, err)
			}
			res.Products++
		}

		for _, z := range zones {
			z := z
			z.IsActive = true
			if err := tx.UpsertZone(ctx, &z); err != nil {
				return fmt.Errorf("zone %s: %w", z.Name, err)
			}
			res.Zones++
		}
		return nil
	})
	return res, err
}
