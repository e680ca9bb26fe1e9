package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/souq/services/storefront/internal/models"
)

// CountOrders counts orders created at or after since (zero means all time) with the given status (empty means any).
func (r *GormRepo) CountOrders(ctx context.Context, since time.Time, status string) (int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// RevenueSince sums totals of non-cancelled orders created at or after since.
func (r *GormRepo) RevenueSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Select("SUM(total)").
		Where("created_at >= ? AND status <> ?", since, models.StatusCancelled).
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
