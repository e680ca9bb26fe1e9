package repo

import (
	"context"

	"github.com/Skotchmaster/souq/services/storefront/internal/models"
)

// ActiveZones returns active zones ordered by name so city matching is deterministic.
func (r *GormRepo) ActiveZones(ctx context.Context) ([]models.DeliveryZone, error) {
	var zones []models.DeliveryZone
	err := r.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&zones).Error
	return zones, err
}

func (r *GormRepo) UpsertZone(ctx context.Context, z *models.DeliveryZone) error {
	return r.DB.WithContext(ctx).Where("name = ?", z.Name).FirstOrCreate(z).Error
}
