package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/Skotchmaster/souq/pkg/db"
	"github.com/Skotchmaster/souq/services/storefront/internal/models"
)

// FindOrCreateUserByPhone returns the user owning phone, creating it with defaultName on first login.
func (r *GormRepo) FindOrCreateUserByPhone(ctx context.Context, phone, defaultName string) (*models.User, bool, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("phone = ?", phone).First(&user).Error
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user = models.User{Phone: phone, Name: defaultName}
	if err := r.DB.WithContext(ctx).Create(&user).Error; err != nil {
		// a concurrent first login may have created the row
		if pkgdb.IsUniqueViolation(err) {
			var existing models.User
			if err := r.DB.WithContext(ctx).Where("phone = ?", phone).First(&existing).Error; err != nil {
				return nil, false, err
			}
			return &existing, false, nil
		}
		return nil, false, err
	}
	return &user, true, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (r *GormRepo) UpdateUser(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error) {
	if len(fields) > 0 {
		res := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, translate(res.Error, "email")
		}
		if res.RowsAffected == 0 {
			return nil, translate(gorm.ErrRecordNotFound, "user")
		}
	}
	return r.GetUserByID(ctx, id)
}
