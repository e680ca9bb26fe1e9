package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/souq/pkg/apperr"
	"github.com/Skotchmaster/souq/services/storefront/internal/models"
)

func (r *GormRepo) AddRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func refreshUsable(db *gorm.DB, jti string, now time.Time) (*models.RefreshToken, error) {
	var t models.RefreshToken
	if err := db.Where("jti = ?", jti).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: refresh token unknown", apperr.ErrUnauthorized)
		}
		return nil, err
	}
	if t.Revoked || !t.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: refresh token expired or revoked", apperr.ErrUnauthorized)
	}
	return &t, nil
}

// RotateRefreshToken revokes oldJTI and stores next in one transaction.
// Only one of several concurrent rotations of the same token can succeed.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, oldJTI string, userID uuid.UUID, next *models.RefreshToken, now time.Time) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := refreshUsable(tx, oldJTI, now)
		if err != nil {
			return err
		}
		if old.UserID != userID {
			return fmt.Errorf("%w: refresh token subject mismatch", apperr.ErrUnauthorized)
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("jti = ? AND revoked = ?", oldJTI, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: refresh token already used", apperr.ErrUnauthorized)
		}

		return tx.Create(next).Error
	})
}

func (r *GormRepo) RevokeRefreshToken(ctx context.Context, jti string) error {
	return r.DB.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("jti = ?", jti).
		Update("revoked", true).Error
}
