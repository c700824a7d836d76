package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
)

// RevokeToken records jti in the ledger. A second revocation of the same
// jti is a no-op and writes no second audit entry.
func (r *GormRepo) RevokeToken(ctx context.Context, jti string, userID uint, expiresAt time.Time) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.RevokedToken{JTI: jti, UserID: userID, ExpiresAt: expiresAt}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "jti"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Create(&models.Log{UserID: userID, Action: models.ActionTokenRevoked, Details: "jti: " + jti}).Error
	})
}

func (r *GormRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("jti = ?", jti).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// PurgeRevoked drops ledger rows for tokens that expired before the cutoff.
// Those tokens already fail verification on their exp claim.
func (r *GormRepo) PurgeRevoked(ctx context.Context, before time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("expires_at < ?", before).Delete(&models.RevokedToken{})
	return res.RowsAffected, res.Error
}
