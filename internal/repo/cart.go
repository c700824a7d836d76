package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) GetCart(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AddToCart merges item into an existing line for the same product with a
// single upsert, so concurrent first adds cannot trip the unique index.
func (r *GormRepo) AddToCart(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity": gorm.Expr("cart_items.quantity + excluded.quantity"),
			}),
		}).Create(item).Error
		if err != nil {
			return err
		}
		var merged models.CartItem
		if err := tx.Where("user_id = ? AND product_id = ?", item.UserID, item.ProductID).First(&merged).Error; err != nil {
			return err
		}
		*item = merged
		return nil
	})
}

// DeleteOneFromCart decrements a line and removes it at zero. The returned
// item is nil when the line was removed.
func (r *GormRepo) DeleteOneFromCart(ctx context.Context, userID, productID uint) (*models.CartItem, error) {
	var item models.CartItem
	removed := false

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND product_id = ? AND quantity > 1", userID, productID).
			Update("quantity", gorm.Expr("quantity - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error
		}

		res = tx.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.CartItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		removed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if removed {
		return nil, nil
	}
	return &item, nil
}

func (r *GormRepo) DeleteAllFromCart(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}
