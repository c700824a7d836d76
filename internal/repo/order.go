package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// CreateOrderFromCart turns the user's cart into a pending order. Stock is
// decremented with a conditional update so concurrent checkouts cannot
// oversell; any shortfall rolls the whole order back.
func (r *GormRepo) CreateOrderFromCart(ctx context.Context, userID uint) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart []models.CartItem
		if err := tx.Where("user_id = ?", userID).Order("id ASC").Find(&cart).Error; err != nil {
			return err
		}
		if len(cart) == 0 {
			return ErrEmptyCart
		}

		order = models.Order{UserID: userID, Status: models.OrderPending}
		for _, line := range cart {
			var prod models.Product
			if err := tx.First(&prod, line.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %d no longer exists", ErrInsufficientStock, line.ProductID)
				}
				return err
			}
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", prod.ID, line.Quantity).
				Update("stock", gorm.Expr("stock - ?", line.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: product %d", ErrInsufficientStock, prod.ID)
			}
			order.Items = append(order.Items, models.OrderItem{
				ProductID: prod.ID,
				Quantity:  line.Quantity,
				Price:     prod.Price,
			})
			order.TotalPrice += prod.Price * float64(line.Quantity)
		}

		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uint, offset, limit int) (int64, []models.Order, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
