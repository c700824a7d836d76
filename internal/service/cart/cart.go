package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
)

var (
	ErrValidation      = errors.New("validation")
	ErrNotFound        = errors.New("item not found")
	ErrProductNotFound = errors.New("product not found")
)

type Store interface {
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	GetCart(ctx context.Context, userID uint) ([]models.CartItem, error)
	AddToCart(ctx context.Context, item *models.CartItem) error
	DeleteOneFromCart(ctx context.Context, userID, productID uint) (*models.CartItem, error)
	DeleteAllFromCart(ctx context.Context, userID uint) error
}

type CartService struct {
	Repo   Store
	Events mykafka.Publisher
}

func (s *CartService) GetCart(ctx context.Context, userID uint) ([]models.CartItem, error) {
	return s.Repo.GetCart(ctx, userID)
}

// AddToCart merges quantity of productID into the user's cart and returns
// the resulting line.
func (s *CartService) AddToCart(ctx context.Context, userID, productID, quantity uint) (*models.CartItem, error) {
	if productID == 0 {
		return nil, fmt.Errorf("product_id required: %w", ErrValidation)
	}
	if quantity == 0 {
		return nil, fmt.Errorf("quantity must be more than zero: %w", ErrValidation)
	}

	if _, err := s.Repo.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	item := &models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
	if err := s.Repo.AddToCart(ctx, item); err != nil {
		return nil, err
	}

	s.publish(ctx, mykafka.CartEvent{Type: "cart_item_added", UserID: userID, ProductID: productID, Quantity: quantity})
	return item, nil
}

// DeleteOneFromCart decrements a line by one. deleted reports that the line
// reached zero and was removed, in which case item is nil.
func (s *CartService) DeleteOneFromCart(ctx context.Context, userID, productID uint) (deleted bool, item *models.CartItem, err error) {
	if productID == 0 {
		return false, nil, fmt.Errorf("product_id required: %w", ErrValidation)
	}

	item, err = s.Repo.DeleteOneFromCart(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, ErrNotFound
		}
		return false, nil, err
	}

	s.publish(ctx, mykafka.CartEvent{Type: "cart_item_removed", UserID: userID, ProductID: productID, Quantity: 1})
	return item == nil, item, nil
}

func (s *CartService) DeleteAllFromCart(ctx context.Context, userID uint) error {
	if err := s.Repo.DeleteAllFromCart(ctx, userID); err != nil {
		return err
	}
	s.publish(ctx, mykafka.CartEvent{Type: "cart_cleared", UserID: userID})
	return nil
}

func (s *CartService) publish(ctx context.Context, ev mykafka.CartEvent) {
	ev.At = time.Now().UTC()
	l := logging.FromContext(ctx).With("svc", "cart")
	mykafka.PublishBestEffort(ctx, s.Events, l, mykafka.TopicCartEvents, mykafka.Key(ev.UserID), ev)
}
