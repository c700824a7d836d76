package order

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/util"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
	ErrConflict   = errors.New("conflict")   // 409
)

type Store interface {
	CreateOrderFromCart(ctx context.Context, userID uint) (*models.Order, error)
	ListOrders(ctx context.Context, userID uint, offset, limit int) (int64, []models.Order, error)
	GetOrder(ctx context.Context, userID, orderID uint) (*models.Order, error)
}

type Page struct {
	Total  int64
	Page   int
	Size   int
	Orders []models.Order
}

type OrderService struct {
	Repo   Store
	Events mykafka.Publisher
}

// Checkout converts the user's cart into a pending order.
func (s *OrderService) Checkout(ctx context.Context, userID uint) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order", "user_id", userID)

	order, err := s.Repo.CreateOrderFromCart(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrEmptyCart):
			return nil, errors.Join(ErrValidation, err)
		case errors.Is(err, repo.ErrInsufficientStock):
			return nil, errors.Join(ErrConflict, err)
		}
		return nil, err
	}

	ev := mykafka.OrderEvent{Type: "order_created", OrderID: order.ID, UserID: userID, TotalPrice: order.TotalPrice, At: time.Now().UTC()}
	mykafka.PublishBestEffort(ctx, s.Events, l, mykafka.TopicOrderEvents, mykafka.Key(order.ID), ev)
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID uint, page, size int) (*Page, error) {
	offset, limit := util.Calculate(page, size)
	total, orders, err := s.Repo.ListOrders(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &Page{Total: total, Page: offset/limit + 1, Size: limit, Orders: orders}, nil
}

// GetOrder returns one of the user's orders. Orders of other users are
// reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, userID, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return order, err
}
