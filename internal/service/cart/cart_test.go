package cart

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/db"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/repo"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishEvent(ctx context.Context, topic, key string, event any) error {
	return m.Called(ctx, topic, key, event).Error(0)
}

func newTestService(t *testing.T) (*CartService, *repo.GormRepo, *mockPublisher) {
	t.Helper()
	ctx := context.Background()
	gdb, err := db.Open(ctx, filepath.Join(t.TempDir(), "cart.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	r := repo.New(gdb)
	pub := &mockPublisher{}
	return &CartService{Repo: r, Events: pub}, r, pub
}

func mustProduct(t *testing.T, r *repo.GormRepo) *models.Product {
	t.Helper()
	p := &models.Product{Name: "Lamp", Price: 10, Stock: 5}
	require.NoError(t, r.CreateProduct(context.Background(), p))
	return p
}

func TestAddToCart_Merges(t *testing.T) {
	svc, r, pub := newTestService(t)
	ctx := context.Background()
	prod := mustProduct(t, r)

	pub.On("PublishEvent", mock.Anything, mykafka.TopicCartEvents, "7", mock.Anything).Return(nil).Twice()

	_, err := svc.AddToCart(ctx, 7, prod.ID, 2)
	require.NoError(t, err)
	item, err := svc.AddToCart(ctx, 7, prod.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, uint(5), item.Quantity)

	items, err := svc.GetCart(ctx, 7)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, uint(5), items[0].Quantity)
	pub.AssertExpectations(t)
}

func TestAddToCart_Validation(t *testing.T) {
	svc, r, _ := newTestService(t)
	ctx := context.Background()
	prod := mustProduct(t, r)

	_, err := svc.AddToCart(ctx, 7, 0, 1)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.AddToCart(ctx, 7, prod.ID, 0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.AddToCart(ctx, 7, 999, 1)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestDeleteOneFromCart(t *testing.T) {
	svc, r, pub := newTestService(t)
	ctx := context.Background()
	prod := mustProduct(t, r)
	pub.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.AddToCart(ctx, 7, prod.ID, 2)
	require.NoError(t, err)

	deleted, item, err := svc.DeleteOneFromCart(ctx, 7, prod.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, uint(1), item.Quantity)

	deleted, item, err = svc.DeleteOneFromCart(ctx, 7, prod.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Nil(t, item)

	_, _, err = svc.DeleteOneFromCart(ctx, 7, prod.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAllFromCart(t *testing.T) {
	svc, r, pub := newTestService(t)
	ctx := context.Background()
	prod := mustProduct(t, r)
	pub.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.AddToCart(ctx, 7, prod.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, 8, prod.ID, 1)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAllFromCart(ctx, 7))

	items, err := svc.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, items)
	items, err = svc.GetCart(ctx, 8)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	pub.AssertCalled(t, "PublishEvent", mock.Anything, mykafka.TopicCartEvents, "7",
		mock.MatchedBy(func(ev mykafka.CartEvent) bool { return ev.Type == "cart_cleared" }))
}
