package search

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
)

func staticSearch(total int64, names ...string) (SearchFunc, *int) {
	calls := 0
	return func(_ context.Context, _ string, _, _ int) (int64, []models.Product, error) {
		calls++
		out := make([]models.Product, 0, len(names))
		for _, n := range names {
			out = append(out, models.Product{Name: n})
		}
		return total, out, nil
	}, &calls
}

func TestService_EmptyQuery(t *testing.T) {
	fallback, calls := staticSearch(1, "x")
	svc := &Service{Fallback: fallback}

	res, err := svc.Search(context.Background(), "   ", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Items)
	assert.Zero(t, *calls)
}

func TestService_UsesIndex(t *testing.T) {
	idx, _ := fakeES(t, http.StatusOK, `{"hits":{"total":{"value":1},"hits":[{"_source":{"id":5,"name":"Phone"}}]}}`)
	fallback, calls := staticSearch(0)
	svc := &Service{Index: idx, Fallback: fallback}

	res, err := svc.Search(context.Background(), "phone", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Total)
	assert.Equal(t, "Phone", res.Items[0].Name)
	assert.Zero(t, *calls)
}

func TestService_FallsBackWhenIndexFails(t *testing.T) {
	idx, _ := fakeES(t, http.StatusInternalServerError, `{"error":"boom"}`)
	fallback, calls := staticSearch(2, "a", "b")
	svc := &Service{Index: idx, Fallback: fallback}

	res, err := svc.Search(context.Background(), "phone", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
	assert.Equal(t, 1, *calls)
}

func TestService_NoFallback(t *testing.T) {
	svc := &Service{Index: SearchFunc(func(context.Context, string, int, int) (int64, []models.Product, error) {
		return 0, nil, errors.New("down")
	})}
	_, err := svc.Search(context.Background(), "phone", 1, 10)
	require.Error(t, err)
}

func TestService_Paging(t *testing.T) {
	var gotFrom, gotSize int
	svc := &Service{Fallback: SearchFunc(func(_ context.Context, _ string, from, size int) (int64, []models.Product, error) {
		gotFrom, gotSize = from, size
		return 0, nil, nil
	})}

	res, err := svc.Search(context.Background(), "q", 3, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, gotFrom)
	assert.Equal(t, 5, gotSize)
	assert.Equal(t, 3, res.Page)
}
