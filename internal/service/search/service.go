package search

import (
	"context"
	"strings"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/util"
)

type Searcher interface {
	Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error)
}

// SearchFunc adapts a plain function, such as the repository's LIKE
// search, to Searcher.
type SearchFunc func(ctx context.Context, query string, from, size int) (int64, []models.Product, error)

func (f SearchFunc) Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error) {
	return f(ctx, query, from, size)
}

type Results struct {
	Total int64
	Page  int
	Size  int
	Items []models.Product
}

// Service queries the search index when one is configured and falls back
// to the database when it is absent or failing.
type Service struct {
	Index    Searcher
	Fallback Searcher
}

func (s *Service) Search(ctx context.Context, rawQ string, page, size int) (*Results, error) {
	q := strings.TrimSpace(rawQ)
	from, limit := util.Calculate(page, size)
	res := &Results{Page: from/limit + 1, Size: limit, Items: []models.Product{}}
	if q == "" {
		return res, nil
	}

	if s.Index != nil {
		total, items, err := s.Index.Search(ctx, q, from, limit)
		if err == nil {
			res.Total, res.Items = total, items
			return res, nil
		}
		if s.Fallback == nil {
			return nil, err
		}
		logging.FromContext(ctx).Warn("search_index_failed", "svc", "search", "query", q, "error", err)
	}

	total, items, err := s.Fallback.Search(ctx, q, from, limit)
	if err != nil {
		return nil, err
	}
	res.Total, res.Items = total, items
	return res, nil
}
