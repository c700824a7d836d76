package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/internal/validate"
)

var ErrNotFound = errors.New("product not found")

type Store interface {
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	GetProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error)
	CreateProduct(ctx context.Context, prod *models.Product) error
	PatchProduct(ctx context.Context, id uint, patch repo.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uint) error
}

// Indexer mirrors products into the search index.
type Indexer interface {
	IndexProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
}

type CreateProductInput struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	ImageURL    string  `json:"image_url" validate:"omitempty,max=255"`
	Stock       uint    `json:"stock"`
}

type PatchProductInput struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	ImageURL    *string  `json:"image_url" validate:"omitempty,max=255"`
	Stock       *uint    `json:"stock"`
}

type Page struct {
	Total int64
	Page  int
	Size  int
	Items []models.Product
}

type Service struct {
	Repo   Store
	Index  Indexer
	Events mykafka.Publisher
}

func loggerFor(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx).With("svc", "catalog")
}

func (s *Service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	prod, err := s.Repo.GetProduct(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return prod, err
}

func (s *Service) GetProducts(ctx context.Context, page, size int) (*Page, error) {
	offset, limit := util.Calculate(page, size)
	total, items, err := s.Repo.GetProducts(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return &Page{Total: total, Page: offset/limit + 1, Size: limit, Items: items}, nil
}

func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Check(in); err != nil {
		return nil, err
	}

	prod := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    in.ImageURL,
		Stock:       in.Stock,
	}
	if err := s.Repo.CreateProduct(ctx, prod); err != nil {
		return nil, err
	}

	s.index(ctx, prod)
	s.publish(ctx, "product_created", prod)
	return prod, nil
}

func (s *Service) PatchProduct(ctx context.Context, id uint, in PatchProductInput) (*models.Product, error) {
	if in.Name != nil {
		v := strings.TrimSpace(*in.Name)
		in.Name = &v
	}
	if err := validate.Check(in); err != nil {
		return nil, err
	}

	prod, err := s.Repo.PatchProduct(ctx, id, repo.ProductPatch{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    in.ImageURL,
		Stock:       in.Stock,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.index(ctx, prod)
	s.publish(ctx, "product_updated", prod)
	return prod, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if s.Index != nil {
		if err := s.Index.DeleteProduct(ctx, id); err != nil {
			loggerFor(ctx).Warn("search_unindex_failed", "product_id", id, "error", err)
		}
	}
	s.publish(ctx, "product_deleted", &models.Product{ID: id})
	return nil
}

// index is best effort: the database stays the source of truth and the
// next update of the product re-indexes it.
func (s *Service) index(ctx context.Context, prod *models.Product) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexProduct(ctx, prod); err != nil {
		loggerFor(ctx).Warn("search_index_failed", "product_id", prod.ID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, typ string, prod *models.Product) {
	ev := mykafka.ProductEvent{Type: typ, ProductID: prod.ID, Name: prod.Name, Price: prod.Price, At: time.Now().UTC()}
	mykafka.PublishBestEffort(ctx, s.Events, loggerFor(ctx), mykafka.TopicProductEvents, mykafka.Key(prod.ID), ev)
}
