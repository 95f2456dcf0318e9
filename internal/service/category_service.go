package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ilmhub/qa-api/internal/models"
	appErrors "github.com/ilmhub/qa-api/pkg/errors"
)

type categoryStore interface {
	List(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
}

const categoryListCacheKey = "categories:list"

// CategoryService serves the category taxonomy. The list rarely changes so it
// goes through the cache with a long TTL.
type CategoryService struct {
	repo     categoryStore
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCategoryService constructs the service.
func NewCategoryService(repo categoryStore, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// List returns every category, cache first.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	if s.cache.Enabled() {
		var cached []models.Category
		if hit, err := s.cache.Get(ctx, categoryListCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list categories")
	}
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, categoryListCacheKey, categories, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache category list", zap.Error(err))
		}
	}
	return categories, nil
}

// Get returns a single category.
func (s *CategoryService) Get(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Store(err, "failed to load category")
	}
	return category, nil
}
