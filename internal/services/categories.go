package services

import (
	"context"
	"fmt"
	"time"

	"finora/internal/cache"
	"finora/internal/core"
)

// CategoryStore is the data store surface behind the catalog.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	CreateCategory(ctx context.Context, c *core.Category) error
	DeleteCategory(ctx context.Context, userID, id string) error
}

const (
	categoryCacheSize = 500
	categoryCacheTTL  = 10 * time.Minute
)

// CategoryCatalog serves each user's visible categories (system plus own)
// from a TTL cache, invalidated on the user's own writes.
type CategoryCatalog struct {
	store CategoryStore
	cache cache.Cache[[]core.Category]
}

func NewCategoryCatalog(store CategoryStore, c cache.Cache[[]core.Category]) *CategoryCatalog {
	if c == nil {
		c = cache.NewLRUCache[[]core.Category](categoryCacheSize, categoryCacheTTL)
	}
	return &CategoryCatalog{store: store, cache: c}
}

func (c *CategoryCatalog) List(ctx context.Context, userID string) ([]core.Category, error) {
	return c.cache.GetOrLoad(userID, func() ([]core.Category, error) {
		cats, err := c.store.ListCategories(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		return cats, nil
	})
}

func (c *CategoryCatalog) Create(ctx context.Context, cat *core.Category) error {
	if err := c.store.CreateCategory(ctx, cat); err != nil {
		return err
	}
	c.cache.Delete(cat.UserID)
	return nil
}

func (c *CategoryCatalog) Delete(ctx context.Context, userID, id string) error {
	if err := c.store.DeleteCategory(ctx, userID, id); err != nil {
		return err
	}
	c.cache.Delete(userID)
	return nil
}
