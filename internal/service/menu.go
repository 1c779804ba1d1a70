package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/comeencasa/restaurant-api/internal/domain"
	"github.com/comeencasa/restaurant-api/internal/repository"
	"github.com/comeencasa/restaurant-api/pkg/pagination"
)

// MenuEventPublisher publishes menu mutations.
type MenuEventPublisher interface {
	PublishMenuCreated(ctx context.Context, item *domain.MenuItem) error
	PublishMenuUpdated(ctx context.Context, item *domain.MenuItem) error
	PublishMenuDeleted(ctx context.Context, item *domain.MenuItem) error
}

// CreateMenuItemInput holds the parameters for a new menu item. Available
// defaults to true.
type CreateMenuItemInput struct {
	Name        string
	Description string
	Price       int64
	Available   *bool
}

// UpdateMenuItemInput changes only the non-nil fields.
type UpdateMenuItemInput struct {
	Name        *string
	Description *string
	Price       *int64
	Available   *bool
}

// MenuService implements menu management.
type MenuService struct {
	repo     repository.MenuRepository
	producer MenuEventPublisher
	logger   *slog.Logger
}

// NewMenuService creates a new menu service.
func NewMenuService(repo repository.MenuRepository, producer MenuEventPublisher, logger *slog.Logger) *MenuService {
	return &MenuService{repo: repo, producer: producer, logger: logger}
}

// Create adds an item to the menu.
func (s *MenuService) Create(ctx context.Context, input CreateMenuItemInput) (*domain.MenuItem, error) {
	item := &domain.MenuItem{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Available:   true,
	}
	if input.Available != nil {
		item.Available = *input.Available
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create menu item: %w", err)
	}

	if err := s.producer.PublishMenuCreated(ctx, item); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish menu.created event",
			slog.Int64("menu_item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "menu item created", slog.Int64("menu_item_id", item.ID))
	return item, nil
}

// Get returns one menu item.
func (s *MenuService) Get(ctx context.Context, id int64) (*domain.MenuItem, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page of the menu.
func (s *MenuService) List(ctx context.Context, filter domain.MenuFilter, page pagination.Params) (pagination.Result[domain.MenuItem], error) {
	items, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return pagination.Result[domain.MenuItem]{}, fmt.Errorf("list menu items: %w", err)
	}
	return pagination.NewResult(items, total, page), nil
}

// Update applies a partial update.
func (s *MenuService) Update(ctx context.Context, id int64, input UpdateMenuItemInput) (*domain.MenuItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		item.Name = *input.Name
	}
	if input.Description != nil {
		item.Description = *input.Description
	}
	if input.Price != nil {
		item.Price = *input.Price
	}
	if input.Available != nil {
		item.Available = *input.Available
	}

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update menu item: %w", err)
	}

	if err := s.producer.PublishMenuUpdated(ctx, item); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish menu.updated event",
			slog.Int64("menu_item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "menu item updated", slog.Int64("menu_item_id", item.ID))
	return item, nil
}

// Delete removes an item that no order references.
func (s *MenuService) Delete(ctx context.Context, id int64) error {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete menu item: %w", err)
	}

	if err := s.producer.PublishMenuDeleted(ctx, item); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish menu.deleted event",
			slog.Int64("menu_item_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "menu item deleted", slog.Int64("menu_item_id", id))
	return nil
}
