package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/comeencasa/restaurant-api/internal/domain"
	"github.com/comeencasa/restaurant-api/internal/repository"
	apperrors "github.com/comeencasa/restaurant-api/pkg/errors"
	"github.com/comeencasa/restaurant-api/pkg/pagination"
)

// OrderEventPublisher publishes order lifecycle events.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *domain.Order, oldStatus string) error
}

// OrderItemInput is one requested line.
type OrderItemInput struct {
	MenuItemID int64
	Quantity   int
}

// CreateOrderInput holds the parameters for creating an order.
type CreateOrderInput struct {
	CustomerName string
	Notes        string
	Items        []OrderItemInput
}

// Caller is who is asking, as far as order visibility is concerned.
type Caller struct {
	UserID int64
	Role   string
}

func (c Caller) isAdmin() bool { return c.Role == domain.RoleAdmin }

// OrderService implements the business logic for order operations.
type OrderService struct {
	orders   repository.OrderRepository
	menu     repository.MenuRepository
	producer OrderEventPublisher
	logger   *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(orders repository.OrderRepository, menu repository.MenuRepository, producer OrderEventPublisher, logger *slog.Logger) *OrderService {
	return &OrderService{orders: orders, menu: menu, producer: producer, logger: logger}
}

// Create prices the requested items from the current menu and stores a
// pending order. Repeated menu items are merged into one line.
func (s *OrderService) Create(ctx context.Context, userID int64, input CreateOrderInput) (*domain.Order, error) {
	if len(input.Items) == 0 {
		return nil, apperrors.InvalidInput("order must contain at least one item")
	}

	quantities := make(map[int64]int, len(input.Items))
	var ids []int64
	for _, it := range input.Items {
		if it.Quantity <= 0 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("quantity for menu item %d must be positive", it.MenuItemID))
		}
		if _, seen := quantities[it.MenuItemID]; !seen {
			ids = append(ids, it.MenuItemID)
		}
		quantities[it.MenuItemID] += it.Quantity
	}

	menu, err := s.menu.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load menu items: %w", err)
	}

	order := &domain.Order{
		UserID:       userID,
		CustomerName: input.CustomerName,
		Status:       domain.OrderStatusPending,
		Notes:        input.Notes,
		Items:        make([]domain.OrderItem, 0, len(ids)),
	}
	for _, id := range ids {
		m, ok := menu[id]
		if !ok {
			return nil, apperrors.InvalidInput(fmt.Sprintf("menu item %d does not exist", id))
		}
		if !m.Available {
			return nil, apperrors.InvalidInput(fmt.Sprintf("menu item %q is not available", m.Name))
		}
		order.Items = append(order.Items, domain.OrderItem{
			MenuItemID: id,
			Name:       m.Name,
			UnitPrice:  m.Price,
			Quantity:   quantities[id],
		})
	}
	order.Total = order.ComputeTotal()

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.Int64("order_id", order.ID),
		slog.Int64("total", order.Total),
	)
	return order, nil
}

// Get returns an order the caller may see: their own, or any for admins.
// Other users' orders are reported as not found.
func (s *OrderService) Get(ctx context.Context, caller Caller, id int64) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.isAdmin() && order.UserID != caller.UserID {
		return nil, apperrors.NotFound("order", id)
	}
	return order, nil
}

// ListForUser returns one page of the user's own orders.
func (s *OrderService) ListForUser(ctx context.Context, userID int64, page pagination.Params) (pagination.Result[domain.Order], error) {
	return s.list(ctx, domain.OrderFilter{UserID: userID}, page)
}

// ListAll returns one page of all orders, optionally filtered by status.
func (s *OrderService) ListAll(ctx context.Context, status string, page pagination.Params) (pagination.Result[domain.Order], error) {
	if status != "" && !domain.IsValidStatus(status) {
		return pagination.Result[domain.Order]{}, invalidStatus(status)
	}
	return s.list(ctx, domain.OrderFilter{Status: status}, page)
}

func (s *OrderService) list(ctx context.Context, filter domain.OrderFilter, page pagination.Params) (pagination.Result[domain.Order], error) {
	orders, total, err := s.orders.List(ctx, filter, page)
	if err != nil {
		return pagination.Result[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return pagination.NewResult(orders, total, page), nil
}

// UpdateStatus moves an order along its lifecycle.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, newStatus string) (*domain.Order, error) {
	if !domain.IsValidStatus(newStatus) {
		return nil, invalidStatus(newStatus)
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, order, newStatus)
}

// transition moves order to newStatus only if its stored status is still
// the one order was read with.
func (s *OrderService) transition(ctx context.Context, id int64, order *domain.Order, newStatus string) (*domain.Order, error) {
	if !order.CanTransitionTo(newStatus) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot transition from %q to %q", order.Status, newStatus))
	}

	oldStatus := order.Status
	updated, err := s.orders.UpdateStatus(ctx, id, oldStatus, newStatus)
	if err != nil {
		return nil, err
	}
	updated.Items = order.Items

	if err := s.producer.PublishOrderStatusChanged(ctx, updated, oldStatus); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.Int64("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.Int64("order_id", id),
		slog.String("old_status", oldStatus),
		slog.String("new_status", newStatus),
	)
	return updated, nil
}

// Cancel lets the owner cancel an order that has not left the kitchen.
func (s *OrderService) Cancel(ctx context.Context, caller Caller, id int64) (*domain.Order, error) {
	order, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !caller.isAdmin() && order.Status != domain.OrderStatusPending {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot cancel order in %q status", order.Status))
	}
	return s.transition(ctx, id, order, domain.OrderStatusCanceled)
}

func invalidStatus(status string) error {
	return apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be one of: %s",
		status, strings.Join(domain.ValidStatuses(), ", ")))
}
