package event

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/comeencasa/restaurant-api/internal/domain"
	pkgkafka "github.com/comeencasa/restaurant-api/pkg/kafka"
)

// Kafka topics for menu and order events.
const (
	TopicMenuCreated        = "restaurant.menu.created"
	TopicMenuUpdated        = "restaurant.menu.updated"
	TopicMenuDeleted        = "restaurant.menu.deleted"
	TopicOrderCreated       = "restaurant.order.created"
	TopicOrderStatusChanged = "restaurant.order.status_changed"
)

// Aggregate types.
const (
	AggregateTypeMenuItem = "menu_item"
	AggregateTypeOrder    = "order"
)

// Topics lists every topic the service publishes to.
func Topics() []string {
	return []string{
		TopicMenuCreated,
		TopicMenuUpdated,
		TopicMenuDeleted,
		TopicOrderCreated,
		TopicOrderStatusChanged,
	}
}

// MenuItemData is the payload of menu.created and menu.updated.
type MenuItemData struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Available   bool   `json:"available"`
}

// MenuItemDeletedData is the payload of menu.deleted.
type MenuItemDeletedData struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// OrderItemData is one line of an order payload.
type OrderItemData struct {
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

// OrderCreatedData is the payload of order.created.
type OrderCreatedData struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	CustomerName string          `json:"customer_name"`
	Total        int64           `json:"total"`
	Notes        string          `json:"notes,omitempty"`
	Items        []OrderItemData `json:"items"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OrderStatusChangedData is the payload of order.status_changed.
type OrderStatusChangedData struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	CustomerName string `json:"customer_name"`
	OldStatus    string `json:"old_status"`
	NewStatus    string `json:"new_status"`
}

// Producer publishes menu and order events.
type Producer struct {
	publisher pkgkafka.Publisher
}

// NewProducer wraps publisher.
func NewProducer(publisher pkgkafka.Publisher) *Producer {
	return &Producer{publisher: publisher}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateType string, aggregateID int64, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateType, strconv.FormatInt(aggregateID, 10), data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

func menuItemData(m *domain.MenuItem) MenuItemData {
	return MenuItemData{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Available:   m.Available,
	}
}

func (p *Producer) PublishMenuCreated(ctx context.Context, m *domain.MenuItem) error {
	return p.publish(ctx, TopicMenuCreated, AggregateTypeMenuItem, m.ID, menuItemData(m))
}

func (p *Producer) PublishMenuUpdated(ctx context.Context, m *domain.MenuItem) error {
	return p.publish(ctx, TopicMenuUpdated, AggregateTypeMenuItem, m.ID, menuItemData(m))
}

func (p *Producer) PublishMenuDeleted(ctx context.Context, m *domain.MenuItem) error {
	return p.publish(ctx, TopicMenuDeleted, AggregateTypeMenuItem, m.ID, MenuItemDeletedData{ID: m.ID, Name: m.Name})
}

// PublishOrderCreated publishes the order with its item lines.
func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	items := make([]OrderItemData, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemData{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
		}
	}

	return p.publish(ctx, TopicOrderCreated, AggregateTypeOrder, o.ID, OrderCreatedData{
		ID:           o.ID,
		UserID:       o.UserID,
		CustomerName: o.CustomerName,
		Total:        o.Total,
		Notes:        o.Notes,
		Items:        items,
		CreatedAt:    o.CreatedAt,
	})
}

func (p *Producer) PublishOrderStatusChanged(ctx context.Context, o *domain.Order, oldStatus string) error {
	return p.publish(ctx, TopicOrderStatusChanged, AggregateTypeOrder, o.ID, OrderStatusChangedData{
		ID:           o.ID,
		UserID:       o.UserID,
		CustomerName: o.CustomerName,
		OldStatus:    oldStatus,
		NewStatus:    o.Status,
	})
}

// Discard is a Publisher that drops every event. It stands in for Kafka
// when publishing is disabled.
type Discard struct{}

func (Discard) Publish(context.Context, string, *pkgkafka.Event) error { return nil }
