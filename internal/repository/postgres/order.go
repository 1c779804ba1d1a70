package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/comeencasa/restaurant-api/internal/domain"
	"github.com/comeencasa/restaurant-api/pkg/database"
	apperrors "github.com/comeencasa/restaurant-api/pkg/errors"
	"github.com/comeencasa/restaurant-api/pkg/pagination"
)

const orderColumns = `id, user_id, customer_name, status, total, notes, created_at, updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts an order and its items atomically within a transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	orderQuery := `
		INSERT INTO orders (user_id, customer_name, status, total, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateOrder", orderQuery)
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, orderQuery, o.UserID, o.CustomerName, o.Status, o.Total, o.Notes).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, menu_item_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err = tx.QueryRow(ctx, itemQuery, o.ID, item.MenuItemID, item.Name, item.UnitPrice, item.Quantity).
			Scan(&item.ID)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return apperrors.InvalidInput(fmt.Sprintf("menu item %d does not exist", item.MenuItemID))
			}
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves an order with its items in a single query.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (_ *domain.Order, err error) {
	query := `
		SELECT
			o.id, o.user_id, o.customer_name, o.status, o.total, o.notes, o.created_at, o.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', oi.id,
						'order_id', oi.order_id,
						'menu_item_id', oi.menu_item_id,
						'name', oi.name,
						'unit_price', oi.unit_price,
						'quantity', oi.quantity
					) ORDER BY oi.id
				) FILTER (WHERE oi.id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE o.id = $1
		GROUP BY o.id`

	ctx, end := database.TraceQuery(ctx, "GetOrderByID", query)
	defer func() { end(err) }()

	var (
		o         domain.Order
		itemsJSON []byte
	)
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.UserID,
		&o.CustomerName,
		&o.Status,
		&o.Total,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
		&itemsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Items = []domain.OrderItem{}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	return &o, nil
}

// List returns one page of orders, newest first, with their items.
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter, page pagination.Params) (_ []domain.Order, _ int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != 0 {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, filter.UserID)
		argIndex++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, where, argIndex, argIndex+1,
	)
	args = append(args, page.PerPage, page.Offset)

	ctx, end := database.TraceQuery(ctx, "ListOrders", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var total int
	orders := make([]domain.Order, 0)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.CustomerName,
			&o.Status,
			&o.Total,
			&o.Notes,
			&o.CreatedAt,
			&o.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		o.Items = []domain.OrderItem{}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if len(orders) > 0 {
		if err := r.loadItems(ctx, orders); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

// loadItems batch-loads the items of orders in one query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []domain.Order) error {
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
	}

	query := `
		SELECT id, order_id, menu_item_id, name, unit_price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("batch load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.UnitPrice, &it.Quantity); err != nil {
			return fmt.Errorf("scan order item row: %w", err)
		}
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order item rows: %w", err)
	}
	return nil
}

// UpdateStatus performs a compare-and-set on the order status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, from, to string) (_ *domain.Order, err error) {
	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING ` + orderColumns

	ctx, end := database.TraceQuery(ctx, "UpdateOrderStatus", query)
	defer func() { end(err) }()

	var o domain.Order
	err = r.pool.QueryRow(ctx, query, to, id, from).Scan(
		&o.ID,
		&o.UserID,
		&o.CustomerName,
		&o.Status,
		&o.Total,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Conflict(fmt.Sprintf("order %d is no longer %s", id, from))
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return &o, nil
}
