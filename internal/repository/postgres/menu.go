package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/comeencasa/restaurant-api/internal/domain"
	"github.com/comeencasa/restaurant-api/pkg/database"
	apperrors "github.com/comeencasa/restaurant-api/pkg/errors"
	"github.com/comeencasa/restaurant-api/pkg/pagination"
)

const menuColumns = `id, name, description, price, available, created_at, updated_at`

// MenuRepository implements repository.MenuRepository using PostgreSQL.
type MenuRepository struct {
	pool database.DBTX
}

// NewMenuRepository creates a new PostgreSQL-backed menu repository.
func NewMenuRepository(pool database.DBTX) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// Create inserts a menu item.
func (r *MenuRepository) Create(ctx context.Context, m *domain.MenuItem) (err error) {
	query := `
		INSERT INTO menu_items (name, description, price, available)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateMenuItem", query)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, query, m.Name, m.Description, m.Price, m.Available).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert menu item: %w", err)
	}
	return nil
}

// GetByID retrieves a menu item by id.
func (r *MenuRepository) GetByID(ctx context.Context, id int64) (*domain.MenuItem, error) {
	query := `SELECT ` + menuColumns + ` FROM menu_items WHERE id = $1`

	m, err := scanMenuItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("menu item", id)
		}
		return nil, fmt.Errorf("scan menu item: %w", err)
	}
	return m, nil
}

// GetByIDs loads the requested items in one round trip.
func (r *MenuRepository) GetByIDs(ctx context.Context, ids []int64) (_ map[int64]domain.MenuItem, err error) {
	query := `SELECT ` + menuColumns + ` FROM menu_items WHERE id = ANY($1)`

	ctx, end := database.TraceQuery(ctx, "GetMenuItemsByIDs", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query menu items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64]domain.MenuItem, len(ids))
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menu item row: %w", err)
		}
		items[m.ID] = *m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu item rows: %w", err)
	}
	return items, nil
}

// List returns one page of menu items ordered by name, with the total count.
func (r *MenuRepository) List(ctx context.Context, filter domain.MenuFilter, page pagination.Params) (_ []domain.MenuItem, _ int, err error) {
	where := ""
	if filter.AvailableOnly {
		where = "WHERE available = TRUE"
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM menu_items
		%s
		ORDER BY name, id
		LIMIT $1 OFFSET $2`, menuColumns, where)

	ctx, end := database.TraceQuery(ctx, "ListMenuItems", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, page.PerPage, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list menu items: %w", err)
	}
	defer rows.Close()

	var total int
	items := make([]domain.MenuItem, 0)
	for rows.Next() {
		var m domain.MenuItem
		if err := rows.Scan(
			&m.ID,
			&m.Name,
			&m.Description,
			&m.Price,
			&m.Available,
			&m.CreatedAt,
			&m.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan menu item row: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate menu item rows: %w", err)
	}

	return items, total, nil
}

// Update overwrites the mutable fields and refreshes UpdatedAt.
func (r *MenuRepository) Update(ctx context.Context, m *domain.MenuItem) (err error) {
	query := `
		UPDATE menu_items
		SET name = $1, description = $2, price = $3, available = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "UpdateMenuItem", query)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, query, m.Name, m.Description, m.Price, m.Available, m.ID).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("menu item", m.ID)
		}
		return fmt.Errorf("update menu item: %w", err)
	}
	return nil
}

// Delete removes a menu item that no order references.
func (r *MenuRepository) Delete(ctx context.Context, id int64) (err error) {
	query := `DELETE FROM menu_items WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteMenuItem", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.Conflict(fmt.Sprintf("menu item %d is referenced by existing orders", id))
		}
		return fmt.Errorf("delete menu item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("menu item", id)
	}
	return nil
}

func scanMenuItem(row pgx.Row) (*domain.MenuItem, error) {
	var m domain.MenuItem
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.Price,
		&m.Available,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}
