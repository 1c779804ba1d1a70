package domain

import "time"

// MenuItem is a dish on the menu. Price is in cents.
type MenuItem struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MenuFilter narrows menu listings.
type MenuFilter struct {
	AvailableOnly bool
}
