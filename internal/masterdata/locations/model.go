package locations

import (
	"time"
)

// Location is a store or the central kitchen that holds stock.
type Location struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code" validate:"required,max=32"`
	Name      string    `json:"name" validate:"required,max=128"`
	Address   string    `json:"address" validate:"max=255"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
