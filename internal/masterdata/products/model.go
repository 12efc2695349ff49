package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/inventory"
)

// Product represents a sellable or raw material item
type Product struct {
	ID                int64                 `json:"id"`
	Code              string                `json:"code" validate:"required,max=32"`
	Name              string                `json:"name" validate:"required,max=128"`
	Rate              decimal.Decimal       `json:"rate"`
	CentrallyProduced bool                  `json:"centrally_produced"`
	IsActive          bool                  `json:"is_active"`
	Recipe            []inventory.Component `json:"recipe,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}
