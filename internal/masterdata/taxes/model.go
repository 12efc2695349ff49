package taxes

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tax is a GST slab lines can reference instead of carrying raw percents.
type Tax struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code" validate:"required,max=32"`
	Name        string          `json:"name" validate:"required,max=128"`
	CGSTPercent decimal.Decimal `json:"cgst_percent"`
	SGSTPercent decimal.Decimal `json:"sgst_percent"`
	IGSTPercent decimal.Decimal `json:"igst_percent"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
