package products

import (
	"strings"

	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

func (s *Service) validate(p Product) error {
	p.Code = strings.TrimSpace(p.Code)
	p.Name = strings.TrimSpace(p.Name)
	if err := s.validator.Struct(p); err != nil {
		return shared.Validationf("%v", err)
	}
	if p.Rate.IsNegative() {
		return shared.Validationf("product rate must not be negative")
	}
	return nil
}

func validateRecipe(productID int64, components []inventory.Component) error {
	seen := make(map[int64]struct{}, len(components))
	for _, c := range components {
		if c.MaterialID <= 0 {
			return shared.Validationf("recipe material required")
		}
		if c.MaterialID == productID {
			return shared.Validationf("product %d cannot consume itself", productID)
		}
		if !c.QuantityPerUnit.IsPositive() {
			return shared.Validationf("recipe quantity for material %d must be positive", c.MaterialID)
		}
		if _, dup := seen[c.MaterialID]; dup {
			return shared.Validationf("material %d listed twice", c.MaterialID)
		}
		seen[c.MaterialID] = struct{}{}
	}
	return nil
}
