package taxes

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

var hundred = decimal.NewFromInt(100)

func (s *Service) validate(t *Tax) error {
	t.Code = strings.ToUpper(strings.TrimSpace(t.Code))
	t.Name = strings.TrimSpace(t.Name)
	if err := s.validator.Struct(t); err != nil {
		return shared.Validationf("%v", err)
	}
	for _, pct := range []decimal.Decimal{t.CGSTPercent, t.SGSTPercent, t.IGSTPercent} {
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return shared.Validationf("tax percent must be between 0 and 100")
		}
	}
	split := t.CGSTPercent.IsPositive() || t.SGSTPercent.IsPositive()
	if split && t.IGSTPercent.IsPositive() {
		return shared.Validationf("tax %s cannot carry both CGST/SGST and IGST", t.Code)
	}
	return nil
}
