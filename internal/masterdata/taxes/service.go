package taxes

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/bakery-erp/internal/masterdata/shared"
	"github.com/odyssey-erp/bakery-erp/internal/pricing"
	internalShared "github.com/odyssey-erp/bakery-erp/internal/shared"
)

type Service struct {
	repo      Repository
	validator *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validator: validator.New()}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Tax, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Tax, error) {
	if id <= 0 {
		return Tax{}, internalShared.Validationf("invalid tax ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, tax Tax) (Tax, error) {
	if err := s.validate(&tax); err != nil {
		return Tax{}, err
	}
	return s.repo.Create(ctx, tax)
}

func (s *Service) Update(ctx context.Context, id int64, tax Tax) error {
	if id <= 0 {
		return internalShared.Validationf("invalid tax ID")
	}
	if err := s.validate(&tax); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, tax)
}

// Delete deactivates the tax. Posted lines keep referencing it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return internalShared.Validationf("invalid tax ID")
	}
	return s.repo.Deactivate(ctx, id)
}

// Rates returns the GST percents of the requested taxes. Unknown ids are
// left out of the map; inactive ones are rejected.
func (s *Service) Rates(ctx context.Context, ids []int64) (map[int64]pricing.GST, error) {
	found, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]pricing.GST, len(found))
	for id, t := range found {
		if !t.IsActive {
			return nil, internalShared.Validationf("tax %s is inactive", t.Code)
		}
		out[id] = pricing.GST{CGST: t.CGSTPercent, SGST: t.SGSTPercent, IGST: t.IGSTPercent}
	}
	return out, nil
}
