package locations

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/bakery-erp/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/bakery-erp/internal/shared"
)

type Service struct {
	repo      Repository
	validator *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validator: validator.New()}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, internalShared.Validationf("invalid location ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, location Location) (Location, error) {
	if err := s.validate(&location); err != nil {
		return Location{}, err
	}
	return s.repo.Create(ctx, location)
}

func (s *Service) Update(ctx context.Context, id int64, location Location) error {
	if id <= 0 {
		return internalShared.Validationf("invalid location ID")
	}
	if err := s.validate(&location); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, location)
}

// EnsureActive fails with a validation error unless every id names an
// active location. Zero ids are ignored.
func (s *Service) EnsureActive(ctx context.Context, ids ...int64) error {
	wanted := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			wanted = append(wanted, id)
		}
	}
	found, err := s.repo.GetMany(ctx, wanted)
	if err != nil {
		return err
	}
	for _, id := range wanted {
		l, ok := found[id]
		if !ok {
			return internalShared.Validationf("location %d does not exist", id)
		}
		if !l.IsActive {
			return internalShared.Validationf("location %s is inactive", l.Code)
		}
	}
	return nil
}

func (s *Service) validate(l *Location) error {
	l.Code = strings.ToUpper(strings.TrimSpace(l.Code))
	l.Name = strings.TrimSpace(l.Name)
	if err := s.validator.Struct(l); err != nil {
		return internalShared.Validationf("%v", err)
	}
	return nil
}
