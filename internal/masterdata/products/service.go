package products

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/inventory"
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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, internalShared.Validationf("invalid product ID")
	}
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	recipes, err := s.repo.Recipes(ctx, []int64{id})
	if err != nil {
		return Product{}, err
	}
	product.Recipe = recipes[id]
	return product, nil
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return internalShared.Validationf("invalid product ID")
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return internalShared.Validationf("invalid product ID")
	}
	return s.repo.Delete(ctx, id)
}

// SetRecipe replaces the recipe of a centrally produced product. Every
// material must be an existing product.
func (s *Service) SetRecipe(ctx context.Context, id int64, components []inventory.Component) error {
	if err := validateRecipe(id, components); err != nil {
		return err
	}
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !product.CentrallyProduced && len(components) > 0 {
		return internalShared.Validationf("product %s is not centrally produced", product.Code)
	}
	ids := make([]int64, 0, len(components))
	for _, c := range components {
		ids = append(ids, c.MaterialID)
	}
	found, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	for _, materialID := range ids {
		if _, ok := found[materialID]; !ok {
			return internalShared.Validationf("material %d does not exist", materialID)
		}
	}
	return s.repo.ReplaceRecipe(ctx, id, components)
}

// Resolve checks that every item exists and is active, and returns the
// recipes of the centrally produced ones.
func (s *Service) Resolve(ctx context.Context, itemIDs []int64) (inventory.Recipes, error) {
	found, err := s.repo.GetMany(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	var central []int64
	for _, id := range itemIDs {
		p, ok := found[id]
		if !ok {
			return nil, internalShared.Validationf("item %d does not exist", id)
		}
		if !p.IsActive {
			return nil, internalShared.Validationf("item %s is inactive", p.Code)
		}
		if p.CentrallyProduced {
			central = append(central, id)
		}
	}
	recipes := inventory.Recipes{}
	if len(central) == 0 {
		return recipes, nil
	}
	byItem, err := s.repo.Recipes(ctx, central)
	if err != nil {
		return nil, fmt.Errorf("load recipes: %w", err)
	}
	for id, components := range byItem {
		recipes[id] = components
	}
	return recipes, nil
}

// SyncRate overwrites the master rate of a product.
func (s *Service) SyncRate(ctx context.Context, id int64, rate decimal.Decimal) error {
	if id <= 0 {
		return internalShared.Validationf("invalid product ID")
	}
	if rate.IsNegative() {
		return internalShared.Validationf("product rate must not be negative")
	}
	return s.repo.UpdateRate(ctx, id, rate)
}
