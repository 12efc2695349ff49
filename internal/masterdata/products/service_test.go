package products

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/bakery-erp/internal/shared"
)

type memoryRepo struct {
	nextID   int64
	products map[int64]Product
	recipes  inventory.Recipes
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: map[int64]Product{}, recipes: inventory.Recipes{}}
}

func (m *memoryRepo) List(_ context.Context, _ shared.ListFilters) ([]Product, int, error) {
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: product %d", internalShared.ErrNotFound, id)
	}
	return p, nil
}

func (m *memoryRepo) GetMany(_ context.Context, ids []int64) (map[int64]Product, error) {
	out := map[int64]Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memoryRepo) Create(_ context.Context, p Product) (Product, error) {
	m.nextID++
	p.ID = m.nextID
	m.products[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, p Product) error {
	if _, ok := m.products[id]; !ok {
		return internalShared.ErrNotFound
	}
	p.ID = id
	m.products[id] = p
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(m.products, id)
	return nil
}

func (m *memoryRepo) Recipes(_ context.Context, ids []int64) (inventory.Recipes, error) {
	out := inventory.Recipes{}
	for _, id := range ids {
		if r, ok := m.recipes[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (m *memoryRepo) ReplaceRecipe(_ context.Context, id int64, components []inventory.Component) error {
	m.recipes[id] = components
	return nil
}

func (m *memoryRepo) UpdateRate(_ context.Context, id int64, rate decimal.Decimal) error {
	p, ok := m.products[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	p.Rate = rate
	m.products[id] = p
	return nil
}

func seedCatalog(t *testing.T) (*Service, *memoryRepo, Product, Product, Product) {
	t.Helper()
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	flour, err := svc.Create(ctx, Product{Code: "FLR", Name: "Flour", Rate: decimal.NewFromInt(40), IsActive: true})
	require.NoError(t, err)
	cake, err := svc.Create(ctx, Product{Code: "CAKE", Name: "Cake", Rate: decimal.NewFromInt(100), CentrallyProduced: true, IsActive: true})
	require.NoError(t, err)
	old, err := svc.Create(ctx, Product{Code: "OLD", Name: "Retired", Rate: decimal.NewFromInt(10)})
	require.NoError(t, err)
	return svc, repo, flour, cake, old
}

func TestCreateValidatesProduct(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.Create(context.Background(), Product{Name: "No code"})
	require.ErrorIs(t, err, internalShared.ErrValidation)

	_, err = svc.Create(context.Background(), Product{Code: "NEG", Name: "Negative", Rate: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, internalShared.ErrValidation)
}

func TestSetRecipeAndResolve(t *testing.T) {
	svc, _, flour, cake, _ := seedCatalog(t)
	ctx := context.Background()

	recipe := []inventory.Component{{MaterialID: flour.ID, QuantityPerUnit: decimal.RequireFromString("0.25")}}
	require.NoError(t, svc.SetRecipe(ctx, cake.ID, recipe))

	recipes, err := svc.Resolve(ctx, []int64{cake.ID, flour.ID})
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	require.Equal(t, recipe, recipes[cake.ID])

	got, err := svc.Get(ctx, cake.ID)
	require.NoError(t, err)
	require.Equal(t, recipe, got.Recipe)
}

func TestSetRecipeRejectsInvalidComponents(t *testing.T) {
	svc, _, flour, cake, _ := seedCatalog(t)
	ctx := context.Background()

	cases := map[string]struct {
		id         int64
		components []inventory.Component
	}{
		"self reference":   {cake.ID, []inventory.Component{{MaterialID: cake.ID, QuantityPerUnit: decimal.NewFromInt(1)}}},
		"zero quantity":    {cake.ID, []inventory.Component{{MaterialID: flour.ID}}},
		"duplicate":        {cake.ID, []inventory.Component{{MaterialID: flour.ID, QuantityPerUnit: decimal.NewFromInt(1)}, {MaterialID: flour.ID, QuantityPerUnit: decimal.NewFromInt(2)}}},
		"unknown material": {cake.ID, []inventory.Component{{MaterialID: 99, QuantityPerUnit: decimal.NewFromInt(1)}}},
		"not central":      {flour.ID, []inventory.Component{{MaterialID: cake.ID, QuantityPerUnit: decimal.NewFromInt(1)}}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := svc.SetRecipe(ctx, tc.id, tc.components)
			require.ErrorIs(t, err, internalShared.ErrValidation)
		})
	}
}

func TestResolveRejectsUnknownAndInactive(t *testing.T) {
	svc, _, flour, _, old := seedCatalog(t)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, []int64{flour.ID, 404})
	require.ErrorIs(t, err, internalShared.ErrValidation)

	_, err = svc.Resolve(ctx, []int64{old.ID})
	require.ErrorIs(t, err, internalShared.ErrValidation)
}

func TestSyncRate(t *testing.T) {
	svc, repo, flour, _, _ := seedCatalog(t)
	ctx := context.Background()

	require.NoError(t, svc.SyncRate(ctx, flour.ID, decimal.NewFromInt(42)))
	require.True(t, repo.products[flour.ID].Rate.Equal(decimal.NewFromInt(42)))

	err := svc.SyncRate(ctx, 404, decimal.NewFromInt(1))
	require.True(t, errors.Is(err, internalShared.ErrNotFound))
}
