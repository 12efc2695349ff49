package settings

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	values map[string]string
	gets   int
}

func newMemoryRepo(values map[string]string) *memoryRepo {
	if values == nil {
		values = map[string]string{}
	}
	return &memoryRepo{values: values}
}

func (m *memoryRepo) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.values[key]
	if !ok {
		return "", ErrSettingNotFound
	}
	return v, nil
}

func (m *memoryRepo) Upsert(_ context.Context, settings []Setting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range settings {
		m.values[s.Key] = s.Value
	}
	return nil
}

func (m *memoryRepo) List(context.Context) ([]Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Setting
	for k, v := range m.values {
		out = append(out, Setting{Key: k, Value: v})
	}
	return out, nil
}

func (m *memoryRepo) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

func newTestStore(t *testing.T, repo Repository) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(repo, client, time.Minute, nil)
}

func TestGetSettingCaches(t *testing.T) {
	repo := newMemoryRepo(map[string]string{KeyCashAccount: "1001"})
	store := newTestStore(t, repo)
	ctx := context.Background()

	v, err := store.GetSetting(ctx, KeyCashAccount)
	require.NoError(t, err)
	require.Equal(t, "1001", v)

	v, err = store.GetSetting(ctx, KeyCashAccount)
	require.NoError(t, err)
	require.Equal(t, "1001", v)
	require.Equal(t, 1, repo.getCount(), "second read should hit redis")
}

func TestSetInvalidatesCache(t *testing.T) {
	repo := newMemoryRepo(map[string]string{KeyCentralLocation: "1"})
	store := newTestStore(t, repo)
	ctx := context.Background()

	id, err := store.CentralLocation(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	require.NoError(t, store.Set(ctx, Setting{Key: KeyCentralLocation, Value: "4"}))
	id, err = store.CentralLocation(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(4), id)
	require.Equal(t, 2, repo.getCount())
}

func TestGetSettingMissing(t *testing.T) {
	store := newTestStore(t, newMemoryRepo(nil))
	_, err := store.GetSetting(context.Background(), "account.unknown")
	require.ErrorIs(t, err, ErrSettingNotFound)

	_, err = store.GetSetting(context.Background(), "  ")
	require.ErrorIs(t, err, shared.ErrValidation)

	id, err := store.CentralLocation(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, int64(9), id)

	on, err := store.Bool(context.Background(), KeySyncMasterRate, true)
	require.NoError(t, err)
	require.True(t, on)
}

func TestGetSettingWithoutRedis(t *testing.T) {
	repo := newMemoryRepo(map[string]string{KeySyncMasterRate: "true"})
	store := NewStore(repo, nil, time.Minute, nil)
	on, err := store.Bool(context.Background(), KeySyncMasterRate, false)
	require.NoError(t, err)
	require.True(t, on)
	_, err = store.Bool(context.Background(), KeySyncMasterRate, false)
	require.NoError(t, err)
	require.Equal(t, 2, repo.getCount())
}

func TestControlAccounts(t *testing.T) {
	repo := newMemoryRepo(map[string]string{
		KeyCashAccount:             "1001",
		KeyBankAccount:             "1002",
		KeyGSTAccount:              "2100",
		KeySalesAccount:            "4000",
		KeyPurchaseAccount:         "5000",
		KeyTransferClearingAccount: "1900",
	})
	store := newTestStore(t, repo)
	accounts, err := store.ControlAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1001), accounts.Cash)
	require.Equal(t, int64(1002), accounts.Bank)
	require.Equal(t, int64(2100), accounts.GST)
	require.Equal(t, int64(4000), accounts.Sales)
	require.Equal(t, int64(5000), accounts.Purchase)
	require.Equal(t, int64(1900), accounts.TransferClearing)

	require.NoError(t, store.Set(context.Background(), Setting{Key: KeyGSTAccount, Value: "abc"}))
	_, err = store.ControlAccounts(context.Background())
	require.Error(t, err)
}

func TestSeedFromYAML(t *testing.T) {
	repo := newMemoryRepo(nil)
	store := newTestStore(t, repo)
	doc := `settings:
  account.cash: "1001"
  location.central: "1"
  purchase.sync_master_rate: "true"
`
	n, err := store.Seed(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "1", repo.values[KeyCentralLocation])

	_, err = LoadSeed(strings.NewReader("unknown: 1\n"))
	require.Error(t, err)

	values, err := LoadSeed(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, values)
}

type blockingRepo struct {
	*memoryRepo
	started chan struct{}
	release chan struct{}
	loaded  chan error
}

func (b *blockingRepo) Get(ctx context.Context, key string) (string, error) {
	close(b.started)
	<-b.release
	b.loaded <- ctx.Err()
	return b.memoryRepo.Get(ctx, key)
}

func TestGetSettingSharedLoadOutlivesFirstCaller(t *testing.T) {
	repo := &blockingRepo{
		memoryRepo: newMemoryRepo(map[string]string{KeyCashAccount: "1001"}),
		started:    make(chan struct{}),
		release:    make(chan struct{}),
		loaded:     make(chan error, 1),
	}
	store := NewStore(repo, nil, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	callerErr := make(chan error, 1)
	go func() {
		_, err := store.GetSetting(ctx, KeyCashAccount)
		callerErr <- err
	}()
	<-repo.started
	cancel()
	require.ErrorIs(t, <-callerErr, context.Canceled)

	close(repo.release)
	require.NoError(t, <-repo.loaded, "shared load must not inherit the caller's cancellation")
	require.Eventually(t, func() bool { return repo.getCount() == 1 }, time.Second, 5*time.Millisecond)
}
