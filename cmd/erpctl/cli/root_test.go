package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bakery-erp/internal/posting"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

type stubBackend struct {
	seeded    string
	stockAt   time.Time
	recovered []int64
	actor     shared.Actor
	triggered []string
	closed    bool
	migrated  bool
}

func (s *stubBackend) Seed(_ context.Context, r io.Reader) (int, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.seeded = string(body)
	return strings.Count(s.seeded, ":") - 1, nil
}

func (s *stubBackend) ClosingStock(_ context.Context, itemID, locationID int64, date time.Time) (decimal.Decimal, error) {
	s.stockAt = date
	if itemID == 404 {
		return decimal.Zero, shared.ErrNotFound
	}
	return decimal.RequireFromString("12.5"), nil
}

func (s *stubBackend) Recover(ctx context.Context, kind posting.Kind, id int64) (int64, error) {
	s.actor = shared.ActorFromContext(ctx)
	s.recovered = append(s.recovered, id)
	return id, nil
}

func (s *stubBackend) Trigger(_ context.Context, name string) (string, error) {
	s.triggered = append(s.triggered, name)
	return "task-1", nil
}

func (s *stubBackend) Migrate(context.Context) ([]string, error) {
	if s.migrated {
		return nil, nil
	}
	s.migrated = true
	return []string{"0001", "0002"}, nil
}

func (s *stubBackend) InspectQueues(context.Context) ([]QueueStats, error) {
	return []QueueStats{{Queue: "notifications", Pending: 2}, {Queue: "default"}}, nil
}

func run(t *testing.T, backend *stubBackend, args ...string) (int, string, string) {
	t.Helper()
	connect := func(context.Context) (*Services, func(), error) {
		return &Services{Settings: backend, Stock: backend, Transactions: backend, Jobs: backend, Schema: backend}, func() { backend.closed = true }, nil
	}
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), connect, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSettingsSeedFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	require.NoError(t, os.WriteFile(path, []byte("settings:\n  account.cash: \"1001\"\n"), 0o600))
	backend := &stubBackend{}

	code, stdout, stderr := run(t, backend, "settings", "seed", "--file", path)
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "seeded 1 settings\n", stdout)
	require.Contains(t, backend.seeded, "account.cash")
	require.True(t, backend.closed)
}

func TestSettingsSeedMissingFile(t *testing.T) {
	code, _, stderr := run(t, &stubBackend{}, "settings", "seed", "--file", filepath.Join(t.TempDir(), "nope.yml"))
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "erpctl:")
}

func TestStockClosing(t *testing.T) {
	backend := &stubBackend{}
	code, stdout, stderr := run(t, backend, "stock", "closing", "--item", "3", "--location", "2", "--date", "2025-06-30", "--json")
	require.Equal(t, 0, code, stderr)
	require.JSONEq(t, `{"item_id":3,"location_id":2,"date":"2025-06-30","quantity":"12.5"}`, stdout)
	require.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), backend.stockAt)

	code, _, stderr = run(t, backend, "stock", "closing", "--item", "3")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "--item and --location are required")

	code, _, stderr = run(t, backend, "stock", "closing", "--item", "404", "--location", "2")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, shared.ErrNotFound.Error())
}

func TestTxnRecover(t *testing.T) {
	backend := &stubBackend{}
	code, stdout, stderr := run(t, backend, "txn", "recover", "--kind", "sale", "--id", "41", "--actor", "7")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "recovered sale 41\n", stdout)
	require.Equal(t, []int64{41}, backend.recovered)
	require.Equal(t, shared.Actor{ID: 7, Platform: "erpctl"}, backend.actor)

	code, _, stderr = run(t, backend, "txn", "recover", "--kind", "gift", "--id", "41")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, posting.ErrUnknownKind.Error())
}

func TestJobsCommands(t *testing.T) {
	backend := &stubBackend{}
	code, stdout, _ := run(t, backend, "jobs", "trigger", "accounting:voucher_integrity")
	require.Equal(t, 0, code)
	require.Equal(t, "enqueued task-1\n", stdout)
	require.Equal(t, []string{"accounting:voucher_integrity"}, backend.triggered)

	code, stdout, _ = run(t, backend, "jobs", "stats")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "notifications  pending=2")

	code, _, _ = run(t, backend, "jobs", "trigger")
	require.Equal(t, 1, code)
}

func TestConnectFailureIsReported(t *testing.T) {
	connect := func(context.Context) (*Services, func(), error) {
		return nil, nil, errors.New("dial tcp: refused")
	}
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), connect, []string{"jobs", "stats"}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Equal(t, "erpctl: dial tcp: refused\n", stderr.String())
}

func TestMigrate(t *testing.T) {
	backend := &stubBackend{}
	code, stdout, _ := run(t, backend, "migrate")
	require.Equal(t, 0, code)
	require.Equal(t, "applied 0001, 0002\n", stdout)

	code, stdout, _ = run(t, backend, "migrate")
	require.Equal(t, 0, code)
	require.Equal(t, "schema up to date\n", stdout)
}
