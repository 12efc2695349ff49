package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/bakery-erp/internal/accounting"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// loadTimeout bounds a shared repository load.
const loadTimeout = 5 * time.Second

// Store is a read-through cache over the settings repository. A nil redis
// client disables caching.
type Store struct {
	repo      Repository
	client    *redis.Client
	ttl       time.Duration
	logger    *slog.Logger
	group     singleflight.Group
	validator *validator.Validate
}

// NewStore constructs a Store.
func NewStore(repo Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repo: repo, client: client, ttl: ttl, logger: logger, validator: validator.New()}
}

// GetSetting returns the value stored for key. Cache failures fall back to
// the repository and are logged.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", shared.Validationf("setting key required")
	}
	cacheKey, err := s.cacheKey(ctx, key)
	if err != nil {
		s.logger.Warn("settings cache version unavailable", slog.Any("error", err))
	}
	if cacheKey != "" {
		value, err := s.client.Get(ctx, cacheKey).Result()
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("settings cache read failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	result := s.group.DoChan(key, func() (interface{}, error) {
		// Callers waiting on this load must not fail because the first one left.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		value, err := s.repo.Get(loadCtx, key)
		if err != nil {
			return "", err
		}
		if cacheKey != "" {
			if err := s.client.Set(loadCtx, cacheKey, value, s.ttl).Err(); err != nil {
				s.logger.Warn("settings cache write failed", slog.String("key", key), slog.Any("error", err))
			}
		}
		return value, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-result:
		if res.Err != nil {
			if errors.Is(res.Err, ErrSettingNotFound) {
				return "", fmt.Errorf("%w: %s", ErrSettingNotFound, key)
			}
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Int64 parses a setting as an integer.
func (s *Store) Int64(ctx context.Context, key string) (int64, error) {
	raw, err := s.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("settings: %s is not an integer: %w", key, err)
	}
	return v, nil
}

// Bool parses a setting as a boolean, returning def when the key is unset.
func (s *Store) Bool(ctx context.Context, key string, def bool) (bool, error) {
	raw, err := s.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			return def, nil
		}
		return false, err
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("settings: %s is not a boolean: %w", key, err)
	}
	return v, nil
}

// ControlAccounts resolves every control account. Unset accounts stay zero so
// only the vouchers that need them fail.
func (s *Store) ControlAccounts(ctx context.Context) (accounting.ControlAccounts, error) {
	var out accounting.ControlAccounts
	targets := []struct {
		key string
		dst *int64
	}{
		{KeyCashAccount, &out.Cash},
		{KeyBankAccount, &out.Bank},
		{KeyGSTAccount, &out.GST},
		{KeySalesAccount, &out.Sales},
		{KeyPurchaseAccount, &out.Purchase},
		{KeyTransferClearingAccount, &out.TransferClearing},
	}
	for _, t := range targets {
		v, err := s.Int64(ctx, t.key)
		if err != nil {
			if errors.Is(err, ErrSettingNotFound) {
				continue
			}
			return accounting.ControlAccounts{}, err
		}
		*t.dst = v
	}
	return out, nil
}

// CentralLocation returns the configured central location, or fallback when unset.
func (s *Store) CentralLocation(ctx context.Context, fallback int64) (int64, error) {
	id, err := s.Int64(ctx, KeyCentralLocation)
	if errors.Is(err, ErrSettingNotFound) {
		return fallback, nil
	}
	return id, err
}

// Set stores values and invalidates the cache.
func (s *Store) Set(ctx context.Context, values ...Setting) error {
	for i := range values {
		values[i].Key = strings.TrimSpace(values[i].Key)
		if err := s.validator.Struct(values[i]); err != nil {
			return shared.Validationf("setting %q: %v", values[i].Key, err)
		}
	}
	if len(values) == 0 {
		return nil
	}
	if err := s.repo.Upsert(ctx, values); err != nil {
		return err
	}
	return s.Bump(ctx)
}

// List returns every stored setting.
func (s *Store) List(ctx context.Context) ([]Setting, error) {
	return s.repo.List(ctx)
}

// Bump invalidates every cached setting by moving to a new cache version.
func (s *Store) Bump(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Incr(ctx, shared.SettingsVersionKey).Err()
}

func (s *Store) cacheKey(ctx context.Context, key string) (string, error) {
	if s.client == nil {
		return "", nil
	}
	ver, err := s.client.Get(ctx, shared.SettingsVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 0
	} else if err != nil {
		return "", err
	}
	return shared.SettingCacheKey(ver, key), nil
}
