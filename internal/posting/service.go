package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/bakery-erp/internal/accounting"
	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/pricing"
	"github.com/odyssey-erp/bakery-erp/internal/settings"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// auditEntity names transaction headers in the audit log.
const auditEntity = "transaction"

// RepositoryPort abstracts transactional persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records posting activity.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Catalog checks that items exist and are active and returns the recipes of
// the centrally produced ones.
type Catalog interface {
	Resolve(ctx context.Context, itemIDs []int64) (inventory.Recipes, error)
}

// Taxes resolves tax master entries referenced by cart lines.
type Taxes interface {
	Rates(ctx context.Context, ids []int64) (map[int64]pricing.GST, error)
}

// Locations checks that locations exist and are active.
type Locations interface {
	EnsureActive(ctx context.Context, ids ...int64) error
}

// Settings resolves control accounts and feature toggles.
type Settings interface {
	ControlAccounts(ctx context.Context) (accounting.ControlAccounts, error)
	CentralLocation(ctx context.Context, fallback int64) (int64, error)
	Bool(ctx context.Context, key string, def bool) (bool, error)
}

// ServiceConfig groups the collaborators of Service. Only the repository is
// mandatory.
type ServiceConfig struct {
	Catalog    Catalog
	Taxes      Taxes
	Locations  Locations
	Settings   Settings
	Audit      AuditPort
	Authorizer shared.Authorizer
	Notifier   Notifier
	Metrics    Metrics
	Logger     *slog.Logger
	// CentralLocationID is used when the location.central setting is unset.
	CentralLocationID int64
	Prefixes          map[Kind]string
}

// Service posts sales, purchases, returns and stock transfers. Every write
// runs header, lines, stock and voucher changes in one unit of work.
type Service struct {
	repo            RepositoryPort
	catalog         Catalog
	taxes           Taxes
	locations       Locations
	settings        Settings
	audit           AuditPort
	authz           shared.Authorizer
	notifier        Notifier
	metrics         Metrics
	logger          *slog.Logger
	numbers         NumberGenerator
	stock           *inventory.Ledger
	vouchers        *accounting.Ledger
	guard           accounting.PeriodGuard
	centralFallback int64
	now             func() time.Time
}

// NewService builds the transaction poster.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:            repo,
		catalog:         cfg.Catalog,
		taxes:           cfg.Taxes,
		locations:       cfg.Locations,
		settings:        cfg.Settings,
		audit:           cfg.Audit,
		authz:           cfg.Authorizer,
		notifier:        cfg.Notifier,
		metrics:         cfg.Metrics,
		logger:          logger,
		numbers:         NewNumberGenerator(cfg.Prefixes),
		stock:           inventory.NewLedger(logger),
		vouchers:        accounting.NewLedger(logger),
		centralFallback: cfg.CentralLocationID,
		now:             time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// plan is a validated, fully computed cart plus the configuration it posts with.
type plan struct {
	policy          Policy
	header          Header
	lines           []Line
	recipes         inventory.Recipes
	accounts        accounting.ControlAccounts
	central         int64
	returnToCentral bool
	syncRate        bool
}

// Save validates and recomputes the cart, then writes the header, supersedes
// lines, stock entries and vouchers, and returns the header id. A zero header
// id inserts a new transaction with a freshly issued number.
func (s *Service) Save(ctx context.Context, cart Cart) (int64, error) {
	return s.saveCart(ctx, cart, nil)
}

// SaveKeyed is Save for a request carrying an idempotency key the caller
// already reserved. The key records the header id in the same unit of work,
// so a committed save can always be replayed.
func (s *Service) SaveKeyed(ctx context.Context, cart Cart, key shared.RequestKey) (int64, error) {
	return s.saveCart(ctx, cart, &key)
}

func (s *Service) saveCart(ctx context.Context, cart Cart, key *shared.RequestKey) (int64, error) {
	action := shared.ActionCreate
	if cart.Header.ID != 0 {
		action = shared.ActionEdit
	}
	if err := shared.Authorize(ctx, s.authz, shared.PostingPermission(string(cart.Header.Kind), action)); err != nil {
		s.observeFailure(cart.Header.Kind, err)
		return 0, err
	}
	saved, err := s.save(ctx, cart, false, key)
	if err != nil {
		s.observeFailure(cart.Header.Kind, err)
		return 0, err
	}
	s.afterCommit(ctx, saved, ActionSaved)
	return saved.ID, nil
}

func (s *Service) save(ctx context.Context, cart Cart, recovering bool, key *shared.RequestKey) (Header, error) {
	p, err := s.prepare(ctx, cart)
	if err != nil {
		return Header{}, err
	}
	actor := shared.ActorFromContext(ctx)
	now := s.now()

	var saved Header
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		h := p.header
		if h.ID == 0 {
			h.Revision = 1
			h.CreatedBy = actor.ID
			h.CreatedAt = now
		} else {
			persisted, err := tx.LockHeader(ctx, h.Kind, h.ID)
			if err != nil {
				return err
			}
			if !persisted.Active && !recovering {
				return fmt.Errorf("%w: %w: %s", shared.ErrNotFound, ErrInactive, persisted.Number)
			}
			if err := s.guard.CheckPersisted(ctx, tx, persisted.PeriodID, persisted.Date); err != nil {
				return err
			}
			if h.Revision != 0 && h.Revision != persisted.Revision {
				return fmt.Errorf("%w: %s is at revision %d, caller read %d", shared.ErrConflict, persisted.Number, persisted.Revision, h.Revision)
			}
			h.Number = persisted.Number
			h.Revision = persisted.Revision + 1
			h.CreatedBy = persisted.CreatedBy
			h.CreatedAt = persisted.CreatedAt
		}
		period, err := s.guard.ResolveOpen(ctx, tx, h.Date)
		if err != nil {
			return err
		}
		h.PeriodID = period.ID
		h.Active = true
		h.ModifiedBy = actor.ID
		h.ModifiedAt = now
		h.Platform = actor.Platform

		if h.ID == 0 {
			h.Number, err = s.numbers.GenerateNumber(ctx, tx, h.Kind, h.Date)
			if err != nil {
				return err
			}
			if h.ID, err = tx.InsertHeader(ctx, h); err != nil {
				return fmt.Errorf("insert header: %w", err)
			}
		} else if err := tx.UpdateHeader(ctx, h); err != nil {
			return fmt.Errorf("update header: %w", err)
		}

		if _, err := tx.DeactivateLines(ctx, h.ID); err != nil {
			return fmt.Errorf("deactivate lines: %w", err)
		}
		lines := make([]Line, len(p.lines))
		for i, line := range p.lines {
			line.ID = 0
			line.HeaderID = h.ID
			line.Revision = h.Revision
			line.Active = true
			lines[i] = line
		}
		if err := tx.InsertLines(ctx, lines); err != nil {
			return fmt.Errorf("insert lines: %w", err)
		}

		entries, err := s.stock.Build(s.movement(p, h, lines))
		if err != nil {
			return err
		}
		if err := s.stock.Supersede(ctx, tx, p.policy.SourceKey(h.ID), entries); err != nil {
			return err
		}

		vouchers, err := s.vouchers.BuildVouchers(p.policy.VoucherTypes, overview(h), p.accounts)
		if err != nil {
			return err
		}
		if _, err := s.vouchers.Supersede(ctx, tx, p.policy.VoucherReference(h), vouchers); err != nil {
			return err
		}

		if p.syncRate {
			for _, line := range lines {
				if err := tx.SyncItemRate(ctx, line.ItemID, line.Rate); err != nil {
					return fmt.Errorf("sync rate of item %d: %w", line.ItemID, err)
				}
			}
		}
		if key != nil {
			if err := tx.CompleteRequest(ctx, *key, h.ID); err != nil {
				return fmt.Errorf("complete idempotency key: %w", err)
			}
		}
		saved = h
		return nil
	})
	if err != nil {
		return Header{}, err
	}
	return saved, nil
}

// Delete retires a transaction: header and lines go inactive, stock entries
// are removed and vouchers deactivated. The persisted period must be open.
func (s *Service) Delete(ctx context.Context, kind Kind, id int64) error {
	policy, err := s.policy(kind)
	if err != nil {
		return err
	}
	if id <= 0 {
		return shared.Validationf("transaction id required")
	}
	if err := shared.Authorize(ctx, s.authz, shared.PostingPermission(string(kind), shared.ActionDelete)); err != nil {
		s.observeFailure(kind, err)
		return err
	}
	actor := shared.ActorFromContext(ctx)
	var deleted Header
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		h, err := tx.LockHeader(ctx, kind, id)
		if err != nil {
			return err
		}
		if !h.Active {
			return fmt.Errorf("%w: %w: %s", shared.ErrNotFound, ErrInactive, h.Number)
		}
		if err := s.guard.CheckPersisted(ctx, tx, h.PeriodID, h.Date); err != nil {
			return err
		}
		if err := tx.SetHeaderActive(ctx, h.ID, false, actor.ID); err != nil {
			return err
		}
		if _, err := tx.DeactivateLines(ctx, h.ID); err != nil {
			return fmt.Errorf("deactivate lines: %w", err)
		}
		if err := s.stock.Remove(ctx, tx, policy.SourceKey(h.ID)); err != nil {
			return err
		}
		if err := s.vouchers.Deactivate(ctx, tx, policy.VoucherReference(h)); err != nil {
			return err
		}
		h.Active = false
		deleted = h
		return nil
	})
	if err != nil {
		s.observeFailure(kind, err)
		return err
	}
	s.afterCommit(ctx, deleted, ActionDeleted)
	return nil
}

// Recover rebuilds the cart of a deleted transaction from its last line
// revision and saves it again under the same number.
func (s *Service) Recover(ctx context.Context, kind Kind, id int64) (int64, error) {
	if _, err := s.policy(kind); err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, shared.Validationf("transaction id required")
	}
	if err := shared.Authorize(ctx, s.authz, shared.PostingPermission(string(kind), shared.ActionRecover)); err != nil {
		s.observeFailure(kind, err)
		return 0, err
	}
	var cart Cart
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		h, err := tx.GetHeader(ctx, kind, id)
		if err != nil {
			return err
		}
		if h.Active {
			return fmt.Errorf("%w: %w: %s", shared.ErrValidation, ErrAlreadyActive, h.Number)
		}
		revision, err := tx.LastLineRevision(ctx, h.ID)
		if err != nil {
			return err
		}
		lines, err := tx.LinesByRevision(ctx, h.ID, revision)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return fmt.Errorf("%w: no lines to recover for %s", shared.ErrNotFound, h.Number)
		}
		cart = Cart{Header: h, Lines: lines}
		return nil
	})
	if err != nil {
		s.observeFailure(kind, err)
		return 0, err
	}
	saved, err := s.save(ctx, cart, true, nil)
	if err != nil {
		s.observeFailure(kind, err)
		return 0, err
	}
	s.afterCommit(ctx, saved, ActionRecovered)
	return saved.ID, nil
}

// Get loads a transaction with its active lines. Deleted transactions are
// returned with no lines.
func (s *Service) Get(ctx context.Context, kind Kind, id int64) (Document, error) {
	if _, err := s.policy(kind); err != nil {
		return Document{}, err
	}
	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		h, err := tx.GetHeader(ctx, kind, id)
		if err != nil {
			return err
		}
		lines, err := tx.ActiveLines(ctx, id)
		if err != nil {
			return err
		}
		doc = Document{Header: h, Lines: lines}
		return nil
	})
	return doc, err
}

// ListByStatus lists active or deleted transactions of kind.
func (s *Service) ListByStatus(ctx context.Context, kind Kind, active bool) ([]Header, error) {
	if _, err := s.policy(kind); err != nil {
		return nil, err
	}
	var headers []Header
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		headers, err = tx.ListByStatus(ctx, kind, active)
		return err
	})
	return headers, err
}

// ListByDateRange lists active transactions of kind dated within [from, to].
func (s *Service) ListByDateRange(ctx context.Context, kind Kind, from, to time.Time) ([]Header, error) {
	if _, err := s.policy(kind); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, shared.Validationf("range end precedes start")
	}
	var headers []Header
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		headers, err = tx.ListByDateRange(ctx, kind, from, to)
		return err
	})
	return headers, err
}

func (s *Service) policy(kind Kind) (Policy, error) {
	p, err := PolicyFor(kind)
	if err != nil {
		return Policy{}, fmt.Errorf("%w: %w %q", shared.ErrValidation, err, kind)
	}
	return p, nil
}

// prepare validates the cart, resolves collaborators and recomputes every
// figure. Nothing is written.
func (s *Service) prepare(ctx context.Context, cart Cart) (plan, error) {
	policy, err := s.policy(cart.Header.Kind)
	if err != nil {
		return plan{}, err
	}
	if cart, err = s.applyTaxes(ctx, cart); err != nil {
		return plan{}, err
	}
	if err := validateCart(policy, cart); err != nil {
		return plan{}, err
	}
	p := plan{policy: policy}

	if s.catalog != nil {
		recipes, err := s.catalog.Resolve(ctx, itemIDs(cart.Lines))
		if err != nil {
			return plan{}, err
		}
		if policy.Explode {
			p.recipes = recipes
		}
	}
	if s.locations != nil {
		if err := s.locations.EnsureActive(ctx, cart.Header.LocationID, cart.Header.DestinationLocationID); err != nil {
			return plan{}, err
		}
	}
	p.central = s.centralFallback
	if s.settings != nil {
		if p.accounts, err = s.settings.ControlAccounts(ctx); err != nil {
			return plan{}, fmt.Errorf("control accounts: %w", err)
		}
		if p.central, err = s.settings.CentralLocation(ctx, s.centralFallback); err != nil {
			return plan{}, fmt.Errorf("central location: %w", err)
		}
		if policy.RoutableReturn {
			if p.returnToCentral, err = s.settings.Bool(ctx, settings.KeyReturnToCentral, false); err != nil {
				return plan{}, err
			}
		}
		if policy.SyncRate {
			if p.syncRate, err = s.settings.Bool(ctx, settings.KeySyncMasterRate, false); err != nil {
				return plan{}, err
			}
		}
	}

	p.header, p.lines = recompute(cart)
	if err := validateTotals(policy, p.header); err != nil {
		return plan{}, err
	}
	return p, nil
}

// applyTaxes overwrites the GST percents of lines that reference a tax
// master entry.
func (s *Service) applyTaxes(ctx context.Context, cart Cart) (Cart, error) {
	var ids []int64
	for _, line := range cart.Lines {
		if line.TaxID != 0 {
			ids = append(ids, line.TaxID)
		}
	}
	if len(ids) == 0 {
		return cart, nil
	}
	if s.taxes == nil {
		return Cart{}, shared.Validationf("tax master is not configured")
	}
	rates, err := s.taxes.Rates(ctx, ids)
	if err != nil {
		return Cart{}, err
	}
	lines := make([]Line, len(cart.Lines))
	for i, line := range cart.Lines {
		if line.TaxID != 0 {
			gst, ok := rates[line.TaxID]
			if !ok {
				return Cart{}, shared.Validationf("line %d: tax %d does not exist", i+1, line.TaxID)
			}
			line.CGSTPercent, line.SGSTPercent, line.IGSTPercent = gst.CGST, gst.SGST, gst.IGST
		}
		lines[i] = line
	}
	cart.Lines = lines
	return cart, nil
}

func (s *Service) movement(p plan, h Header, lines []Line) inventory.Movement {
	m := inventory.Movement{
		Rule:                  p.policy.StockRule,
		Source:                p.policy.SourceKey(h.ID),
		Number:                h.Number,
		Date:                  h.Date,
		LocationID:            h.LocationID,
		DestinationLocationID: h.DestinationLocationID,
		CentralLocationID:     p.central,
		ReturnToCentral:       p.returnToCentral,
		Recipes:               p.recipes,
	}
	for _, line := range lines {
		m.Lines = append(m.Lines, inventory.MovementLine{ItemID: line.ItemID, Quantity: line.Quantity, Rate: line.NetRate})
	}
	return m
}

func overview(h Header) accounting.Overview {
	return accounting.Overview{
		ReferenceID:           h.ID,
		ReferenceNumber:       h.Number,
		ReferenceType:         string(h.Kind),
		Date:                  h.Date,
		PeriodID:              h.PeriodID,
		LocationID:            h.LocationID,
		DestinationLocationID: h.DestinationLocationID,
		GrandTotal:            h.GrandTotal,
		TaxAmount:             h.TaxAmount,
		CashPayment:           h.CashPayment,
		BankPayment:           h.BankPayment,
		ActorID:               h.ModifiedBy,
	}
}

func (s *Service) afterCommit(ctx context.Context, h Header, action Action) {
	actor := shared.ActorFromContext(ctx)
	if s.metrics != nil {
		s.metrics.ObservePosting(string(h.Kind), string(action))
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Platform: actor.Platform,
			Action:   fmt.Sprintf("%s.%s", h.Kind, action),
			Entity:   auditEntity,
			EntityID: strconv.FormatInt(h.ID, 10),
			Meta: map[string]any{
				"number":      h.Number,
				"revision":    h.Revision,
				"grand_total": h.GrandTotal.StringFixed(2),
			},
			At: s.now(),
		}); err != nil {
			s.logger.Warn("audit record failed", slog.String("number", h.Number), slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.TransactionPosted(ctx, PostedEvent{
			Kind:       h.Kind,
			ID:         h.ID,
			Number:     h.Number,
			Action:     action,
			Revision:   h.Revision,
			GrandTotal: h.GrandTotal,
			ActorID:    actor.ID,
			PostedAt:   s.now(),
		}); err != nil {
			s.logger.Warn("posted event not published", slog.String("number", h.Number), slog.Any("error", err))
		}
	}
	s.logger.Info("transaction posted",
		slog.String("kind", string(h.Kind)),
		slog.String("number", h.Number),
		slog.String("action", string(action)),
		slog.Int("revision", h.Revision))
}

func (s *Service) observeFailure(kind Kind, err error) {
	if errors.Is(err, shared.ErrPostingInvariant) {
		s.logger.Error("posting invariant violated", slog.String("kind", string(kind)), slog.Any("error", err))
	}
	if s.metrics != nil {
		s.metrics.ObservePostingFailure(string(kind), FailureReason(err))
	}
}

// FailureReason classifies err for metrics labels.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, shared.ErrPostingInvariant):
		return "invariant"
	case errors.Is(err, shared.ErrValidation):
		return "validation"
	case errors.Is(err, shared.ErrPeriodLocked):
		return "period_locked"
	case errors.Is(err, shared.ErrPeriodNotFound):
		return "period_not_found"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrConflict):
		return "conflict"
	case errors.Is(err, shared.ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

func itemIDs(lines []Line) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ItemID]; ok {
			continue
		}
		seen[line.ItemID] = struct{}{}
		ids = append(ids, line.ItemID)
	}
	return ids
}
