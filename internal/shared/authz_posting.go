package shared

import (
	"context"
	"fmt"
)

// Posting actions guarded by privilege checks.
const (
	ActionCreate  = "create"
	ActionEdit    = "edit"
	ActionDelete  = "delete"
	ActionRecover = "recover"
)

// Stock and ledger permissions outside the transaction poster.
const (
	PermStockAdjust  = "stock.adjustment.create"
	PermPeriodLock   = "accounting.period.lock"
	PermPeriodCreate = "accounting.period.create"
)

// PostingPermission names the permission for an action on a transaction kind,
// e.g. "posting.sale.delete".
func PostingPermission(kind, action string) string {
	return fmt.Sprintf("posting.%s.%s", kind, action)
}

// Authorizer checks a permission for the actor carried by ctx.
type Authorizer interface {
	Can(ctx context.Context, permission string) (bool, error)
}

// Authorize returns ErrUnauthorized when a is set and denies permission. A nil
// Authorizer allows everything.
func Authorize(ctx context.Context, a Authorizer, permission string) error {
	if a == nil {
		return nil
	}
	ok, err := a.Can(ctx, permission)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnauthorized, permission)
	}
	return nil
}
