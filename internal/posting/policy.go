package posting

import (
	"github.com/odyssey-erp/bakery-erp/internal/accounting"
	"github.com/odyssey-erp/bakery-erp/internal/inventory"
)

// Policy captures everything that differs between transaction kinds. The
// pipeline itself is shared.
type Policy struct {
	Kind          Kind
	StockRule     inventory.Rule
	VoucherTypes  []accounting.VoucherType
	// Explode loads recipes so centrally produced items consume raw materials.
	Explode bool
	// RoutableReturn lets the return-to-central setting redirect stock.
	RoutableReturn bool
	// Transfer requires a distinct destination and posts one voucher per leg.
	Transfer bool
	// Payments accepts cash and bank payment figures.
	Payments bool
	// SyncRate allows the master-rate sync setting to apply.
	SyncRate bool
	Prefix   string
}

var policies = map[Kind]Policy{
	KindSale: {
		Kind:         KindSale,
		StockRule:    inventory.RuleSale,
		VoucherTypes: []accounting.VoucherType{accounting.VoucherSale},
		Explode:      true,
		Payments:     true,
		Prefix:       "SAL",
	},
	KindSaleReturn: {
		Kind:           KindSaleReturn,
		StockRule:      inventory.RuleSaleReturn,
		VoucherTypes:   []accounting.VoucherType{accounting.VoucherSaleReturn},
		RoutableReturn: true,
		Payments:       true,
		Prefix:         "SRT",
	},
	KindPurchase: {
		Kind:         KindPurchase,
		StockRule:    inventory.RulePurchase,
		VoucherTypes: []accounting.VoucherType{accounting.VoucherPurchase},
		Payments:     true,
		SyncRate:     true,
		Prefix:       "PUR",
	},
	KindPurchaseReturn: {
		Kind:         KindPurchaseReturn,
		StockRule:    inventory.RulePurchaseReturn,
		VoucherTypes: []accounting.VoucherType{accounting.VoucherPurchaseReturn},
		Payments:     true,
		Prefix:       "PRT",
	},
	KindStockTransfer: {
		Kind:         KindStockTransfer,
		StockRule:    inventory.RuleTransfer,
		VoucherTypes: []accounting.VoucherType{accounting.VoucherTransferOut, accounting.VoucherTransferIn},
		Explode:      true,
		Transfer:     true,
		Prefix:       "STR",
	},
}

// PolicyFor returns the policy of kind.
func PolicyFor(kind Kind) (Policy, error) {
	p, ok := policies[kind]
	if !ok {
		return Policy{}, ErrUnknownKind
	}
	return p, nil
}

// SourceKey is the stock supersession key of a transaction.
func (p Policy) SourceKey(headerID int64) inventory.SourceKey {
	return inventory.SourceKey{Kind: string(p.Kind), ID: headerID}
}

// VoucherReference addresses the vouchers of a transaction. Transfers post two
// legs and are matched by id and type; everything else by number.
func (p Policy) VoucherReference(h Header) accounting.Reference {
	if p.Transfer {
		return accounting.Reference{ID: h.ID, Types: p.VoucherTypes}
	}
	return accounting.Reference{Number: h.Number}
}
