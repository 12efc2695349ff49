// Package settings resolves configuration values such as control accounts and
// feature toggles from the app_settings table, cached in Redis.
package settings

import "errors"

// Well-known setting keys.
const (
	KeyCashAccount             = "account.cash"
	KeyBankAccount             = "account.bank"
	KeyGSTAccount              = "account.gst"
	KeySalesAccount            = "account.sales"
	KeyPurchaseAccount         = "account.purchase"
	KeyTransferClearingAccount = "account.transfer_clearing"
	KeyCentralLocation         = "location.central"
	KeySyncMasterRate          = "purchase.sync_master_rate"
	KeyReturnToCentral         = "sale_return.route_to_central"
)

// ErrSettingNotFound indicates the key has no stored value.
var ErrSettingNotFound = errors.New("settings: key not found")

// Setting is one stored key/value pair.
type Setting struct {
	Key   string `json:"key" yaml:"key" validate:"required,max=128"`
	Value string `json:"value" yaml:"value"`
}
