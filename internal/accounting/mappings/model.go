package mappings

import (
	"strings"
	"time"
)

// Collection holds account mappings.
const Collection = "account_mappings"

// Modules.
const (
	ModuleAR      = "AR"
	ModuleAP      = "AP"
	ModulePayment = "PAYMENT"
)

// Keys used by the integration hooks.
const (
	KeyInvoiceReceivable = "ar.invoice.receivable"
	KeyInvoiceRevenue    = "ar.invoice.revenue"
	KeyInvoiceTax        = "ar.invoice.tax"
	KeyInvoiceDiscount   = "ar.invoice.discount"
	KeyPaymentCash       = "payment.cash"
	KeyBillPayable       = "ap.bill.payable"
)

// AccountMapping links integration keys to ledger accounts.
type AccountMapping struct {
	Module    string    `json:"module" yaml:"module"`
	Key       string    `json:"key" yaml:"key"`
	AccountID string    `json:"accountId" yaml:"accountId"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// DocID renders the mapping document id.
func DocID(module, key string) string {
	return strings.ToUpper(module) + ":" + key
}
