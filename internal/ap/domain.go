package ap

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
)

// Collection holds vendor bill documents.
const Collection = "bills"

// Bill is a vendor invoice. It uses the same line math and settlement
// tracking as customer invoices.
type Bill struct {
	ID         string    `json:"billId"`
	Number     string    `json:"billNumber"`
	VendorID   string    `json:"vendorId,omitempty"`
	VendorName string    `json:"vendorName,omitempty"`
	Currency   string    `json:"currency"`
	IssueDate  time.Time `json:"issueDate"`
	DueDate    time.Time `json:"dueDate"`
	Items      []ar.Item `json:"items"`
	ar.Totals
	ar.Settlement
	Status    ar.DocumentStatus `json:"status"`
	CreatedBy string            `json:"createdBy,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// ApplyPayment records a payment and refreshes the status.
func (b *Bill) ApplyPayment(p ar.PaymentRecord) {
	b.Settlement.Apply(b.TotalAmount, p)
	b.Status = b.Settlement.Status(b.Status)
}

// BillInput captures a vendor bill.
type BillInput struct {
	ID         string    `json:"billId" validate:"omitempty,max=64,excludesall=/"`
	Number     string    `json:"billNumber" validate:"omitempty,max=64"`
	VendorID   string    `json:"vendorId" validate:"omitempty,max=64"`
	VendorName string    `json:"vendorName" validate:"omitempty,max=200"`
	Currency   string    `json:"currency" validate:"omitempty,len=3"`
	IssueDate  time.Time `json:"issueDate"`
	DueDate    time.Time `json:"dueDate"`
	Items      []ar.Item `json:"items" validate:"required,min=1"`
	CreatedBy  string    `json:"createdBy"`
}
