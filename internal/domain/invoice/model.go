package invoice

import (
	"time"

	"github.com/shopspring/decimal"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
)

// Invoice represents the invoice domain model. Invoices are created only by
// the billing engine and mutated only through payment and failure
// operations.
type Invoice struct {
	ID             string              `db:"id" json:"id"`
	SubscriptionID string              `db:"subscription_id" json:"subscription_id"`
	CustomerID     string              `db:"customer_id" json:"customer_id"`
	InvoiceNumber  string              `db:"invoice_number" json:"invoice_number"`
	Currency       string              `db:"currency" json:"currency"`
	Subtotal       decimal.Decimal     `db:"subtotal" json:"subtotal"`
	Tax            decimal.Decimal     `db:"tax" json:"tax"`
	Total          decimal.Decimal     `db:"total" json:"total"`
	InvoiceStatus  types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`
	IssueDate      time.Time           `db:"issue_date" json:"issue_date"`
	DueDate        time.Time           `db:"due_date" json:"due_date"`
	PaidAt         *time.Time          `db:"paid_at" json:"paid_at,omitempty"`
	PaymentMethod  string              `db:"payment_method" json:"payment_method,omitempty"`
	TransactionID  string              `db:"transaction_id" json:"transaction_id,omitempty"`
	LineItems      []*LineItem         `json:"line_items,omitempty"`
	types.BaseModel
}

// LineItem is one ordered charge on an invoice
type LineItem struct {
	ID          string                    `db:"id" json:"id"`
	InvoiceID   string                    `db:"invoice_id" json:"invoice_id"`
	Type        types.InvoiceLineItemType `db:"type" json:"type"`
	Description string                    `db:"description" json:"description"`
	Quantity    decimal.Decimal           `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal           `db:"unit_price" json:"unit_price"`
	Amount      decimal.Decimal           `db:"amount" json:"amount"`
	PeriodStart *time.Time                `db:"period_start" json:"period_start,omitempty"`
	PeriodEnd   *time.Time                `db:"period_end" json:"period_end,omitempty"`
	types.BaseModel
}

// Validate checks the invoice's internal consistency
func (i *Invoice) Validate() error {
	if i.Subtotal.IsNegative() {
		return ierr.NewError("subtotal must be non negative").
			WithHint("Invoice subtotal can not be negative").
			Mark(ierr.ErrValidation)
	}
	if i.Tax.IsNegative() {
		return ierr.NewError("tax must be non negative").
			WithHint("Invoice tax can not be negative").
			Mark(ierr.ErrValidation)
	}
	if !i.Total.Equal(i.Subtotal.Add(i.Tax)) {
		return ierr.NewError("total must equal subtotal plus tax").
			WithHint("Invoice total does not add up").
			WithReportableDetails(map[string]any{
				"subtotal": i.Subtotal,
				"tax":      i.Tax,
				"total":    i.Total,
			}).
			Mark(ierr.ErrValidation)
	}
	if i.DueDate.Before(i.IssueDate) {
		return ierr.NewError("due date before issue date").
			WithHint("Invoice due date must not precede its issue date").
			Mark(ierr.ErrValidation)
	}
	return nil
}
