package dto

import (
	"github.com/shopspring/decimal"
	domainInvoice "github.com/vidinfra/subflow/internal/domain/invoice"
	"github.com/vidinfra/subflow/internal/types"
	"github.com/vidinfra/subflow/internal/validator"
)

type ProcessPaymentRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
	TransactionID string `json:"transaction_id" validate:"required"`
}

func (r *ProcessPaymentRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type InvoiceResponse struct {
	*domainInvoice.Invoice
}

// ListInvoicesResponse represents a paginated invoice listing
type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]

// BillingStatisticsResponse summarizes invoicing health for a tenant
type BillingStatisticsResponse struct {
	TotalInvoices   int             `json:"total_invoices"`
	PaidInvoices    int             `json:"paid_invoices"`
	PendingInvoices int             `json:"pending_invoices"`
	FailedInvoices  int             `json:"failed_invoices"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	PendingRevenue  decimal.Decimal `json:"pending_revenue"`
	// CollectionRate is paid invoices over all invoices, as a percentage
	CollectionRate decimal.Decimal `json:"collection_rate"`
}
