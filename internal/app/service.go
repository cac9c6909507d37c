package app

import (
	"context"

	"billing-agent/internal/core"
)

// ApplicationService is the single interface UI adapters (CLI today) call.
// It decouples presentation from the batch engines; implementations contain
// no display logic.
type ApplicationService interface {
	// RunInvoiceBatch invoices the pending orders in scope. In dry-run
	// mode no ledger document is created and no order status changes;
	// the would-be invoice payloads are returned instead.
	RunInvoiceBatch(ctx context.Context, req InvoiceBatchRequest) (*core.InvoiceBatchResult, error)

	// RunReconcileBatch reconciles settlement payouts against invoices
	// for one settlement or all of them.
	RunReconcileBatch(ctx context.Context, req ReconcileBatchRequest) (*core.ReconcileBatchResult, error)

	// ListOrders returns orders, optionally filtered by status.
	ListOrders(ctx context.Context, req ListOrdersRequest) (*OrderListResult, error)
}
