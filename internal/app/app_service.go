package app

import (
	"context"
	"fmt"

	"billing-agent/internal/core"
)

type service struct {
	invoices   *core.InvoiceService
	reconciler *core.ReconcileService
	store      core.OrderStore
}

func NewService(invoices *core.InvoiceService, reconciler *core.ReconcileService, store core.OrderStore) ApplicationService {
	return &service{invoices: invoices, reconciler: reconciler, store: store}
}

func (s *service) RunInvoiceBatch(ctx context.Context, req InvoiceBatchRequest) (*core.InvoiceBatchResult, error) {
	return s.invoices.Run(ctx, core.InvoiceBatchOptions{
		Scope: core.BatchScope{
			OrderIDs: req.OrderIDs,
			Limit:    req.Limit,
		},
		DryRun:  req.DryRun,
		Workers: req.Workers,
	})
}

func (s *service) RunReconcileBatch(ctx context.Context, req ReconcileBatchRequest) (*core.ReconcileBatchResult, error) {
	return s.reconciler.Run(ctx, core.ReconcileBatchOptions{
		SettlementID: req.SettlementID,
		DryRun:       req.DryRun,
		Workers:      req.Workers,
	})
}

func (s *service) ListOrders(ctx context.Context, req ListOrdersRequest) (*OrderListResult, error) {
	var status *core.OrderStatus
	if req.Status != "" {
		st := core.OrderStatus(req.Status)
		switch st {
		case core.OrderStatusPending, core.OrderStatusInvoiced, core.OrderStatusSkipped, core.OrderStatusError:
			status = &st
		default:
			return nil, fmt.Errorf("unknown order status %q", req.Status)
		}
	}

	orders, err := s.store.ListOrders(ctx, status, req.Limit)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders}, nil
}
