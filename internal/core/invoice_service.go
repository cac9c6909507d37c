package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reasons recorded on skipped orders.
const (
	SkipReasonNotInvoiceable = "Not invoiceable"
	SkipReasonNoItems        = "No line items"
	SkipReasonZeroTotal      = "Zero order total"
)

// InvoiceBatchOptions configures one invoicing run.
type InvoiceBatchOptions struct {
	Scope   BatchScope
	DryRun  bool
	Workers int // <= 1 means sequential
}

// InvoiceService drives the pending-order invoicing batch: skip filter →
// regime resolution → build → ledger create → status update, with per-order
// error isolation. Re-running after a partial failure is safe because only
// PENDING orders are selected; no extra de-duplication bookkeeping exists.
type InvoiceService struct {
	store       OrderStore
	ledger      LedgerClient
	cache       *RefCache
	homeCountry string
	journalCode string
	log         *zap.Logger
}

func NewInvoiceService(store OrderStore, ledger LedgerClient, cache *RefCache, homeCountry, journalCode string, log *zap.Logger) *InvoiceService {
	return &InvoiceService{
		store:       store,
		ledger:      ledger,
		cache:       cache,
		homeCountry: homeCountry,
		journalCode: journalCode,
		log:         log,
	}
}

// skipReason returns the structural non-invoiceability reason for an order,
// checked before any ledger call.
func skipReason(o *Order) (string, bool) {
	switch {
	case o.TaxScheme.MarketplaceCollected():
		return SkipReasonNotInvoiceable, true
	case len(o.Items) == 0:
		return SkipReasonNoItems, true
	case !o.TotalIncl.IsPositive():
		return SkipReasonZeroTotal, true
	}
	return "", false
}

// Run executes one invoicing batch. The returned summary is always
// produced; only failure to acquire the working set is fatal.
func (s *InvoiceService) Run(ctx context.Context, opts InvoiceBatchOptions) (*InvoiceBatchResult, error) {
	orders, err := s.store.PendingOrders(ctx, opts.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending orders: %w", err)
	}

	result := &InvoiceBatchResult{
		RunID:  uuid.New(),
		DryRun: opts.DryRun,
	}
	s.log.Info("starting invoice batch",
		zap.String("run_id", result.RunID.String()),
		zap.Int("orders", len(orders)),
		zap.Bool("dry_run", opts.DryRun))

	result.Items = forEachBounded(ctx, opts.Workers, orders, func(ctx context.Context, o Order) InvoiceItemResult {
		return s.processOrder(ctx, &o, opts.DryRun)
	})

	for _, item := range result.Items {
		result.Processed++
		switch item.Outcome {
		case OutcomeCreated:
			result.Created++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeError:
			result.Errors++
		}
	}

	s.log.Info("invoice batch finished",
		zap.String("run_id", result.RunID.String()),
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors))
	return result, nil
}

// processOrder handles a single order as one uninterrupted unit. Failures
// are converted into the item result and never abort the batch.
func (s *InvoiceService) processOrder(ctx context.Context, o *Order, dryRun bool) InvoiceItemResult {
	item := InvoiceItemResult{OrderID: o.OrderID}

	if reason, skip := skipReason(o); skip {
		item.Outcome = OutcomeSkipped
		item.Reason = reason
		if dryRun {
			return item
		}
		if err := s.store.MarkSkipped(ctx, o.OrderID, reason); err != nil {
			item.Outcome = OutcomeError
			item.Reason = fmt.Sprintf("failed to mark order skipped: %v", err)
		}
		return item
	}

	regime := ResolveRegime(o, s.homeCountry)
	if regime.Kind == RegimeUnresolved {
		// Never default a tax treatment. Park the order for review.
		item.Outcome = OutcomeError
		item.Reason = fmt.Sprintf("%v: ship %s → %s, scheme %s",
			ErrRegimeUnresolved, o.ShipFrom, o.ShipTo, o.TaxScheme)
		if !dryRun {
			if err := s.store.MarkError(ctx, o.OrderID, item.Reason); err != nil {
				s.log.Warn("failed to persist unresolved-regime error",
					zap.String("order_id", o.OrderID), zap.Error(err))
			}
		}
		return item
	}

	doc, err := BuildInvoice(o, regime, s.cache, s.journalCode)
	if err != nil {
		item.Outcome = OutcomeError
		item.Reason = err.Error()
		return item
	}

	if dryRun {
		item.Outcome = OutcomeCreated
		item.Reason = "dry-run: invoice not created"
		item.Payload = doc
		return item
	}

	invoiceID, err := s.ledger.Create(ctx, ModelInvoice, doc.LedgerValues())
	if err != nil {
		// Order stays PENDING for retry on the next run.
		item.Outcome = OutcomeError
		item.Reason = remoteErr("create", ModelInvoice, err).Error()
		s.log.Warn("invoice creation failed",
			zap.String("order_id", o.OrderID), zap.Error(err))
		return item
	}

	if err := s.store.MarkInvoiced(ctx, o.OrderID, invoiceID); err != nil {
		// Invoice exists in the ledger but the order is still PENDING;
		// the next run will surface it as a duplicate ref for review.
		item.Outcome = OutcomeError
		item.Reason = fmt.Sprintf("invoice %d created but status update failed: %v", invoiceID, err)
		return item
	}

	s.log.Debug("invoice created",
		zap.String("order_id", o.OrderID),
		zap.Int64("invoice_id", invoiceID),
		zap.String("regime", regime.String()))
	item.Outcome = OutcomeCreated
	item.LedgerInvoiceID = invoiceID
	return item
}
