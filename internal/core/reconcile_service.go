package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconcileBatchOptions configures one reconciliation run.
// SettlementID empty means all known settlements.
type ReconcileBatchOptions struct {
	SettlementID string
	DryRun       bool
	Workers      int // <= 1 means sequential
}

// ReconcileService matches settlement payouts to invoices in the ledger.
// Per (settlement, order) pair it locates the invoice by external
// reference, posts it if still draft, finds the unreconciled credit
// counterpart on the same receivable account, and invokes the ledger's
// native reconciliation over the union of line ids. The ledger, not this
// engine, decides full vs partial settlement via residual bookkeeping.
type ReconcileService struct {
	store   OrderStore
	ledger  LedgerClient
	matcher *SettlementMatcher
	log     *zap.Logger
}

func NewReconcileService(store OrderStore, ledger LedgerClient, matcher *SettlementMatcher, log *zap.Logger) *ReconcileService {
	return &ReconcileService{store: store, ledger: ledger, matcher: matcher, log: log}
}

// Run executes one reconciliation batch over one or all settlements.
// A single pair's failure never aborts the batch; only the inability to
// enumerate the working set is fatal.
func (s *ReconcileService) Run(ctx context.Context, opts ReconcileBatchOptions) (*ReconcileBatchResult, error) {
	var settlementIDs []string
	if opts.SettlementID != "" {
		settlementIDs = []string{opts.SettlementID}
	} else {
		ids, err := s.store.SettlementIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list settlements: %w", err)
		}
		settlementIDs = ids
	}

	result := &ReconcileBatchResult{
		RunID:  uuid.New(),
		DryRun: opts.DryRun,
	}
	s.log.Info("starting reconciliation batch",
		zap.String("run_id", result.RunID.String()),
		zap.Int("settlements", len(settlementIDs)),
		zap.Bool("dry_run", opts.DryRun))

	for _, settlementID := range settlementIDs {
		items, err := s.runSettlement(ctx, settlementID, opts)
		if err != nil {
			if opts.SettlementID != "" {
				// The only requested settlement could not be resolved:
				// there is no working set at all.
				return nil, err
			}
			result.Items = append(result.Items, ReconcileItemResult{
				SettlementID: settlementID,
				Outcome:      OutcomeError,
				Reason:       err.Error(),
			})
			continue
		}
		result.Items = append(result.Items, items...)
	}

	for _, item := range result.Items {
		result.Processed++
		switch item.Outcome {
		case OutcomeReconciled:
			result.Reconciled++
		case OutcomeMatched:
			result.Matched++
		case OutcomeAlreadyReconciled:
			result.AlreadyReconciled++
		case OutcomeUnmatched:
			result.Unmatched++
		case OutcomeError:
			result.Errors++
		}
	}

	s.log.Info("reconciliation batch finished",
		zap.String("run_id", result.RunID.String()),
		zap.Int("processed", result.Processed),
		zap.Int("reconciled", result.Reconciled),
		zap.Int("matched", result.Matched),
		zap.Int("already_reconciled", result.AlreadyReconciled),
		zap.Int("unmatched", result.Unmatched),
		zap.Int("errors", result.Errors))
	return result, nil
}

// runSettlement processes every (settlement, order) pair of one settlement.
// Pairs whose link is already reconciled are skipped without ledger calls.
func (s *ReconcileService) runSettlement(ctx context.Context, settlementID string, opts ReconcileBatchOptions) ([]ReconcileItemResult, error) {
	orderIDs, err := s.matcher.OrderIDs(ctx, settlementID)
	if err != nil {
		return nil, err
	}

	links, err := s.store.Links(ctx, settlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load links for settlement %s: %w", settlementID, err)
	}
	reconciled := make(map[string]bool, len(links))
	for _, l := range links {
		if l.Reconciled {
			reconciled[l.OrderID] = true
		}
	}

	return forEachBounded(ctx, opts.Workers, orderIDs, func(ctx context.Context, orderID string) ReconcileItemResult {
		if reconciled[orderID] {
			return ReconcileItemResult{
				SettlementID: settlementID,
				OrderID:      orderID,
				Outcome:      OutcomeAlreadyReconciled,
				Reason:       "link already reconciled",
			}
		}
		return s.reconcilePair(ctx, settlementID, orderID, opts.DryRun)
	}), nil
}

// reconcilePair runs the full lookup → post → reconcile sequence for one
// pair as an uninterrupted unit. Any ledger failure yields outcome error
// and leaves the link unreconciled for retry.
func (s *ReconcileService) reconcilePair(ctx context.Context, settlementID, orderID string, dryRun bool) ReconcileItemResult {
	item := ReconcileItemResult{SettlementID: settlementID, OrderID: orderID}

	// 1. Locate the invoice (or credit note) by external reference.
	invoices, err := s.ledger.SearchRead(ctx, ModelInvoice,
		[]Condition{
			Eq("ref", orderID),
			In("move_type", []string{"out_invoice", "out_refund"}),
		},
		[]string{"id", "state", "name"}, 0)
	if err != nil {
		item.Outcome = OutcomeError
		item.Reason = remoteErr("search_read", ModelInvoice, err).Error()
		return item
	}
	if len(invoices) == 0 {
		item.Outcome = OutcomeUnmatched
		item.Reason = fmt.Sprintf("no invoice with ref %s: %v", orderID, ErrLookupNotFound)
		return item
	}

	// Duplicates: prefer a posted document.
	invoice := invoices[0]
	for _, candidate := range invoices {
		if candidate.Str("state") == "posted" {
			invoice = candidate
			break
		}
	}
	invoiceID := invoice.ID()
	item.InvoiceID = invoiceID

	// 2. Receivable debit lines of the invoice.
	recvLines, err := s.ledger.SearchRead(ctx, ModelInvoiceLine,
		[]Condition{
			Eq("move_id", invoiceID),
			Eq("account_type", "asset_receivable"),
		},
		[]string{"id", "account_id", "reconciled", "debit", "credit"}, 0)
	if err != nil {
		item.Outcome = OutcomeError
		item.Reason = remoteErr("search_read", ModelInvoiceLine, err).Error()
		return item
	}
	if len(recvLines) == 0 {
		item.Outcome = OutcomeUnmatched
		item.Reason = s.diagnoseMissingLines(ctx, invoiceID)
		return item
	}

	var debitIDs, openDebitIDs []int64
	var accountID int64
	for _, line := range recvLines {
		if line.Float64("debit") <= 0 {
			continue
		}
		debitIDs = append(debitIDs, line.ID())
		accountID = line.RefID("account_id")
		if !line.Bool("reconciled") {
			openDebitIDs = append(openDebitIDs, line.ID())
		}
	}
	if len(debitIDs) == 0 {
		item.Outcome = OutcomeUnmatched
		item.Reason = "receivable lines carry no debit (credit note without counterpart?)"
		return item
	}
	if len(openDebitIDs) == 0 {
		// Ledger already settled this invoice; persist the link so
		// re-runs skip the pair cheaply.
		item.Outcome = OutcomeAlreadyReconciled
		item.Reason = "all receivable debit lines already reconciled"
		if !dryRun {
			if err := s.persistLink(ctx, settlementID, orderID, invoiceID); err != nil {
				item.Outcome = OutcomeError
				item.Reason = err.Error()
			}
		}
		return item
	}

	// 3. Post the invoice if still draft.
	if invoice.Str("state") == "draft" {
		item.Posted = true
		if !dryRun {
			if err := s.ledger.Execute(ctx, ModelInvoice, MethodPost, []int64{invoiceID}); err != nil {
				item.Outcome = OutcomeError
				item.Posted = false
				item.Reason = remoteErr(MethodPost, ModelInvoice, err).Error()
				return item
			}
		}
	}

	// 4. Credit counterpart on the same receivable account, belonging to
	// a different document (the settlement's payout entry).
	creditLines, err := s.ledger.SearchRead(ctx, ModelInvoiceLine,
		[]Condition{
			Eq("account_id", accountID),
			Eq("reconciled", false),
			{Field: "credit", Op: ">", Value: 0},
			{Field: "move_id", Op: "!=", Value: invoiceID},
		},
		[]string{"id", "move_id"}, 0)
	if err != nil {
		item.Outcome = OutcomeError
		item.Reason = remoteErr("search_read", ModelInvoiceLine, err).Error()
		return item
	}
	if len(creditLines) == 0 {
		// Legitimate wait state: the payout entry may not be booked yet.
		item.Outcome = OutcomeMatched
		item.Reason = "no credit counterpart on receivable account yet"
		return item
	}

	creditIDs := make([]int64, 0, len(creditLines))
	for _, line := range creditLines {
		creditIDs = append(creditIDs, line.ID())
	}

	if dryRun {
		item.Outcome = OutcomeReconciled
		item.Reason = fmt.Sprintf("dry-run: would reconcile %d debit and %d credit line(s)",
			len(openDebitIDs), len(creditIDs))
		return item
	}

	// 5. Ledger-native reconciliation over debit ∪ credit line ids. The
	// ledger computes residuals and decides full vs partial settlement.
	if err := s.ledger.Execute(ctx, ModelInvoiceLine, MethodReconcile, append(openDebitIDs, creditIDs...)); err != nil {
		item.Outcome = OutcomeError
		item.Reason = remoteErr(MethodReconcile, ModelInvoiceLine, err).Error()
		return item
	}

	// 6. Persist the linkage.
	if err := s.persistLink(ctx, settlementID, orderID, invoiceID); err != nil {
		item.Outcome = OutcomeError
		item.Reason = err.Error()
		return item
	}

	s.log.Debug("pair reconciled",
		zap.String("settlement_id", settlementID),
		zap.String("order_id", orderID),
		zap.Int64("invoice_id", invoiceID),
		zap.Bool("posted", item.Posted))
	item.Outcome = OutcomeReconciled
	return item
}

// diagnoseMissingLines distinguishes "invoice posted to the wrong account"
// from "invoice has no lines at all" when no receivable lines were found.
func (s *ReconcileService) diagnoseMissingLines(ctx context.Context, invoiceID int64) string {
	lines, err := s.ledger.SearchRead(ctx, ModelInvoiceLine,
		[]Condition{Eq("move_id", invoiceID)}, []string{"id"}, 1)
	if err != nil || len(lines) == 0 {
		return fmt.Sprintf("invoice %d has no journal lines: %v", invoiceID, ErrLookupNotFound)
	}
	return fmt.Sprintf("invoice %d has lines but none on a receivable account (wrong account?)", invoiceID)
}

func (s *ReconcileService) persistLink(ctx context.Context, settlementID, orderID string, invoiceID int64) error {
	now := time.Now()
	link := SettlementLink{
		SettlementID:    settlementID,
		OrderID:         orderID,
		Reconciled:      true,
		LedgerInvoiceID: &invoiceID,
		ReconciledAt:    &now,
	}
	if err := s.store.UpsertLink(ctx, link); err != nil {
		return fmt.Errorf("reconciled in ledger but failed to persist link %s/%s: %w",
			settlementID, orderID, err)
	}
	return nil
}
