package core

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// BatchScope restricts a batch to explicit order ids and/or a numeric
// limit. The zero value means "everything pending".
type BatchScope struct {
	OrderIDs []string
	Limit    int
}

// Outcome tags the terminal result of one batch item.
type Outcome string

const (
	OutcomeCreated           Outcome = "created"
	OutcomeSkipped           Outcome = "skipped"
	OutcomeError             Outcome = "error"
	OutcomeUnmatched         Outcome = "unmatched"
	OutcomeMatched           Outcome = "matched"
	OutcomeReconciled        Outcome = "reconciled"
	OutcomeAlreadyReconciled Outcome = "already_reconciled"
)

// InvoiceItemResult is the per-order detail of an invoicing batch.
type InvoiceItemResult struct {
	OrderID         string      `json:"order_id"`
	Outcome         Outcome     `json:"outcome"`
	Reason          string      `json:"reason,omitempty"`
	LedgerInvoiceID int64       `json:"ledger_invoice_id,omitempty"`
	Payload         *InvoiceDoc `json:"payload,omitempty"` // dry-run only
}

// InvoiceBatchResult aggregates one invoicing run. The summary is always
// produced, even when individual orders errored.
type InvoiceBatchResult struct {
	RunID     uuid.UUID           `json:"run_id"`
	DryRun    bool                `json:"dry_run"`
	Processed int                 `json:"processed"`
	Created   int                 `json:"created"`
	Skipped   int                 `json:"skipped"`
	Errors    int                 `json:"errors"`
	Items     []InvoiceItemResult `json:"items"`
}

// ReconcileItemResult is the per-pair detail of a reconciliation batch.
type ReconcileItemResult struct {
	SettlementID string  `json:"settlement_id"`
	OrderID      string  `json:"order_id"`
	Outcome      Outcome `json:"outcome"`
	Reason       string  `json:"reason,omitempty"`
	Posted       bool    `json:"posted,omitempty"` // draft invoice was (or would be) posted
	InvoiceID    int64   `json:"invoice_id,omitempty"`
}

// ReconcileBatchResult aggregates one reconciliation run.
type ReconcileBatchResult struct {
	RunID             uuid.UUID             `json:"run_id"`
	DryRun            bool                  `json:"dry_run"`
	Processed         int                   `json:"processed"`
	Reconciled        int                   `json:"reconciled"`
	Matched           int                   `json:"matched"`
	AlreadyReconciled int                   `json:"already_reconciled"`
	Unmatched         int                   `json:"unmatched"`
	Errors            int                   `json:"errors"`
	Items             []ReconcileItemResult `json:"items"`
}

// forEachBounded runs fn over items with at most workers goroutines,
// preserving input order in the result slice. Each item's fn call is one
// uninterrupted unit; items have no data dependency on each other.
// workers <= 1 degenerates to a plain sequential loop, the default for
// clear audit ordering.
func forEachBounded[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) R) []R {
	results := make([]R, len(items))
	if workers <= 1 {
		for i, item := range items {
			results[i] = fn(ctx, item)
		}
		return results
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = fn(ctx, item)
		}(i, item)
	}
	wg.Wait()
	return results
}
