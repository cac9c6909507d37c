package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the per-item failure taxonomy. Batch drivers convert
// these into tagged item outcomes; they are never raised past a batch.
var (
	// ErrNotInvoiceable marks an order that is structurally not
	// invoiceable (marketplace-collected VAT, no items, zero total).
	// Expected, results in a SKIPPED order.
	ErrNotInvoiceable = errors.New("order is not invoiceable")

	// ErrRegimeUnresolved means classification was indeterminate. The
	// order must be stopped for manual review, never defaulted to any
	// tax treatment.
	ErrRegimeUnresolved = errors.New("tax regime could not be resolved")

	// ErrLookupNotFound means an expected record (invoice, line, cache
	// entry) is absent from the ledger.
	ErrLookupNotFound = errors.New("ledger record not found")

	// ErrAlreadyTerminal marks an item that is already in a terminal
	// state; re-running over it is a no-op success.
	ErrAlreadyTerminal = errors.New("item already in terminal state")
)

// RemoteOpError wraps a failed remote ledger call (create, write, post,
// reconcile, search). It carries the operation and model for diagnostics.
type RemoteOpError struct {
	Op    string
	Model string
	Err   error
}

func (e *RemoteOpError) Error() string {
	return fmt.Sprintf("ledger %s on %s failed: %v", e.Op, e.Model, e.Err)
}

func (e *RemoteOpError) Unwrap() error { return e.Err }

// remoteErr is a shorthand used by the batch services.
func remoteErr(op, model string, err error) *RemoteOpError {
	return &RemoteOpError{Op: op, Model: model, Err: err}
}
