package core

import "context"

// Ledger model and method names used by the billing core. The external
// ledger exposes an ORM-style RPC surface keyed by model name.
const (
	ModelInvoice        = "account.move"
	ModelInvoiceLine    = "account.move.line"
	ModelFiscalPosition = "account.fiscal.position"
	ModelJournal        = "account.journal"
	ModelCurrency       = "res.currency"

	MethodPost      = "action_post"
	MethodReconcile = "reconcile"
)

// Condition is one filter triplet of a ledger search domain,
// e.g. {"ref", "=", "702-1837412"} or {"state", "in", []string{...}}.
type Condition struct {
	Field string
	Op    string
	Value any
}

// Eq builds an equality condition.
func Eq(field string, value any) Condition { return Condition{Field: field, Op: "=", Value: value} }

// In builds a set-membership condition.
func In(field string, values any) Condition {
	return Condition{Field: field, Op: "in", Value: values}
}

// Record is one row returned by a ledger read. Values arrive JSON-decoded:
// numbers as float64, absent/null fields as false (ledger convention).
type Record map[string]any

// ID returns the record's id field.
func (r Record) ID() int64 { return r.Int64("id") }

// Int64 reads a numeric field, tolerating the JSON float64 decoding.
func (r Record) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Float64 reads a numeric field as float64.
func (r Record) Float64(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Str reads a string field; null fields (decoded as false) yield "".
func (r Record) Str(key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

// Bool reads a boolean field.
func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// RefID reads a many-to-one field, which the ledger serializes as
// [id, display_name]. A null relation (false) yields 0.
func (r Record) RefID(key string) int64 {
	if v, ok := r[key].([]any); ok {
		if len(v) == 0 {
			return 0
		}
		switch id := v[0].(type) {
		case float64:
			return int64(id)
		case int64:
			return id
		case int:
			return int64(id)
		}
		return 0
	}
	return r.Int64(key)
}

// LedgerClient is the port to the external accounting ledger. The wire
// implementation lives in internal/ledger; the core only issues filtered
// reads, document creation, field writes, and named remote operations.
type LedgerClient interface {
	// SearchRead returns records of model matching all conditions, with
	// the requested fields. limit <= 0 means no limit.
	SearchRead(ctx context.Context, model string, filter []Condition, fields []string, limit int) ([]Record, error)

	// Create inserts one document and returns its ledger id.
	Create(ctx context.Context, model string, values map[string]any) (int64, error)

	// Write updates fields on the given documents.
	Write(ctx context.Context, model string, ids []int64, values map[string]any) error

	// Execute invokes a named remote operation (e.g. action_post,
	// reconcile) on the given record ids.
	Execute(ctx context.Context, model, method string, ids []int64) error
}

// OrderStore is the port to the order/settlement persistence layer.
// The Postgres implementation lives in internal/store.
type OrderStore interface {
	// PendingOrders returns orders in status PENDING restricted by the
	// scope (explicit order-id list and/or numeric limit), items loaded.
	PendingOrders(ctx context.Context, scope BatchScope) ([]Order, error)

	// ListOrders returns orders optionally filtered by status, newest first.
	ListOrders(ctx context.Context, status *OrderStatus, limit int) ([]Order, error)

	// MarkInvoiced atomically sets status INVOICED and the ledger
	// invoice id on one order.
	MarkInvoiced(ctx context.Context, orderID string, ledgerInvoiceID int64) error

	// MarkSkipped sets status SKIPPED with a reason.
	MarkSkipped(ctx context.Context, orderID, reason string) error

	// MarkError sets status ERROR with a reason (manual-review queue).
	MarkError(ctx context.Context, orderID, reason string) error

	// GetSettlement returns one settlement with its embedded transactions.
	GetSettlement(ctx context.Context, settlementID string) (*Settlement, error)

	// SettlementIDs returns all known settlement ids.
	SettlementIDs(ctx context.Context) ([]string, error)

	// LinkedOrderIDs returns the order ids already linked to a settlement.
	LinkedOrderIDs(ctx context.Context, settlementID string) ([]string, error)

	// Links returns all settlement-order links for a settlement.
	Links(ctx context.Context, settlementID string) ([]SettlementLink, error)

	// UpsertLink inserts or updates one settlement-order link.
	UpsertLink(ctx context.Context, link SettlementLink) error

	// BackfillLinks inserts unreconciled links for the given order ids,
	// ignoring pairs that already exist.
	BackfillLinks(ctx context.Context, settlementID string, orderIDs []string) error
}
