package app

// InvoiceBatchRequest configures one invoicing run.
type InvoiceBatchRequest struct {
	DryRun   bool
	OrderIDs []string // empty means all pending
	Limit    int      // 0 means no limit
	Workers  int      // <= 1 means sequential
}

// ReconcileBatchRequest configures one reconciliation run.
type ReconcileBatchRequest struct {
	DryRun       bool
	SettlementID string // empty means all settlements
	Workers      int
}

// ListOrdersRequest filters the order listing.
type ListOrdersRequest struct {
	Status string // empty means any
	Limit  int
}
