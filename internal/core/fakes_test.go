package core_test

import (
	"context"
	"fmt"
	"sync"

	"billing-agent/internal/core"
)

// fakeLedger is a scriptable core.LedgerClient. Reads are answered by the
// search hook; every mutating call is recorded so tests can assert dry-run
// makes none.
type fakeLedger struct {
	mu sync.Mutex

	searchFn  func(model string, filter []core.Condition) ([]core.Record, error)
	createFn  func(model string, values map[string]any) (int64, error)
	executeFn func(model, method string, ids []int64) error

	creates  []map[string]any
	writes   []map[string]any
	executes []executedCall
}

type executedCall struct {
	Model  string
	Method string
	IDs    []int64
}

func (f *fakeLedger) SearchRead(_ context.Context, model string, filter []core.Condition, _ []string, _ int) ([]core.Record, error) {
	if f.searchFn == nil {
		return nil, nil
	}
	return f.searchFn(model, filter)
}

func (f *fakeLedger) Create(_ context.Context, model string, values map[string]any) (int64, error) {
	f.mu.Lock()
	f.creates = append(f.creates, values)
	f.mu.Unlock()
	if f.createFn == nil {
		return 1, nil
	}
	return f.createFn(model, values)
}

func (f *fakeLedger) Write(_ context.Context, _ string, _ []int64, values map[string]any) error {
	f.mu.Lock()
	f.writes = append(f.writes, values)
	f.mu.Unlock()
	return nil
}

func (f *fakeLedger) Execute(_ context.Context, model, method string, ids []int64) error {
	f.mu.Lock()
	f.executes = append(f.executes, executedCall{Model: model, Method: method, IDs: ids})
	f.mu.Unlock()
	if f.executeFn == nil {
		return nil
	}
	return f.executeFn(model, method, ids)
}

func (f *fakeLedger) mutatingCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.writes) + len(f.executes)
}

// condValue extracts the value of the first condition on a field, used by
// search hooks to branch on the queried filter.
func condValue(filter []core.Condition, field string) any {
	for _, c := range filter {
		if c.Field == field {
			return c.Value
		}
	}
	return nil
}

// fakeStore is an in-memory core.OrderStore.
type fakeStore struct {
	mu sync.Mutex

	orders      []*core.Order
	settlements map[string]*core.Settlement
	links       map[string][]core.SettlementLink
	linkedIDs   map[string][]string

	pendingErr  error
	backfillErr error
	upsertErr   error

	skipped   map[string]string
	errored   map[string]string
	upserts   []core.SettlementLink
	backfills map[string][]string
}

func newFakeStore(orders ...*core.Order) *fakeStore {
	return &fakeStore{
		orders:      orders,
		settlements: make(map[string]*core.Settlement),
		links:       make(map[string][]core.SettlementLink),
		linkedIDs:   make(map[string][]string),
		skipped:     make(map[string]string),
		errored:     make(map[string]string),
		backfills:   make(map[string][]string),
	}
}

func (f *fakeStore) PendingOrders(_ context.Context, scope core.BatchScope) ([]core.Order, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Order
	for _, o := range f.orders {
		if o.Status != core.OrderStatusPending {
			continue
		}
		if len(scope.OrderIDs) > 0 && !contains(scope.OrderIDs, o.OrderID) {
			continue
		}
		out = append(out, *o)
		if scope.Limit > 0 && len(out) == scope.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) ListOrders(_ context.Context, status *core.OrderStatus, limit int) ([]core.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Order
	for _, o := range f.orders {
		if status != nil && o.Status != *status {
			continue
		}
		out = append(out, *o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) find(orderID string) *core.Order {
	for _, o := range f.orders {
		if o.OrderID == orderID {
			return o
		}
	}
	return nil
}

func (f *fakeStore) MarkInvoiced(_ context.Context, orderID string, ledgerInvoiceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.find(orderID)
	if o == nil {
		return fmt.Errorf("order %s not found", orderID)
	}
	if o.Status != core.OrderStatusPending {
		return core.ErrAlreadyTerminal
	}
	o.Status = core.OrderStatusInvoiced
	o.LedgerInvoiceID = &ledgerInvoiceID
	return nil
}

func (f *fakeStore) MarkSkipped(_ context.Context, orderID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o := f.find(orderID); o != nil {
		o.Status = core.OrderStatusSkipped
		o.StatusReason = reason
	}
	f.skipped[orderID] = reason
	return nil
}

func (f *fakeStore) MarkError(_ context.Context, orderID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o := f.find(orderID); o != nil {
		o.Status = core.OrderStatusError
		o.StatusReason = reason
	}
	f.errored[orderID] = reason
	return nil
}

func (f *fakeStore) GetSettlement(_ context.Context, settlementID string) (*core.Settlement, error) {
	if s, ok := f.settlements[settlementID]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("settlement %s not found", settlementID)
}

func (f *fakeStore) SettlementIDs(_ context.Context) ([]string, error) {
	var ids []string
	for id := range f.settlements {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) LinkedOrderIDs(_ context.Context, settlementID string) ([]string, error) {
	return f.linkedIDs[settlementID], nil
}

func (f *fakeStore) Links(_ context.Context, settlementID string) ([]core.SettlementLink, error) {
	return f.links[settlementID], nil
}

func (f *fakeStore) UpsertLink(_ context.Context, link core.SettlementLink) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, link)
	return nil
}

func (f *fakeStore) BackfillLinks(_ context.Context, settlementID string, orderIDs []string) error {
	if f.backfillErr != nil {
		return f.backfillErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backfills[settlementID] = orderIDs
	f.linkedIDs[settlementID] = append(f.linkedIDs[settlementID], orderIDs...)
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
