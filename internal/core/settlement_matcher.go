package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SettlementMatcher resolves the order ids economically tied to a
// settlement. It prefers the pre-materialized settlement_orders links and
// falls back to scanning the settlement's embedded transaction list,
// back-filling the links for future runs.
type SettlementMatcher struct {
	store OrderStore
	log   *zap.Logger
}

func NewSettlementMatcher(store OrderStore, log *zap.Logger) *SettlementMatcher {
	return &SettlementMatcher{store: store, log: log}
}

// orderBearing reports whether a transaction type references an order.
func orderBearing(txType string) bool {
	switch txType {
	case TxTypeOrder, TxTypeRefund, TxTypeChargeback:
		return true
	}
	return false
}

// OrderIDs returns the unique order ids for a settlement, in first-seen
// order. On first fallback use the normalized links are back-filled;
// a back-fill failure is logged and never blocks the current run.
func (m *SettlementMatcher) OrderIDs(ctx context.Context, settlementID string) ([]string, error) {
	linked, err := m.store.LinkedOrderIDs(ctx, settlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlement links for %s: %w", settlementID, err)
	}
	if len(linked) > 0 {
		return linked, nil
	}

	settlement, err := m.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlement %s: %w", settlementID, err)
	}

	seen := make(map[string]bool)
	var orderIDs []string
	for _, tx := range settlement.Transactions {
		if !orderBearing(tx.Type) || tx.OrderID == "" || seen[tx.OrderID] {
			continue
		}
		seen[tx.OrderID] = true
		orderIDs = append(orderIDs, tx.OrderID)
	}

	if len(orderIDs) > 0 {
		if err := m.store.BackfillLinks(ctx, settlementID, orderIDs); err != nil {
			m.log.Warn("settlement link backfill failed, continuing with scanned ids",
				zap.String("settlement_id", settlementID), zap.Error(err))
		}
	}

	return orderIDs, nil
}
