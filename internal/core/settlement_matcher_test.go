package core_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"billing-agent/internal/core"
)

func TestSettlementMatcher_PrefersExistingLinks(t *testing.T) {
	store := newFakeStore()
	store.linkedIDs["S1"] = []string{"O1", "O2"}
	// No settlement row at all: with links present the payload is never read.
	matcher := core.NewSettlementMatcher(store, zap.NewNop())

	ids, err := matcher.OrderIDs(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"O1", "O2"}, ids)
}

func TestSettlementMatcher_FallsBackToTransactionScan(t *testing.T) {
	store := newFakeStore()
	store.settlements["S1"] = &core.Settlement{
		SettlementID: "S1",
		Transactions: []core.SettlementTransaction{
			{Type: core.TxTypeOrder, OrderID: "O1", Amount: decimal.NewFromInt(50)},
			{Type: "FEE", OrderID: "", Amount: decimal.NewFromInt(-3)},
			{Type: core.TxTypeRefund, OrderID: "O2", Amount: decimal.NewFromInt(-10)},
			{Type: core.TxTypeChargeback, OrderID: "O3", Amount: decimal.NewFromInt(-50)},
			{Type: core.TxTypeOrder, OrderID: "O1", Amount: decimal.NewFromInt(25)},
			{Type: "SERVICE_FEE", OrderID: "O9", Amount: decimal.NewFromInt(-1)},
		},
	}
	matcher := core.NewSettlementMatcher(store, zap.NewNop())

	ids, err := matcher.OrderIDs(context.Background(), "S1")
	require.NoError(t, err)

	// Unique, first-seen order; fee rows carry no order even when tagged.
	assert.Equal(t, []string{"O1", "O2", "O3"}, ids)
	assert.Equal(t, []string{"O1", "O2", "O3"}, store.backfills["S1"])

	// A second call is served from the back-filled links.
	again, err := matcher.OrderIDs(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, ids, again)
}

func TestSettlementMatcher_BackfillFailureDoesNotBlock(t *testing.T) {
	store := newFakeStore()
	store.backfillErr = fmt.Errorf("settlement S1 is not ingested")
	store.settlements["S1"] = &core.Settlement{
		SettlementID: "S1",
		Transactions: []core.SettlementTransaction{
			{Type: core.TxTypeOrder, OrderID: "O1", Amount: decimal.NewFromInt(50)},
		},
	}
	matcher := core.NewSettlementMatcher(store, zap.NewNop())

	ids, err := matcher.OrderIDs(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"O1"}, ids)
}

func TestSettlementMatcher_UnknownSettlement(t *testing.T) {
	matcher := core.NewSettlementMatcher(newFakeStore(), zap.NewNop())

	_, err := matcher.OrderIDs(context.Background(), "MISSING")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING")
}
