package core_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-agent/internal/core"
)

func TestLoadRefCache(t *testing.T) {
	ledger := &fakeLedger{
		searchFn: func(model string, _ []core.Condition) ([]core.Record, error) {
			switch model {
			case core.ModelFiscalPosition:
				return []core.Record{
					{"id": float64(11), "name": "Domestic"},
					{"id": float64(12), "name": "OSS DE"},
				}, nil
			case core.ModelJournal:
				return []core.Record{{"id": float64(5), "code": "INV"}}, nil
			case core.ModelCurrency:
				return []core.Record{{"id": float64(1), "name": "EUR"}}, nil
			}
			return nil, fmt.Errorf("unexpected model %s", model)
		},
	}

	cache, err := core.LoadRefCache(context.Background(), ledger)
	require.NoError(t, err)

	id, err := cache.FiscalPosition("OSS DE")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	id, err = cache.Journal("INV")
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	id, err = cache.Currency("EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = cache.FiscalPosition("OSS FR")
	assert.ErrorIs(t, err, core.ErrLookupNotFound)
}

func TestLoadRefCache_LedgerFailure(t *testing.T) {
	ledger := &fakeLedger{
		searchFn: func(model string, _ []core.Condition) ([]core.Record, error) {
			if model == core.ModelJournal {
				return nil, fmt.Errorf("connection reset")
			}
			return nil, nil
		},
	}

	_, err := core.LoadRefCache(context.Background(), ledger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journals")
}
