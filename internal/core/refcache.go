package core

import (
	"context"
	"fmt"
)

// RefCache holds the read-only ledger lookup tables used by invoice
// creation: fiscal positions by name, journals by code, currencies by name.
// It is loaded once at process start and passed by reference into the
// builder and batch services; there is no package-level state.
type RefCache struct {
	FiscalPositions map[string]int64
	Journals        map[string]int64
	Currencies      map[string]int64
}

// LoadRefCache reads the lookup tables from the ledger. Failure here is
// fatal to the invocation: nothing can be invoiced without the maps.
func LoadRefCache(ctx context.Context, lc LedgerClient) (*RefCache, error) {
	cache := &RefCache{
		FiscalPositions: make(map[string]int64),
		Journals:        make(map[string]int64),
		Currencies:      make(map[string]int64),
	}

	fps, err := lc.SearchRead(ctx, ModelFiscalPosition, nil, []string{"id", "name"}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load fiscal positions: %w", err)
	}
	for _, r := range fps {
		cache.FiscalPositions[r.Str("name")] = r.ID()
	}

	journals, err := lc.SearchRead(ctx, ModelJournal, nil, []string{"id", "code"}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load journals: %w", err)
	}
	for _, r := range journals {
		cache.Journals[r.Str("code")] = r.ID()
	}

	currencies, err := lc.SearchRead(ctx, ModelCurrency, nil, []string{"id", "name"}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load currencies: %w", err)
	}
	for _, r := range currencies {
		cache.Currencies[r.Str("name")] = r.ID()
	}

	return cache, nil
}

// FiscalPosition resolves a fiscal-position cache key. A miss is a hard
// failure for the order being invoiced — never an implicit zero-tax
// fallback.
func (c *RefCache) FiscalPosition(key string) (int64, error) {
	id, ok := c.FiscalPositions[key]
	if !ok {
		return 0, fmt.Errorf("fiscal position %q not found in ledger: %w", key, ErrLookupNotFound)
	}
	return id, nil
}

// Journal resolves a journal code to its ledger id.
func (c *RefCache) Journal(code string) (int64, error) {
	id, ok := c.Journals[code]
	if !ok {
		return 0, fmt.Errorf("journal %q not found in ledger: %w", code, ErrLookupNotFound)
	}
	return id, nil
}

// Currency resolves an ISO currency code to its ledger id.
func (c *RefCache) Currency(code string) (int64, error) {
	id, ok := c.Currencies[code]
	if !ok {
		return 0, fmt.Errorf("currency %q not found in ledger: %w", code, ErrLookupNotFound)
	}
	return id, nil
}
