package core_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-agent/internal/core"
)

func testCache() *core.RefCache {
	return &core.RefCache{
		FiscalPositions: map[string]int64{
			"Domestic":     11,
			"OSS DE":       12,
			"Intra-EU B2B": 13,
			"Export":       14,
		},
		Journals:   map[string]int64{"INV": 5},
		Currencies: map[string]int64{"EUR": 1, "USD": 2},
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildInvoice(t *testing.T) {
	order := &core.Order{
		OrderID:      "702-1837412-001",
		ShipFrom:     "NL",
		ShipTo:       "DE",
		TaxScheme:    core.SchemeUnionOSS,
		Currency:     "EUR",
		TotalExcl:    d("64.50"),
		ShippingExcl: d("4.50"),
		OrderDate:    "2026-03-01",
		ShipDate:     "2026-03-03",
		Items: []core.OrderItem{
			{SKU: "MUG-01", CatalogID: "B0EXAMPLE1", Quantity: d("2"), PriceExcl: d("50.00")},
			{SKU: "LID-02", CatalogID: "B0EXAMPLE2", Quantity: d("1"), PriceExcl: d("15.00"), PromoAmount: d("5.00")},
		},
	}

	doc, err := core.BuildInvoice(order, core.Regime{Kind: core.RegimeOSS, Country: "DE"}, testCache(), "INV")
	require.NoError(t, err)

	assert.Equal(t, "702-1837412-001", doc.ExternalRef)
	assert.Equal(t, "2026-03-03", doc.InvoiceDate, "ship date is the invoice date")
	assert.Equal(t, int64(12), doc.FiscalPositionID)
	assert.Equal(t, int64(5), doc.JournalID)
	assert.Equal(t, int64(1), doc.CurrencyID)

	// 2 item lines + 1 promo line + 1 shipping line.
	require.Len(t, doc.Lines, 4)
	assert.Equal(t, "MUG-01 [B0EXAMPLE1]", doc.Lines[0].Name)
	assert.True(t, doc.Lines[0].UnitPrice.Equal(d("25.00")), "unit price is line total over quantity")
	assert.True(t, doc.Lines[2].UnitPrice.Equal(d("-5.00")), "promo line is negative")
	assert.Equal(t, "Shipping", doc.Lines[3].Name)

	// Line sum reconciles with the declared exclusive total.
	diff := doc.Total().Sub(order.TotalExcl).Abs()
	assert.True(t, diff.LessThanOrEqual(d("0.02")), "total off by %s", diff)
}

func TestBuildInvoice_DateFallback(t *testing.T) {
	order := &core.Order{
		OrderID:   "702-0000001-001",
		Currency:  "EUR",
		OrderDate: "2026-04-10",
		Items:     []core.OrderItem{{SKU: "A", Quantity: d("1"), PriceExcl: d("10.00")}},
	}

	doc, err := core.BuildInvoice(order, core.Regime{Kind: core.RegimeDomestic}, testCache(), "INV")
	require.NoError(t, err)
	assert.Equal(t, "2026-04-10", doc.InvoiceDate, "order date when not shipped yet")
	assert.Len(t, doc.Lines, 1, "no shipping line for zero shipping")
}

func TestBuildInvoice_CacheMissIsHardFailure(t *testing.T) {
	cache := testCache()
	order := &core.Order{
		OrderID:   "702-0000002-001",
		Currency:  "EUR",
		OrderDate: "2026-04-10",
		Items:     []core.OrderItem{{SKU: "A", Quantity: d("1"), PriceExcl: d("10.00")}},
	}

	// Fiscal position missing for OSS FR — must fail, never fall back.
	_, err := core.BuildInvoice(order, core.Regime{Kind: core.RegimeOSS, Country: "FR"}, cache, "INV")
	require.ErrorIs(t, err, core.ErrLookupNotFound)

	// Unknown currency.
	order.Currency = "SEK"
	_, err = core.BuildInvoice(order, core.Regime{Kind: core.RegimeDomestic}, cache, "INV")
	require.ErrorIs(t, err, core.ErrLookupNotFound)

	// Unknown journal.
	order.Currency = "EUR"
	_, err = core.BuildInvoice(order, core.Regime{Kind: core.RegimeDomestic}, cache, "MISSING")
	require.ErrorIs(t, err, core.ErrLookupNotFound)
}

func TestBuildInvoice_UnresolvedRegimeRejected(t *testing.T) {
	order := &core.Order{
		OrderID:  "702-0000003-001",
		Currency: "EUR",
		Items:    []core.OrderItem{{SKU: "A", Quantity: d("1"), PriceExcl: d("10.00")}},
	}
	_, err := core.BuildInvoice(order, core.Regime{Kind: core.RegimeUnresolved}, testCache(), "INV")
	require.ErrorIs(t, err, core.ErrRegimeUnresolved)
}

func TestInvoiceDoc_LedgerValues(t *testing.T) {
	doc := &core.InvoiceDoc{
		ExternalRef:      "702-1837412-001",
		InvoiceDate:      "2026-03-03",
		CurrencyID:       1,
		FiscalPositionID: 12,
		JournalID:        5,
		Lines: []core.InvoiceLine{
			{Name: "MUG-01 [B0EXAMPLE1]", Quantity: d("2"), UnitPrice: d("25.00")},
		},
	}

	values := doc.LedgerValues()
	assert.Equal(t, "out_invoice", values["move_type"])
	assert.Equal(t, "702-1837412-001", values["ref"])
	lines, ok := values["invoice_line_ids"].([]any)
	require.True(t, ok)
	require.Len(t, lines, 1)
}
