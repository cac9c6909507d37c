package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InvoiceDoc is the invoice document to be created in the ledger: a header
// plus one line per item, a negative adjustment line per promoted item, and
// a shipping line when shipping was charged. The ledger computes the final
// tax from the fiscal position; amounts here are tax-exclusive.
type InvoiceDoc struct {
	ExternalRef      string          `json:"external_ref"` // = order business key
	InvoiceDate      string          `json:"invoice_date"` // YYYY-MM-DD
	Currency         string          `json:"currency"`
	CurrencyID       int64           `json:"currency_id"`
	FiscalPositionID int64           `json:"fiscal_position_id"`
	JournalID        int64           `json:"journal_id"`
	Regime           Regime          `json:"regime"`
	Lines            []InvoiceLine   `json:"lines"`
}

// InvoiceLine is one invoice line. UnitPrice may be negative for promotion
// adjustment lines.
type InvoiceLine struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Total sums quantity × unit price over all lines. It reconciles with the
// order's declared tax-exclusive total within rounding tolerance; the
// ledger, not this builder, computes the final tax.
func (d *InvoiceDoc) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.Quantity.Mul(l.UnitPrice))
	}
	return total
}

// LedgerValues renders the document as ledger create values for the invoice
// model, lines embedded as (0, 0, values) create commands.
func (d *InvoiceDoc) LedgerValues() map[string]any {
	lines := make([]any, 0, len(d.Lines))
	for _, l := range d.Lines {
		lines = append(lines, []any{0, 0, map[string]any{
			"name":       l.Name,
			"quantity":   l.Quantity.InexactFloat64(),
			"price_unit": l.UnitPrice.InexactFloat64(),
		}})
	}
	return map[string]any{
		"move_type":          "out_invoice",
		"ref":                d.ExternalRef,
		"invoice_date":       d.InvoiceDate,
		"currency_id":        d.CurrencyID,
		"fiscal_position_id": d.FiscalPositionID,
		"journal_id":         d.JournalID,
		"invoice_line_ids":   lines,
	}
}

// BuildInvoice assembles the invoice document for an order under a resolved
// regime. Pure: no I/O, no mutation of the order; all lookups come from the
// pre-loaded caches. The invoice date is the ship date, falling back to the
// order date for orders invoiced before carrier confirmation.
func BuildInvoice(o *Order, regime Regime, cache *RefCache, journalCode string) (*InvoiceDoc, error) {
	key, ok := regime.FiscalPositionKey()
	if !ok {
		return nil, fmt.Errorf("regime %s has no fiscal position: %w", regime, ErrRegimeUnresolved)
	}
	fpID, err := cache.FiscalPosition(key)
	if err != nil {
		return nil, err
	}
	journalID, err := cache.Journal(journalCode)
	if err != nil {
		return nil, err
	}
	currencyID, err := cache.Currency(o.Currency)
	if err != nil {
		return nil, err
	}

	invoiceDate := o.ShipDate
	if invoiceDate == "" {
		invoiceDate = o.OrderDate
	}

	doc := &InvoiceDoc{
		ExternalRef:      o.OrderID,
		InvoiceDate:      invoiceDate,
		Currency:         o.Currency,
		CurrencyID:       currencyID,
		FiscalPositionID: fpID,
		JournalID:        journalID,
		Regime:           regime,
	}

	for _, item := range o.Items {
		qty := item.Quantity
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		doc.Lines = append(doc.Lines, InvoiceLine{
			Name:      fmt.Sprintf("%s [%s]", item.SKU, item.CatalogID),
			Quantity:  qty,
			UnitPrice: item.PriceExcl.DivRound(qty, 4),
		})
		if item.PromoAmount.IsPositive() {
			doc.Lines = append(doc.Lines, InvoiceLine{
				Name:      fmt.Sprintf("Promotion %s [%s]", item.SKU, item.CatalogID),
				Quantity:  decimal.NewFromInt(1),
				UnitPrice: item.PromoAmount.Neg(),
			})
		}
	}

	if o.ShippingExcl.IsPositive() {
		doc.Lines = append(doc.Lines, InvoiceLine{
			Name:      "Shipping",
			Quantity:  decimal.NewFromInt(1),
			UnitPrice: o.ShippingExcl,
		})
	}

	return doc, nil
}
