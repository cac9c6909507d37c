package core

import "fmt"

// RegimeKind classifies the VAT treatment of one order.
type RegimeKind string

const (
	// RegimeNotInvoiceable: the marketplace collected and remits VAT
	// (deemed reseller / low-value import); the seller issues no invoice.
	RegimeNotInvoiceable RegimeKind = "NOT_INVOICEABLE"
	// RegimeOSS: cross-border B2C distance sale reported through the
	// One-Stop-Shop, taxed at the destination country's rate.
	RegimeOSS RegimeKind = "OSS"
	// RegimeB2B: zero-rated intra-community reverse-charge supply to a
	// VAT-registered buyer.
	RegimeB2B RegimeKind = "B2B_INTRA_COMMUNITY"
	// RegimeExport: destination outside the EU VAT area.
	RegimeExport RegimeKind = "EXPORT"
	// RegimeDomestic: ship-from and ship-to both in the home jurisdiction.
	RegimeDomestic RegimeKind = "DOMESTIC"
	// RegimeUnresolved: no rule matched. Must never be defaulted; the
	// order goes to manual review.
	RegimeUnresolved RegimeKind = "UNRESOLVED"
)

// Regime is a resolved tax treatment. Country is set for OSS (the
// destination whose rate applies) and empty otherwise.
type Regime struct {
	Kind    RegimeKind `json:"kind"`
	Country string     `json:"country,omitempty"`
}

func (r Regime) String() string {
	if r.Kind == RegimeOSS {
		return fmt.Sprintf("%s(%s)", r.Kind, r.Country)
	}
	return string(r.Kind)
}

// FiscalPositionKey maps a regime to the name of the ledger fiscal position
// that applies its tax rates. ok is false for terminal regimes that never
// reach invoice creation. A cache miss on the returned key is a hard
// invoice-creation failure upstream, never an implicit zero-tax fallback.
func (r Regime) FiscalPositionKey() (string, bool) {
	switch r.Kind {
	case RegimeDomestic:
		return "Domestic", true
	case RegimeOSS:
		return "OSS " + r.Country, true
	case RegimeB2B:
		return "Intra-EU B2B", true
	case RegimeExport:
		return "Export", true
	}
	return "", false
}

// euVATArea is the EU VAT territory by ISO 3166-1 alpha-2 code.
// Note: GB left the area; XI (Northern Ireland) stays in for goods.
var euVATArea = map[string]bool{
	"AT": true, "BE": true, "BG": true, "CY": true, "CZ": true,
	"DE": true, "DK": true, "EE": true, "ES": true, "FI": true,
	"FR": true, "GR": true, "HR": true, "HU": true, "IE": true,
	"IT": true, "LT": true, "LU": true, "LV": true, "MT": true,
	"NL": true, "PL": true, "PT": true, "RO": true, "SE": true,
	"SI": true, "SK": true, "XI": true,
}

// InEUVATArea reports whether a country code is inside the EU VAT territory.
func InEUVATArea(country string) bool { return euVATArea[country] }

// regimeRule is one entry of the ordered classification table.
// applies is evaluated top to bottom; the first match wins.
type regimeRule struct {
	name    string
	applies func(o *Order, home string) bool
	regime  func(o *Order) Regime
}

// regimeRules is the classification sequence. Order is load-bearing:
// marketplace-collected > OSS > B2B > export > domestic, with one twist: a
// VAT-registered buyer takes the reverse-charge treatment even when the
// order is tagged with the OSS scheme, so the OSS predicate defers to it.
var regimeRules = []regimeRule{
	{
		name: "marketplace collected",
		applies: func(o *Order, _ string) bool {
			return o.TaxScheme.MarketplaceCollected()
		},
		regime: func(_ *Order) Regime { return Regime{Kind: RegimeNotInvoiceable} },
	},
	{
		name: "oss distance sale",
		// A registered buyer falls through to reverse charge below.
		applies: func(o *Order, home string) bool {
			return o.TaxScheme == SchemeUnionOSS && o.ShipFrom == home &&
				InEUVATArea(o.ShipTo) && o.BuyerVAT == ""
		},
		regime: func(o *Order) Regime { return Regime{Kind: RegimeOSS, Country: o.ShipTo} },
	},
	{
		name: "b2b reverse charge",
		// Assumes upstream ingestion validated the registration id;
		// no VIES check happens here.
		applies: func(o *Order, _ string) bool {
			return o.BuyerVAT != ""
		},
		regime: func(_ *Order) Regime { return Regime{Kind: RegimeB2B} },
	},
	{
		name: "export",
		applies: func(o *Order, _ string) bool {
			return !InEUVATArea(o.ShipTo)
		},
		regime: func(_ *Order) Regime { return Regime{Kind: RegimeExport} },
	},
	{
		name: "domestic",
		applies: func(o *Order, home string) bool {
			return o.ShipFrom == home && o.ShipTo == home
		},
		regime: func(_ *Order) Regime { return Regime{Kind: RegimeDomestic} },
	},
}

// ResolveRegime classifies an order's tax treatment against the ordered
// rule table. Pure: identical attributes always yield the identical regime.
// When no rule matches the result is RegimeUnresolved and the caller must
// stop that order for manual review rather than guess.
func ResolveRegime(o *Order, homeCountry string) Regime {
	for _, rule := range regimeRules {
		if rule.applies(o, homeCountry) {
			return rule.regime(o)
		}
	}
	return Regime{Kind: RegimeUnresolved}
}
