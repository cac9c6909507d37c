package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the invoicing state of a marketplace order.
// Transitions are monotonic: PENDING → INVOICED | SKIPPED | ERROR.
// Orders are never reverted or deleted by this service.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusInvoiced OrderStatus = "INVOICED"
	OrderStatusSkipped  OrderStatus = "SKIPPED"
	OrderStatusError    OrderStatus = "ERROR"
)

// TaxScheme tags who collected and remits VAT for an order.
type TaxScheme string

const (
	// SchemeRegular is a plain seller-collected sale.
	SchemeRegular TaxScheme = "REGULAR"
	// SchemeUnionOSS is an EU cross-border B2C distance sale reported
	// through the seller's home-country One-Stop-Shop return.
	SchemeUnionOSS TaxScheme = "UNION_OSS"
	// SchemeMarketplaceVAT marks the marketplace as deemed reseller:
	// it collected and remits VAT itself.
	SchemeMarketplaceVAT TaxScheme = "MARKETPLACE_VAT"
	// SchemeLowValueImport is the low-value import scheme (IOSS); the
	// marketplace collected VAT at checkout.
	SchemeLowValueImport TaxScheme = "LOW_VALUE_IMPORT"
)

// MarketplaceCollected reports whether the marketplace already collected and
// remits the VAT, which makes the order non-invoiceable by the seller.
func (s TaxScheme) MarketplaceCollected() bool {
	return s == SchemeMarketplaceVAT || s == SchemeLowValueImport
}

// Order is a marketplace sales order as ingested upstream.
// OrderID is the marketplace business key and doubles as the external
// reference of the invoice created in the ledger.
type Order struct {
	ID              int             `json:"id"`
	OrderID         string          `json:"order_id"`
	Marketplace     string          `json:"marketplace"`
	ShipFrom        string          `json:"ship_from"` // ISO 3166-1 alpha-2
	ShipTo          string          `json:"ship_to"`
	BuyerVAT        string          `json:"buyer_vat,omitempty"`
	TaxScheme       TaxScheme       `json:"tax_scheme"`
	Currency        string          `json:"currency"`
	TotalExcl       decimal.Decimal `json:"total_excl"`
	TotalTax        decimal.Decimal `json:"total_tax"`
	TotalIncl       decimal.Decimal `json:"total_incl"`
	ShippingExcl    decimal.Decimal `json:"shipping_excl"`
	OrderDate       string          `json:"order_date"`          // YYYY-MM-DD
	ShipDate        string          `json:"ship_date,omitempty"` // YYYY-MM-DD, empty if not shipped
	Status          OrderStatus     `json:"status"`
	StatusReason    string          `json:"status_reason,omitempty"`
	LedgerInvoiceID *int64          `json:"ledger_invoice_id,omitempty"` // set iff INVOICED
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem is one line item on a marketplace order. PriceExcl is the
// tax-exclusive line total; PromoAmount is a non-negative promotion discount
// already reflected in the order totals.
type OrderItem struct {
	ID          int             `json:"id"`
	SKU         string          `json:"sku"`
	CatalogID   string          `json:"catalog_id"` // external catalog id (e.g. ASIN)
	Quantity    decimal.Decimal `json:"quantity"`
	PriceExcl   decimal.Decimal `json:"price_excl"`
	PromoAmount decimal.Decimal `json:"promo_amount"`
}

// Settlement transaction types that carry an order reference.
const (
	TxTypeOrder      = "ORDER"
	TxTypeRefund     = "REFUND"
	TxTypeChargeback = "CHARGEBACK"
)

// SettlementTransaction is one row of a marketplace settlement report.
// Only order-bearing types (ORDER, REFUND, CHARGEBACK) reference an order.
type SettlementTransaction struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"order_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	PostedDate string          `json:"posted_date,omitempty"`
}

// Settlement is a marketplace payout report covering many orders.
type Settlement struct {
	ID           int                     `json:"id"`
	SettlementID string                  `json:"settlement_id"`
	Marketplace  string                  `json:"marketplace"`
	Currency     string                  `json:"currency"`
	TotalAmount  decimal.Decimal         `json:"total_amount"`
	Transactions []SettlementTransaction `json:"transactions"`
	CreatedAt    time.Time               `json:"created_at"`
}

// SettlementLink tracks the reconciliation state of one (settlement, order)
// pair. Links are created lazily, upserted, and never deleted.
type SettlementLink struct {
	SettlementID    string     `json:"settlement_id"`
	OrderID         string     `json:"order_id"`
	Reconciled      bool       `json:"reconciled"`
	LedgerInvoiceID *int64     `json:"ledger_invoice_id,omitempty"`
	ReconciledAt    *time.Time `json:"reconciled_at,omitempty"`
}
