// Package store implements core.OrderStore on Postgres. Orders and
// settlements are ingested upstream; this layer only reads them and
// advances order status and settlement-order links.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"billing-agent/internal/core"
)

type Store struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const orderColumns = `o.id, o.order_id, o.marketplace, o.ship_from, o.ship_to,
	COALESCE(o.buyer_vat, ''), o.tax_scheme, o.currency,
	o.total_excl, o.total_tax, o.total_incl, o.shipping_excl,
	o.order_date::text, COALESCE(o.ship_date::text, ''),
	o.status, COALESCE(o.status_reason, ''), o.ledger_invoice_id,
	o.created_at, o.updated_at`

func scanOrder(row pgx.Rows) (core.Order, error) {
	var o core.Order
	err := row.Scan(
		&o.ID, &o.OrderID, &o.Marketplace, &o.ShipFrom, &o.ShipTo,
		&o.BuyerVAT, &o.TaxScheme, &o.Currency,
		&o.TotalExcl, &o.TotalTax, &o.TotalIncl, &o.ShippingExcl,
		&o.OrderDate, &o.ShipDate,
		&o.Status, &o.StatusReason, &o.LedgerInvoiceID,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (s *Store) PendingOrders(ctx context.Context, scope core.BatchScope) ([]core.Order, error) {
	stmt := s.sb.
		Select(orderColumns).
		From("orders o").
		Where(sq.Eq{"o.status": core.OrderStatusPending}).
		OrderBy("o.id")
	if len(scope.OrderIDs) > 0 {
		stmt = stmt.Where(sq.Eq{"o.order_id": scope.OrderIDs})
	}
	if scope.Limit > 0 {
		stmt = stmt.Limit(uint64(scope.Limit))
	}
	return s.queryOrders(ctx, stmt)
}

func (s *Store) ListOrders(ctx context.Context, status *core.OrderStatus, limit int) ([]core.Order, error) {
	stmt := s.sb.
		Select(orderColumns).
		From("orders o").
		OrderBy("o.id DESC")
	if status != nil {
		stmt = stmt.Where(sq.Eq{"o.status": *status})
	}
	if limit > 0 {
		stmt = stmt.Limit(uint64(limit))
	}
	return s.queryOrders(ctx, stmt)
}

func (s *Store) queryOrders(ctx context.Context, stmt sq.SelectBuilder) ([]core.Order, error) {
	sql, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order query: %w", err)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []core.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	for i := range orders {
		items, err := s.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (s *Store) orderItems(ctx context.Context, orderID int) ([]core.OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sku, catalog_id, quantity, price_excl, promo_amount
		FROM order_items
		WHERE order_fk = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []core.OrderItem
	for rows.Next() {
		var it core.OrderItem
		if err := rows.Scan(&it.ID, &it.SKU, &it.CatalogID, &it.Quantity, &it.PriceExcl, &it.PromoAmount); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// updateStatus advances one PENDING order. The status filter in the WHERE
// clause keeps transitions monotonic even under a concurrent invocation.
func (s *Store) updateStatus(ctx context.Context, orderID string, status core.OrderStatus, reason string, ledgerInvoiceID *int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, status_reason = NULLIF($2, ''), ledger_invoice_id = $3, updated_at = NOW()
		WHERE order_id = $4 AND status = $5
	`, status, reason, ledgerInvoiceID, orderID, core.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s is not pending: %w", orderID, core.ErrAlreadyTerminal)
	}
	return nil
}

func (s *Store) MarkInvoiced(ctx context.Context, orderID string, ledgerInvoiceID int64) error {
	return s.updateStatus(ctx, orderID, core.OrderStatusInvoiced, "", &ledgerInvoiceID)
}

func (s *Store) MarkSkipped(ctx context.Context, orderID, reason string) error {
	return s.updateStatus(ctx, orderID, core.OrderStatusSkipped, reason, nil)
}

func (s *Store) MarkError(ctx context.Context, orderID, reason string) error {
	return s.updateStatus(ctx, orderID, core.OrderStatusError, reason, nil)
}

// ── Settlements ──────────────────────────────────────────────────────────────

func (s *Store) GetSettlement(ctx context.Context, settlementID string) (*core.Settlement, error) {
	var st core.Settlement
	var transactions []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, settlement_id, marketplace, currency, total_amount, transactions, created_at
		FROM settlements
		WHERE settlement_id = $1
	`, settlementID).Scan(
		&st.ID, &st.SettlementID, &st.Marketplace, &st.Currency,
		&st.TotalAmount, &transactions, &st.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("settlement %s not found", settlementID)
		}
		return nil, fmt.Errorf("failed to fetch settlement %s: %w", settlementID, err)
	}

	if len(transactions) > 0 {
		if err := json.Unmarshal(transactions, &st.Transactions); err != nil {
			return nil, fmt.Errorf("failed to decode transactions of settlement %s: %w", settlementID, err)
		}
	}
	return &st, nil
}

func (s *Store) SettlementIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT settlement_id FROM settlements ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan settlement id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ── Settlement-order links ───────────────────────────────────────────────────

func (s *Store) LinkedOrderIDs(ctx context.Context, settlementID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id FROM settlement_orders
		WHERE settlement_id = $1
		ORDER BY order_id
	`, settlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement links: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan linked order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Links(ctx context.Context, settlementID string) ([]core.SettlementLink, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT settlement_id, order_id, reconciled, ledger_invoice_id, reconciled_at
		FROM settlement_orders
		WHERE settlement_id = $1
		ORDER BY order_id
	`, settlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement links: %w", err)
	}
	defer rows.Close()

	var links []core.SettlementLink
	for rows.Next() {
		var l core.SettlementLink
		if err := rows.Scan(&l.SettlementID, &l.OrderID, &l.Reconciled, &l.LedgerInvoiceID, &l.ReconciledAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *Store) UpsertLink(ctx context.Context, link core.SettlementLink) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settlement_orders (settlement_id, order_id, reconciled, ledger_invoice_id, reconciled_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (settlement_id, order_id) DO UPDATE
		SET reconciled = EXCLUDED.reconciled,
		    ledger_invoice_id = EXCLUDED.ledger_invoice_id,
		    reconciled_at = EXCLUDED.reconciled_at,
		    updated_at = NOW()
	`, link.SettlementID, link.OrderID, link.Reconciled, link.LedgerInvoiceID, link.ReconciledAt)
	if err != nil {
		return fmt.Errorf("failed to upsert link %s/%s: %w", link.SettlementID, link.OrderID, err)
	}
	return nil
}

func (s *Store) BackfillLinks(ctx context.Context, settlementID string, orderIDs []string) error {
	// Existing pairs are left untouched so a reconciled link is never
	// reset by a later backfill.
	for _, orderID := range orderIDs {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO settlement_orders (settlement_id, order_id, reconciled, updated_at)
			VALUES ($1, $2, false, NOW())
			ON CONFLICT (settlement_id, order_id) DO NOTHING
		`, settlementID, orderID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return fmt.Errorf("cannot backfill links: settlement %s is not ingested", settlementID)
			}
			return fmt.Errorf("failed to backfill link %s/%s: %w", settlementID, orderID, err)
		}
	}
	return nil
}
