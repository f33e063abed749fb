package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct{ DB *pgxpool.Pool }

const orderColumns = `id, customer_id, ship_name, ship_phone, ship_address1, ship_address2,
	ship_city, ship_state, ship_postal_code, total_price, status, payment_status,
	COALESCE(gateway_order_id, ''), COALESCE(gateway_payment_id, ''), COALESCE(gateway_signature, ''),
	created_at, updated_at`

// Create writes the order, its line items, and the stock reservations in one
// transaction. Stock rows are locked (FOR UPDATE) and conditionally
// decremented; any shortage rolls back the whole checkout.
func (r *PostgresRepo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var shortages []StockShortage
	for _, it := range o.Items {
		var stock int
		err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, it.ProductID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			shortages = append(shortages, StockShortage{ProductID: it.ProductID, Requested: it.Quantity, Available: 0})
			continue
		}
		if err != nil {
			return err
		}
		if stock < it.Quantity {
			shortages = append(shortages, StockShortage{ProductID: it.ProductID, Requested: it.Quantity, Available: stock})
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1`,
			it.ProductID, it.Quantity); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations (order_id, product_id, quantity, status)
			VALUES ($1, $2, $3, 'RESERVED')
			ON CONFLICT (order_id, product_id) DO NOTHING`,
			o.ID, it.ProductID, it.Quantity); err != nil {
			return err
		}
	}
	if len(shortages) > 0 {
		return &InsufficientStockError{Shortages: shortages} // rollback via defer
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, customer_id, ship_name, ship_phone, ship_address1, ship_address2,
			ship_city, ship_state, ship_postal_code, total_price, status, payment_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)`,
		o.ID, o.CustomerID, o.ShippingAddress.Name, o.ShippingAddress.Phone,
		o.ShippingAddress.AddressLine1, o.ShippingAddress.AddressLine2,
		o.ShippingAddress.City, o.ShippingAddress.State, o.ShippingAddress.PostalCode,
		o.TotalPrice, o.Status, o.PaymentStatus, o.CreatedAt); err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4)`,
			o.ID, it.ProductID, it.Quantity, it.UnitPrice); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepo) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
}

func (r *PostgresRepo) ListAll(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`)
}

// UpdateFulfillment applies a guarded transition under a row lock.
func (r *PostgresRepo) UpdateFulfillment(ctx context.Context, id string, to Status) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from Status
	var payment PaymentStatus
	err = tx.QueryRow(ctx, `SELECT status, payment_status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&from, &payment)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if err := ValidateTransition(from, payment, to); err != nil {
		return Order{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, to); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return r.Get(ctx, id)
}

// AttachGatewayOrder persists the intent reference created with the gateway.
// Only a payment-pending order may be (re)linked.
func (r *PostgresRepo) AttachGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET gateway_order_id=$2, updated_at=now()
		WHERE id=$1 AND payment_status='Pending'`, orderID, gatewayOrderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)`, orderID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return fmt.Errorf("%w: order %s", ErrPaymentSettled, orderID)
	}
	return nil
}

func (r *PostgresRepo) MarkPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (Order, bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status='Paid', gateway_payment_id=$2, gateway_signature=$3, updated_at=now()
		WHERE gateway_order_id=$1 AND payment_status='Pending'`,
		gatewayOrderID, gatewayPaymentID, signature)
	if err != nil {
		return Order{}, false, err
	}
	o, err := r.getByGatewayOrder(ctx, gatewayOrderID)
	if err != nil {
		return Order{}, false, err
	}
	return o, ct.RowsAffected() == 1, nil
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, gatewayOrderID, reason string) (Order, bool, error) {
	_ = reason // carried on the event, not the row
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status='Failed', updated_at=now()
		WHERE gateway_order_id=$1 AND payment_status='Pending'`, gatewayOrderID)
	if err != nil {
		return Order{}, false, err
	}
	o, err := r.getByGatewayOrder(ctx, gatewayOrderID)
	if err != nil {
		return Order{}, false, err
	}
	return o, ct.RowsAffected() == 1, nil
}

// ReleaseReservations puts reserved stock back after a failed payment.
func (r *PostgresRepo) ReleaseReservations(ctx context.Context, orderID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM reservations WHERE order_id=$1 AND status='RESERVED'`, orderID)
	if err != nil {
		return err
	}
	type rec struct {
		pid string
		qty int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.pid, &x.qty); err != nil {
			rows.Close()
			return err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range recs {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at=now() WHERE id=$1`, x.pid, x.qty); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE reservations SET status='RELEASED' WHERE order_id=$1 AND status='RESERVED'`, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ConsumeReservations finalizes reservations once payment is captured; the
// stock decrement taken at checkout becomes permanent.
func (r *PostgresRepo) ConsumeReservations(ctx context.Context, orderID string) error {
	_, err := r.DB.Exec(ctx, `UPDATE reservations SET status='CONSUMED' WHERE order_id=$1 AND status='RESERVED'`, orderID)
	return err
}

func (r *PostgresRepo) getByGatewayOrder(ctx context.Context, gatewayOrderID string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE gateway_order_id=$1`, gatewayOrderID)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepo) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *PostgresRepo) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.DB.Query(ctx, `SELECT product_id, quantity, unit_price FROM order_items WHERE order_id=$1`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	o.Items = nil
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerID,
		&o.ShippingAddress.Name, &o.ShippingAddress.Phone,
		&o.ShippingAddress.AddressLine1, &o.ShippingAddress.AddressLine2,
		&o.ShippingAddress.City, &o.ShippingAddress.State, &o.ShippingAddress.PostalCode,
		&o.TotalPrice, &o.Status, &o.PaymentStatus,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.GatewaySignature,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return o, nil
}
