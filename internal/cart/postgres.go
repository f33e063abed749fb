package cart

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct{ DB *pgxpool.Pool }

func (s *PostgresStore) Get(ctx context.Context, customerID string) (Cart, []string, error) {
	removed, err := s.prune(ctx, customerID)
	if err != nil {
		return Cart{}, nil, err
	}
	c, err := s.resolve(ctx, customerID)
	if err != nil {
		return Cart{}, nil, err
	}
	return c, removed, nil
}

func (s *PostgresStore) AddItem(ctx context.Context, customerID, productID string, quantity int) (Cart, error) {
	if quantity <= 0 {
		return Cart{}, ErrInvalidQuantity
	}
	// one statement so two tabs adding the same product accumulate instead
	// of losing an update
	_, err := s.DB.Exec(ctx, `
		INSERT INTO cart_items (customer_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`,
		customerID, productID, quantity)
	if err != nil {
		return Cart{}, fmt.Errorf("add cart item: %w", err)
	}
	return s.resolve(ctx, customerID)
}

// Increase bumps the line by one, bounded by live stock. The stock check and
// the increment are a single conditional UPDATE, so concurrent increases
// cannot push the line past the stock count.
func (s *PostgresStore) Increase(ctx context.Context, customerID, productID string) (Cart, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE cart_items ci SET quantity = ci.quantity + 1, updated_at = now()
		FROM products p
		WHERE ci.customer_id = $1 AND ci.product_id = $2
		  AND p.id = ci.product_id AND ci.quantity < p.stock`,
		customerID, productID)
	if err != nil {
		return Cart{}, fmt.Errorf("increase cart item: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return s.resolve(ctx, customerID)
	}

	// nothing updated: missing line, vanished product, or stock bound hit
	var lineExists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cart_items WHERE customer_id=$1 AND product_id=$2)`,
		customerID, productID).Scan(&lineExists); err != nil {
		return Cart{}, err
	}
	if !lineExists {
		return Cart{}, ErrLineNotFound
	}
	var productExists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&productExists); err != nil {
		return Cart{}, err
	}
	if !productExists {
		if _, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE customer_id=$1 AND product_id=$2`, customerID, productID); err != nil {
			return Cart{}, err
		}
		c, err := s.resolve(ctx, customerID)
		if err != nil {
			return Cart{}, err
		}
		return c, ErrProductGone
	}
	c, err := s.resolve(ctx, customerID)
	if err != nil {
		return Cart{}, err
	}
	return c, ErrOutOfStock
}

func (s *PostgresStore) Decrease(ctx context.Context, customerID, productID string) (Cart, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Cart{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE cart_items SET quantity = quantity - 1, updated_at = now()
		WHERE customer_id = $1 AND product_id = $2 AND quantity > 1`,
		customerID, productID)
	if err != nil {
		return Cart{}, fmt.Errorf("decrease cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// at quantity 1 the line is removed, never persisted as 0
		ct, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE customer_id = $1 AND product_id = $2`,
			customerID, productID)
		if err != nil {
			return Cart{}, err
		}
		if ct.RowsAffected() == 0 {
			return Cart{}, ErrLineNotFound
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Cart{}, err
	}
	return s.resolve(ctx, customerID)
}

func (s *PostgresStore) Clear(ctx context.Context, customerID string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE customer_id = $1`, customerID)
	return err
}

func (s *PostgresStore) prune(ctx context.Context, customerID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		DELETE FROM cart_items ci
		WHERE ci.customer_id = $1
		  AND NOT EXISTS (SELECT 1 FROM products p WHERE p.id = ci.product_id)
		RETURNING ci.product_id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var removed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		removed = append(removed, id)
	}
	return removed, rows.Err()
}

func (s *PostgresStore) resolve(ctx context.Context, customerID string) (Cart, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT p.id, p.name, p.description, p.category, p.image_url, p.price, p.stock, p.created_at, p.updated_at, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.customer_id = $1
		ORDER BY p.name`, customerID)
	if err != nil {
		return Cart{}, err
	}
	defer rows.Close()

	c := Cart{CustomerID: customerID, Items: []Item{}}
	for rows.Next() {
		var it Item
		p := &it.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.ImageURL, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt, &it.Quantity); err != nil {
			return Cart{}, err
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}
