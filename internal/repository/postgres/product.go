package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hanoutlabs/storefront/internal/domain"
	"github.com/hanoutlabs/storefront/pkg/database"
	apperrors "github.com/hanoutlabs/storefront/pkg/errors"
)

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID retrieves a product with all of its variant rows.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT id, name, price, sale_price, image, stock_quantity, created_at, updated_at
		FROM products
		WHERE id = $1`

	var p domain.Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.SalePrice,
		&p.Image,
		&p.StockQuantity,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	variantQuery := `
		SELECT id, product_id, kind, size, color, stock
		FROM product_variants
		WHERE product_id = $1
		ORDER BY kind, size, color`

	rows, err := r.pool.Query(ctx, variantQuery, id)
	if err != nil {
		return nil, fmt.Errorf("load product variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Kind, &v.Size, &v.Color, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan product variant: %w", err)
		}
		p.Variants = append(p.Variants, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product variant rows: %w", err)
	}

	return &p, nil
}

// DecrementBaseStock conditionally decrements the base stock bucket. The
// guard (stock_quantity >= qty) makes the read-check-decrement sequence a
// single atomic write, preventing oversell under concurrent checkouts.
func (r *ProductRepository) DecrementBaseStock(ctx context.Context, q database.Querier, productID string, qty int) (bool, error) {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = $2
		WHERE id = $3 AND stock_quantity >= $1`

	ct, err := q.Exec(ctx, query, qty, time.Now().UTC(), productID)
	if err != nil {
		return false, fmt.Errorf("decrement base stock: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// DecrementVariantStock conditionally decrements one variant row.
func (r *ProductRepository) DecrementVariantStock(ctx context.Context, q database.Querier, variantID string, qty int) (bool, error) {
	query := `
		UPDATE product_variants
		SET stock = stock - $1
		WHERE id = $2 AND stock >= $1`

	ct, err := q.Exec(ctx, query, qty, variantID)
	if err != nil {
		return false, fmt.Errorf("decrement variant stock: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// IncrementBaseStock replenishes the base stock bucket.
func (r *ProductRepository) IncrementBaseStock(ctx context.Context, productID string, qty int) error {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = $2
		WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, qty, time.Now().UTC(), productID)
	if err != nil {
		return fmt.Errorf("increment base stock: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", productID)
	}

	return nil
}

// IncrementVariantStock replenishes one variant row.
func (r *ProductRepository) IncrementVariantStock(ctx context.Context, variantID string, qty int) error {
	query := `
		UPDATE product_variants
		SET stock = stock + $1
		WHERE id = $2`

	ct, err := r.pool.Exec(ctx, query, qty, variantID)
	if err != nil {
		return fmt.Errorf("increment variant stock: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product variant", variantID)
	}

	return nil
}

// BaseStock reads the current base stock through the given querier, so the
// post-decrement value is visible inside the caller's transaction.
func (r *ProductRepository) BaseStock(ctx context.Context, q database.Querier, productID string) (int, error) {
	var stock int
	err := q.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("read base stock: %w", err)
	}
	return stock, nil
}

// VariantStock reads the current stock of one variant row.
func (r *ProductRepository) VariantStock(ctx context.Context, q database.Querier, variantID string) (int, error) {
	var stock int
	err := q.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id = $1`, variantID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("read variant stock: %w", err)
	}
	return stock, nil
}
