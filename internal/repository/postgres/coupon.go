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

// CouponRepository implements repository.CouponRepository using PostgreSQL.
type CouponRepository struct {
	pool database.DBTX
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(pool database.DBTX) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// GetByCode retrieves a coupon by its code. Codes are stored uppercase;
// lookup normalizes the input for case-insensitive matching.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `
		SELECT id, code, discount_type, discount_value, min_purchase, max_discount,
			usage_limit, used_count, valid_from, valid_until, is_active, created_at, updated_at
		FROM coupons
		WHERE code = $1`

	var c domain.Coupon
	err := r.pool.QueryRow(ctx, query, domain.NormalizeCouponCode(code)).Scan(
		&c.ID,
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinPurchase,
		&c.MaxDiscount,
		&c.UsageLimit,
		&c.UsedCount,
		&c.ValidFrom,
		&c.ValidUntil,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get coupon by code: %w", err)
	}

	return &c, nil
}

// IncrementUsage increments used_count through the given querier, guarded by
// the usage limit. A false return means the budget was exhausted by a
// concurrent order between validation and commit.
func (r *CouponRepository) IncrementUsage(ctx context.Context, q database.Querier, id string) (bool, error) {
	query := `
		UPDATE coupons
		SET used_count = used_count + 1, updated_at = $1
		WHERE id = $2 AND (usage_limit IS NULL OR used_count < usage_limit)`

	ct, err := q.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("increment coupon usage: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}
