package postgres

import (
	"context"
	"database/sql"

	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/repository"
)

const queryDiscountByCode = "SELECT id, code, type, value, starts_at, ends_at, active FROM discounts WHERE code = $1"

type discountRepository struct {
	db *sql.DB
}

// NewDiscountRepository creates a new DiscountRepository backed by Postgres.
func NewDiscountRepository(db *sql.DB) repository.DiscountRepository {
	return &discountRepository{db: db}
}

func (r *discountRepository) FindByCode(ctx context.Context, code string) (*entity.Discount, error) {
	d, err := scanDiscount(r.db.QueryRowContext(ctx, queryDiscountByCode, code))
	if err != nil {
		return nil, err
	}
	return &d, nil
}
