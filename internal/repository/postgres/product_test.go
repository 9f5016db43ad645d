package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/repository"
)

var productRowColumns = []string{"id", "slug", "title", "description", "price", "compare_at", "active", "stock", "category_id", "created_at"}

func TestProductRepository_FindActiveByIDs(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	repo := NewProductRepository(db)
	now := time.Now()
	ends := now.Add(24 * time.Hour)

	mock.ExpectQuery(queryActiveProductsByIDs).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(productRowColumns).
			AddRow("p-1", "mug", "Mug", "", int64(10000), int64(12000), true, 5, "c-1", now).
			AddRow("p-2", "tee", "Tee", "", int64(20000), nil, true, 0, "c-2", now))
	mock.ExpectQuery(queryAttachedDiscounts).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "id", "code", "type", "value", "starts_at", "ends_at", "active"}).
			AddRow("p-1", "d-1", nil, "PERCENT", int64(10), nil, ends, true).
			AddRow("p-2", "d-2", nil, "FIXED", int64(500), nil, nil, true))
	mock.ExpectQuery(queryMedia).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "id", "kind", "url", "sort_order"}).
			AddRow("p-1", "m-1", "IMAGE", "https://cdn.example/mug.jpg", 0))

	products, err := repo.FindActiveByIDs(context.Background(), []string{"p-1", "p-2"})
	require.NoError(t, err)
	require.Len(t, products, 2)

	mug := products[0]
	require.NotNil(t, mug.CompareAt)
	assert.Equal(t, int64(12000), *mug.CompareAt)
	require.Len(t, mug.Discounts, 1)
	assert.Equal(t, entity.DiscountPercent, mug.Discounts[0].Type)
	require.NotNil(t, mug.Discounts[0].EndsAt)
	assert.Nil(t, mug.Discounts[0].StartsAt)
	require.Len(t, mug.Media, 1)

	tee := products[1]
	assert.Nil(t, tee.CompareAt)
	require.Len(t, tee.Discounts, 1)
	assert.Equal(t, int64(500), tee.Discounts[0].Value)
	assert.Empty(t, tee.Media)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_FindBySlug_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(queryProductBySlug).WithArgs("nope").WillReturnRows(sqlmock.NewRows(productRowColumns))

	_, err = NewProductRepository(db).FindBySlug(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProductRepository_List_BuildsFilters(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	cond := "active = TRUE AND (title ILIKE $1 OR description ILIKE $1) AND category_id = $2"
	mock.ExpectQuery("SELECT COUNT(*) FROM products WHERE "+cond).
		WithArgs("%mug%", "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT "+productColumns+" FROM products WHERE "+cond+" ORDER BY price ASC LIMIT $3 OFFSET $4").
		WithArgs("%mug%", "c-1", 20, 0).
		WillReturnRows(sqlmock.NewRows(productRowColumns))

	products, total, err := NewProductRepository(db).List(context.Background(), repository.ProductQuery{
		Search: "mug", CategoryID: "c-1", Sort: "price_asc",
	})
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscountRepository_FindByCode(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	repo := NewDiscountRepository(db)
	cols := []string{"id", "code", "type", "value", "starts_at", "ends_at", "active"}

	mock.ExpectQuery(queryDiscountByCode).WithArgs("SPRING").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("d-1", "SPRING", "FIXED", int64(5000), nil, nil, true))
	mock.ExpectQuery(queryDiscountByCode).WithArgs("NONE").
		WillReturnRows(sqlmock.NewRows(cols))

	d, err := repo.FindByCode(context.Background(), "SPRING")
	require.NoError(t, err)
	require.NotNil(t, d.Code)
	assert.Equal(t, "SPRING", *d.Code)
	assert.Equal(t, entity.DiscountFixed, d.Type)

	_, err = repo.FindByCode(context.Background(), "NONE")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
