package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Folau1/WebApp/internal/entity"
)

func TestUserRepository_FindOrCreateByTelegramID(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(upsertUser).
		WithArgs(sqlmock.AnyArg(), "777", "Ann", "", "ann").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

	u, err := NewUserRepository(db).FindOrCreateByTelegramID(context.Background(), entity.User{
		TelegramID: "777", FirstName: "Ann", Username: "ann",
	})
	require.NoError(t, err)
	assert.Equal(t, "existing-id", u.ID)
	assert.Equal(t, "ann", u.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}
