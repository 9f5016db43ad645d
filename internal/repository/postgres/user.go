package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/repository"
)

// Profile fields are refreshed on every login; the id is kept.
const upsertUser = `
	INSERT INTO users (id, tg_id, first_name, last_name, username)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (tg_id) DO UPDATE
	SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, username = EXCLUDED.username
	RETURNING id`

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository backed by Postgres.
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindOrCreateByTelegramID(ctx context.Context, u entity.User) (*entity.User, error) {
	err := r.db.QueryRowContext(ctx, upsertUser,
		uuid.NewString(), u.TelegramID, u.FirstName, u.LastName, u.Username,
	).Scan(&u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user %s: %w", u.TelegramID, err)
	}
	return &u, nil
}
