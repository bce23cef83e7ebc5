package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BackendUser is one row of the backend's users table.
type BackendUser struct {
	ID          int64
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
	Role        string
}

// UserRepository reads the backend users table. The gateway never writes it.
type UserRepository interface {
	List(ctx context.Context) ([]BackendUser, error)
	GetByEmail(ctx context.Context, email string) (*BackendUser, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, email, COALESCE(first_name, ''), COALESCE(last_name, ''),
        COALESCE(phone_number, ''), COALESCE(role, '')`

func scanUser(row pgx.Row) (*BackendUser, error) {
	var u BackendUser
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PhoneNumber, &u.Role); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) List(ctx context.Context) ([]BackendUser, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []BackendUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetByEmail matches case-insensitively and returns nil when absent.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*BackendUser, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}
