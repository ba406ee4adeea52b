package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
)

const userColumns = `id, username, email, first_name, last_name, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func CreateUser(ctx context.Context, q database.Querier, user *models.User) error {
	query := `
		INSERT INTO users (username, email, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := q.QueryRowContext(ctx, query, user.Username, user.Email, user.FirstName, user.LastName).Scan(
		&user.ID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", database.MapIntegrity(err))
	}
	return nil
}

func UpdateUser(ctx context.Context, q database.Querier, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING username, created_at, updated_at`

	err := q.QueryRowContext(ctx, query, user.ID, user.Email, user.FirstName, user.LastName).Scan(
		&user.Username,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrUserNotFound
		}
		return fmt.Errorf("update user: %w", database.MapIntegrity(err))
	}
	return nil
}

func GetUser(ctx context.Context, q database.Querier, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(q.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, err
}

func FindUserByEmail(ctx context.Context, q database.Querier, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email <> '' AND LOWER(email) = LOWER($1)
		ORDER BY id
		LIMIT 1`

	user, err := scanUser(q.QueryRowContext(ctx, query, email))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, err
}

func FindUserBySubject(ctx context.Context, q database.Querier, sub string) (*models.User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.created_at, u.updated_at
		FROM users u
		JOIN customers c ON c.user_id = u.id
		WHERE c.oidc_sub = $1`

	user, err := scanUser(q.QueryRowContext(ctx, query, sub))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("find user by subject: %w", err)
	}
	return user, err
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return GetUser(ctx, s.db, id)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return FindUserByEmail(ctx, s.db, email)
}

func (s *Store) FindUserBySubject(ctx context.Context, sub string) (*models.User, error) {
	return FindUserBySubject(ctx, s.db, sub)
}
