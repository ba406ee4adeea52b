package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
)

const customerColumns = `id, user_id, first_name, last_name, email, phone, oidc_sub, created_at, last_login`

func scanCustomer(row scanner) (*models.Customer, error) {
	var (
		customer  models.Customer
		sub       sql.NullString
		lastLogin sql.NullTime
	)

	err := row.Scan(
		&customer.ID,
		&customer.UserID,
		&customer.FirstName,
		&customer.LastName,
		&customer.Email,
		&customer.Phone,
		&sub,
		&customer.CreatedAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCustomerNotFound
		}
		return nil, err
	}

	if sub.Valid {
		customer.OIDCSub = &sub.String
	}
	if lastLogin.Valid {
		customer.LastLogin = &lastLogin.Time
	}
	return &customer, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func GetCustomer(ctx context.Context, q database.Querier, id int64) (*models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	customer, err := scanCustomer(q.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return customer, err
}

func GetCustomerByUser(ctx context.Context, q database.Querier, userID int64) (*models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE user_id = $1`

	customer, err := scanCustomer(q.QueryRowContext(ctx, query, userID))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("get customer by user: %w", err)
	}
	return customer, err
}

func ListCustomers(ctx context.Context, q database.Querier, limit, offset int) ([]models.Customer, int64, error) {
	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	query := `
		SELECT ` + customerColumns + `
		FROM customers
		ORDER BY id
		LIMIT $1 OFFSET $2`

	rows, err := q.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, *customer)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return customers, total, nil
}

func CustomerEmailTaken(ctx context.Context, q database.Querier, email string, excludeID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM customers WHERE email = $1 AND id <> $2)`,
		email, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check customer email: %w", err)
	}
	return exists, nil
}

func CreateCustomer(ctx context.Context, q database.Querier, c *models.Customer) error {
	query := `
		INSERT INTO customers (user_id, first_name, last_name, email, phone, oidc_sub, created_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7)
		RETURNING id, created_at`

	var lastLogin sql.NullTime
	if c.LastLogin != nil {
		lastLogin = sql.NullTime{Time: *c.LastLogin, Valid: true}
	}

	err := q.QueryRowContext(ctx, query,
		c.UserID, c.FirstName, c.LastName, c.Email, c.Phone, nullString(c.OIDCSub), lastLogin,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create customer: %w", database.MapIntegrity(err))
	}
	return nil
}

func UpdateCustomer(ctx context.Context, q database.Querier, c *models.Customer) error {
	query := `
		UPDATE customers
		SET first_name = $2, last_name = $3, email = $4, phone = $5, oidc_sub = $6, last_login = $7
		WHERE id = $1
		RETURNING user_id, created_at`

	var lastLogin sql.NullTime
	if c.LastLogin != nil {
		lastLogin = sql.NullTime{Time: *c.LastLogin, Valid: true}
	}

	err := q.QueryRowContext(ctx, query,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, nullString(c.OIDCSub), lastLogin,
	).Scan(&c.UserID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrCustomerNotFound
		}
		return fmt.Errorf("update customer: %w", database.MapIntegrity(err))
	}
	return nil
}

// DeleteCustomer is rejected with database.ErrIntegrity while orders
// reference the customer.
func DeleteCustomer(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", database.MapIntegrity(err))
	}
	return expectRow(result, database.ErrCustomerNotFound)
}

func expectRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return GetCustomer(ctx, s.db, id)
}

func (s *Store) GetCustomerByUser(ctx context.Context, userID int64) (*models.Customer, error) {
	return GetCustomerByUser(ctx, s.db, userID)
}

func (s *Store) ListCustomers(ctx context.Context, limit, offset int) ([]models.Customer, int64, error) {
	return ListCustomers(ctx, s.db, limit, offset)
}

func (s *Store) CustomerEmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	return CustomerEmailTaken(ctx, s.db, email, excludeID)
}

func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	return CreateCustomer(ctx, s.db, c)
}

func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	return UpdateCustomer(ctx, s.db, c)
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	return DeleteCustomer(ctx, s.db, id)
}

// SaveIdentity inserts or updates the user and its customer profile in one
// transaction. Zero IDs are inserted.
func (s *Store) SaveIdentity(ctx context.Context, u *models.User, c *models.Customer) error {
	newUser, newCustomer := u.ID == 0, c.ID == 0

	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if newUser {
			if err := CreateUser(ctx, tx, u); err != nil {
				return err
			}
		} else if err := UpdateUser(ctx, tx, u); err != nil {
			return err
		}

		c.UserID = u.ID
		if newCustomer {
			return CreateCustomer(ctx, tx, c)
		}
		return UpdateCustomer(ctx, tx, c)
	})
	if err != nil {
		if newUser {
			u.ID = 0
		}
		if newCustomer {
			c.ID = 0
		}
		return err
	}
	return nil
}
