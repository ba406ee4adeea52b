package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
)

const orderColumns = `id, customer_id, placed_at, status, shipping_address`

func scanOrder(row scanner) (*models.Order, error) {
	order := &models.Order{Items: []models.OrderItem{}}
	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.PlacedAt,
		&order.Status,
		&order.ShippingAddress,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func insertOrderItems(ctx context.Context, q database.Querier, orderID int64, items []models.OrderItem) error {
	for i := range items {
		items[i].OrderID = orderID
		if err := CreateOrderItem(ctx, q, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

// CreateOrder writes the order row and its items. Run it inside a
// transaction so a failing item leaves nothing behind.
func CreateOrder(ctx context.Context, q database.Querier, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, placed_at, status, shipping_address)
		VALUES ($1, NOW(), $2, $3)
		RETURNING id, placed_at`

	err := q.QueryRowContext(ctx, query, order.CustomerID, order.Status, order.ShippingAddress).Scan(
		&order.ID,
		&order.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", database.MapIntegrity(err))
	}

	return insertOrderItems(ctx, q, order.ID, order.Items)
}

func UpdateOrder(ctx context.Context, q database.Querier, order *models.Order, replaceItems bool) error {
	query := `
		UPDATE orders
		SET customer_id = $2, status = $3, shipping_address = $4
		WHERE id = $1
		RETURNING placed_at`

	err := q.QueryRowContext(ctx, query, order.ID, order.CustomerID, order.Status, order.ShippingAddress).Scan(&order.PlacedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrOrderNotFound
		}
		return fmt.Errorf("update order: %w", database.MapIntegrity(err))
	}

	if !replaceItems {
		return nil
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return fmt.Errorf("clear order items: %w", err)
	}
	return insertOrderItems(ctx, q, order.ID, order.Items)
}

func GetOrder(ctx context.Context, q database.Querier, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := loadOrderItems(ctx, q, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns up to limit orders older than cursor, newest first.
func ListOrders(ctx context.Context, q database.Querier, customerID *int64, cursor OrderCursor, limit int) ([]models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::BIGINT IS NULL OR customer_id = $1)
		  AND ($2::BOOLEAN OR (placed_at, id) < ($3, $4))
		ORDER BY placed_at DESC, id DESC
		LIMIT $5`

	rows, err := q.QueryContext(ctx, query,
		nullInt64(customerID), cursor.IsZero(), cursor.PlacedAt, cursor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var page []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		page = append(page, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	if err := loadOrderItems(ctx, q, page); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(page))
	for _, o := range page {
		orders = append(orders, *o)
	}
	return orders, nil
}

func loadOrderItems(ctx context.Context, q database.Querier, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	items, err := queryOrderItems(ctx, q, `WHERE oi.order_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}

	for _, item := range items {
		o := byID[item.OrderID]
		o.Items = append(o.Items, item)
	}
	return nil
}

func DeleteOrder(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", database.MapIntegrity(err))
	}
	return expectRow(result, database.ErrOrderNotFound)
}

func orderTxOptions() database.TxOptions {
	return database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	err := database.WithRetry(ctx, s.db, orderTxOptions(), func(tx *sql.Tx) error {
		return CreateOrder(ctx, tx, order)
	})
	if err != nil {
		order.ID = 0
	}
	return err
}

func (s *Store) UpdateOrder(ctx context.Context, order *models.Order, replaceItems bool) error {
	err := database.WithRetry(ctx, s.db, orderTxOptions(), func(tx *sql.Tx) error {
		return UpdateOrder(ctx, tx, order, replaceItems)
	})
	if err != nil {
		return err
	}

	fresh, err := GetOrder(ctx, s.db, order.ID)
	if err != nil {
		return err
	}
	*order = *fresh
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return GetOrder(ctx, s.db, id)
}

func (s *Store) ListOrders(ctx context.Context, customerID *int64, cursor OrderCursor, limit int) ([]models.Order, error) {
	return ListOrders(ctx, s.db, customerID, cursor, limit)
}

func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	return DeleteOrder(ctx, s.db, id)
}
