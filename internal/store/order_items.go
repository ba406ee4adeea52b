package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
)

const orderItemSelect = `
	SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price
	FROM order_items oi
	JOIN products p ON p.id = oi.product_id `

func scanOrderItem(row scanner) (*models.OrderItem, error) {
	item := &models.OrderItem{}
	err := row.Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.ProductName,
		&item.Quantity,
		&item.UnitPrice,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func queryOrderItems(ctx context.Context, q database.Querier, where string, args ...any) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, orderItemSelect+where+` ORDER BY oi.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

func GetOrderItem(ctx context.Context, q database.Querier, id int64) (*models.OrderItem, error) {
	item, err := scanOrderItem(q.QueryRowContext(ctx, orderItemSelect+`WHERE oi.id = $1`, id))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("get order item: %w", err)
	}
	return item, err
}

func ListOrderItems(ctx context.Context, q database.Querier, orderID *int64) ([]models.OrderItem, error) {
	items, err := queryOrderItems(ctx, q, `WHERE ($1::BIGINT IS NULL OR oi.order_id = $1)`, nullInt64(orderID))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

func OrderItemExists(ctx context.Context, q database.Querier, orderID, productID, excludeID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM order_items WHERE order_id = $1 AND product_id = $2 AND id <> $3)`,
		orderID, productID, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order item: %w", err)
	}
	return exists, nil
}

func CreateOrderItem(ctx context.Context, q database.Querier, item *models.OrderItem) error {
	query := `
		WITH inserted AS (
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
			RETURNING id, product_id
		)
		SELECT inserted.id, p.name
		FROM inserted
		JOIN products p ON p.id = inserted.product_id`

	err := q.QueryRowContext(ctx, query, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice).Scan(
		&item.ID,
		&item.ProductName,
	)
	if err != nil {
		return fmt.Errorf("create order item: %w", database.MapIntegrity(err))
	}
	return nil
}

func UpdateOrderItem(ctx context.Context, q database.Querier, item *models.OrderItem) error {
	result, err := q.ExecContext(ctx,
		`UPDATE order_items SET order_id = $2, product_id = $3, quantity = $4, unit_price = $5 WHERE id = $1`,
		item.ID, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
	if err != nil {
		return fmt.Errorf("update order item: %w", database.MapIntegrity(err))
	}
	return expectRow(result, database.ErrOrderItemNotFound)
}

func DeleteOrderItem(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	return expectRow(result, database.ErrOrderItemNotFound)
}

func (s *Store) GetOrderItem(ctx context.Context, id int64) (*models.OrderItem, error) {
	return GetOrderItem(ctx, s.db, id)
}

func (s *Store) ListOrderItems(ctx context.Context, orderID *int64) ([]models.OrderItem, error) {
	return ListOrderItems(ctx, s.db, orderID)
}

func (s *Store) OrderItemExists(ctx context.Context, orderID, productID, excludeID int64) (bool, error) {
	return OrderItemExists(ctx, s.db, orderID, productID, excludeID)
}

func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	return CreateOrderItem(ctx, s.db, item)
}

func (s *Store) UpdateOrderItem(ctx context.Context, item *models.OrderItem) error {
	if err := UpdateOrderItem(ctx, s.db, item); err != nil {
		return err
	}
	fresh, err := GetOrderItem(ctx, s.db, item.ID)
	if err != nil {
		return err
	}
	*item = *fresh
	return nil
}

func (s *Store) DeleteOrderItem(ctx context.Context, id int64) error {
	return DeleteOrderItem(ctx, s.db, id)
}
