package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, description, price, stock, created_at, updated_at`

func scanProduct(row scanner) (*models.Product, error) {
	product := &models.Product{CategoryIDs: []int64{}, CategoryNames: []string{}}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Stock,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// loadProductCategories fills CategoryIDs and CategoryNames for every
// product with one query.
func loadProductCategories(ctx context.Context, q database.Querier, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Product, len(products))
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT pc.product_id, c.id, c.name
		FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = ANY($1)
		ORDER BY pc.product_id, c.id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load product categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID, categoryID int64
		var name string
		if err := rows.Scan(&productID, &categoryID, &name); err != nil {
			return fmt.Errorf("scan product category: %w", err)
		}
		p := byID[productID]
		p.CategoryIDs = append(p.CategoryIDs, categoryID)
		p.CategoryNames = append(p.CategoryNames, name)
	}

	return rows.Err()
}

func GetProduct(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	if err := loadProductCategories(ctx, q, []*models.Product{product}); err != nil {
		return nil, err
	}
	return product, nil
}

func ListProducts(ctx context.Context, q database.Querier, limit, offset int) ([]models.Product, int64, error) {
	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY id
		LIMIT $1 OFFSET $2`

	rows, err := q.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var page []*models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		page = append(page, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	if err := loadProductCategories(ctx, q, page); err != nil {
		return nil, 0, err
	}

	products := make([]models.Product, 0, len(page))
	for _, p := range page {
		products = append(products, *p)
	}
	return products, total, nil
}

func linkCategories(ctx context.Context, q database.Querier, productID int64, categoryIDs []int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM product_categories WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("clear product categories: %w", err)
	}
	if len(categoryIDs) == 0 {
		return nil
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO product_categories (product_id, category_id)
		SELECT $1, UNNEST($2::BIGINT[])
		ON CONFLICT DO NOTHING`,
		productID, pq.Array(categoryIDs))
	if err != nil {
		return fmt.Errorf("link product categories: %w", database.MapIntegrity(err))
	}
	return nil
}

func CreateProduct(ctx context.Context, q database.Querier, p *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := q.QueryRowContext(ctx, query, p.Name, p.Description, p.Price, p.Stock).Scan(
		&p.ID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create product: %w", database.MapIntegrity(err))
	}

	return linkCategories(ctx, q, p.ID, p.CategoryIDs)
}

func UpdateProduct(ctx context.Context, q database.Querier, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, stock = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := q.QueryRowContext(ctx, query, p.ID, p.Name, p.Description, p.Price, p.Stock).Scan(
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrProductNotFound
		}
		return fmt.Errorf("update product: %w", database.MapIntegrity(err))
	}

	return linkCategories(ctx, q, p.ID, p.CategoryIDs)
}

// DeleteProduct is rejected with database.ErrIntegrity while order items
// reference the product.
func DeleteProduct(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", database.MapIntegrity(err))
	}
	return expectRow(result, database.ErrProductNotFound)
}

func ListPricesByCategory(ctx context.Context, q database.Querier, categoryID int64) ([]decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.price
		FROM products p
		JOIN product_categories pc ON pc.product_id = p.id
		WHERE pc.category_id = $1`,
		categoryID)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	defer rows.Close()

	var prices []decimal.Decimal
	for rows.Next() {
		var price decimal.Decimal
		if err := rows.Scan(&price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		prices = append(prices, price)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return prices, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return GetProduct(ctx, s.db, id)
}

func (s *Store) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, int64, error) {
	return ListProducts(ctx, s.db, limit, offset)
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		return CreateProduct(ctx, tx, p)
	})
	if err != nil {
		p.ID = 0
	}
	return err
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	return database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		return UpdateProduct(ctx, tx, p)
	})
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	return DeleteProduct(ctx, s.db, id)
}

func (s *Store) ListPricesByCategory(ctx context.Context, categoryID int64) ([]decimal.Decimal, error) {
	return ListPricesByCategory(ctx, s.db, categoryID)
}
