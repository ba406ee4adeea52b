package orders

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/logging"
	"github.com/safar/go-shop-api/internal/metrics"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/safar/go-shop-api/internal/notify"
	"github.com/safar/go-shop-api/internal/store"
	"github.com/shopspring/decimal"
)

// Column limits: unit_price is NUMERIC(10,2), quantity is INTEGER.
var maxUnitPrice = decimal.New(1, 8)

const maxQuantity = math.MaxInt32

type Repository interface {
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	UpdateOrder(ctx context.Context, order *models.Order, replaceItems bool) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, customerID *int64, cursor store.OrderCursor, limit int) ([]models.Order, error)
	DeleteOrder(ctx context.Context, id int64) error

	GetOrderItem(ctx context.Context, id int64) (*models.OrderItem, error)
	ListOrderItems(ctx context.Context, orderID *int64) ([]models.OrderItem, error)
	OrderItemExists(ctx context.Context, orderID, productID, excludeID int64) (bool, error)
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	UpdateOrderItem(ctx context.Context, item *models.OrderItem) error
	DeleteOrderItem(ctx context.Context, id int64) error
}

type Notifier interface {
	OrderPlaced(ctx context.Context, customer *models.Customer, order *models.Order) []notify.Result
}

type Service struct {
	repo     Repository
	notifier Notifier
}

// NewService accepts a nil notifier, in which case no notifications are sent.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

type ItemInput struct {
	ProductID int64
	Quantity  int
	// UnitPrice freezes the product's current price when nil.
	UnitPrice *decimal.Decimal
}

type CreateInput struct {
	CustomerID      int64
	Status          string
	ShippingAddress string
	Items           []ItemInput
}

// UpdateInput leaves nil fields unchanged. A non-nil Items replaces every
// line of the order.
type UpdateInput struct {
	CustomerID      *int64
	Status          *string
	ShippingAddress *string
	Items           []ItemInput
}

type Placed struct {
	Order         *models.Order
	Notifications []notify.Result
}

func validateStatus(v *apperr.ValidationError, status string) {
	if !models.ValidOrderStatus(status) {
		v.Add("status", fmt.Sprintf("\"%s\" is not a valid choice.", status))
	}
}

func validatePrice(v *apperr.ValidationError, field string, price *decimal.Decimal) {
	if price == nil {
		return
	}
	switch {
	case price.IsNegative():
		v.Add(field, "Ensure this value is greater than or equal to 0.")
	case !price.Equal(price.Round(2)):
		v.Add(field, "Ensure that there are no more than 2 decimal places.")
	case price.GreaterThanOrEqual(maxUnitPrice):
		v.Add(field, "Ensure that there are no more than 10 digits in total.")
	}
}

func validateQuantity(v *apperr.ValidationError, field string, quantity int) {
	switch {
	case quantity < 1:
		v.Add(field, "Ensure this value is greater than or equal to 1.")
	case quantity > maxQuantity:
		v.Add(field, fmt.Sprintf("Ensure this value is less than or equal to %d.", maxQuantity))
	}
}

func validateItems(v *apperr.ValidationError, items []ItemInput) {
	if len(items) == 0 {
		v.Add("items", "An order needs at least one item.")
		return
	}

	seen := make(map[int64]int, len(items))
	for i, item := range items {
		prefix := fmt.Sprintf("items[%d].", i)
		if item.ProductID <= 0 {
			v.Add(prefix+"product", "This field is required.")
		} else if first, dup := seen[item.ProductID]; dup {
			v.Add(prefix+"product", fmt.Sprintf("Duplicate product; already listed at items[%d].", first))
		} else {
			seen[item.ProductID] = i
		}
		validateQuantity(v, prefix+"quantity", item.Quantity)
		validatePrice(v, prefix+"unit_price", item.UnitPrice)
	}
}

// buildItems resolves every product and freezes the unit prices.
func (s *Service) buildItems(ctx context.Context, inputs []ItemInput) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(inputs))
	for _, in := range inputs {
		product, err := s.repo.GetProduct(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}

		price := product.Price
		if in.UnitPrice != nil {
			price = *in.UnitPrice
		}
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    in.Quantity,
			UnitPrice:   price,
		})
	}
	return items, nil
}

// CreateOrder stores the order and its items atomically, then notifies the
// customer and the admin. Notification failures never fail the order.
func (s *Service) CreateOrder(ctx context.Context, in CreateInput) (*Placed, error) {
	if in.Status == "" {
		in.Status = models.OrderStatusPending
	}

	var v apperr.ValidationError
	validateStatus(&v, in.Status)
	validateItems(&v, in.Items)
	if err := v.Err(); err != nil {
		return nil, err
	}

	customer, err := s.repo.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	items, err := s.buildItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		CustomerID:      customer.ID,
		Status:          in.Status,
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		Items:           items,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	metrics.OrdersCreated.Inc()
	logging.Ctx(ctx).Info().
		Int64("order_id", order.ID).
		Int64("customer_id", customer.ID).
		Int("items", len(order.Items)).
		Str("total", order.Total().StringFixed(2)).
		Msg("order created")

	placed := &Placed{Order: order}
	if s.notifier != nil {
		placed.Notifications = s.notifier.OrderPlaced(ctx, customer, order)
	}
	return placed, nil
}

func (s *Service) UpdateOrder(ctx context.Context, id int64, in UpdateInput) (*models.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	var v apperr.ValidationError
	if in.Status != nil {
		validateStatus(&v, *in.Status)
	}
	replace := in.Items != nil
	if replace {
		validateItems(&v, in.Items)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if in.CustomerID != nil {
		customer, err := s.repo.GetCustomer(ctx, *in.CustomerID)
		if err != nil {
			return nil, err
		}
		order.CustomerID = customer.ID
	}
	if in.Status != nil {
		order.Status = *in.Status
	}
	if in.ShippingAddress != nil {
		order.ShippingAddress = strings.TrimSpace(*in.ShippingAddress)
	}
	if replace {
		if order.Items, err = s.buildItems(ctx, in.Items); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateOrder(ctx, order, replace); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders pages newest first. An empty cursor starts at the newest order.
func (s *Service) ListOrders(ctx context.Context, customerID *int64, cursor string, limit int) (*store.CursorPage[models.Order], error) {
	position, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, apperr.NewValidation("cursor", "Invalid cursor.")
	}
	if limit < 1 {
		limit = store.DefaultPageSize
	}
	if limit > store.MaxPageSize {
		limit = store.MaxPageSize
	}

	orders, err := s.repo.ListOrders(ctx, customerID, position, limit+1)
	if err != nil {
		return nil, err
	}

	page := &store.CursorPage[models.Order]{Items: orders}
	if len(orders) > limit {
		page.Items = orders[:limit]
		page.HasMore = true
		last := page.Items[limit-1]
		page.NextCursor = store.EncodeCursor(store.OrderCursor{PlacedAt: last.PlacedAt, ID: last.ID})
	}
	if page.Items == nil {
		page.Items = []models.Order{}
	}
	return page, nil
}

// DeleteOrder removes the order and, by cascade, its items.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Int64("order_id", id).Msg("order deleted")
	return nil
}

type ItemRequest struct {
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice *decimal.Decimal
}

func (s *Service) GetItem(ctx context.Context, id int64) (*models.OrderItem, error) {
	return s.repo.GetOrderItem(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, orderID *int64) ([]models.OrderItem, error) {
	return s.repo.ListOrderItems(ctx, orderID)
}

func (s *Service) CreateItem(ctx context.Context, in ItemRequest) (*models.OrderItem, error) {
	item, err := s.prepareItem(ctx, 0, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateOrderItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create order item: %w", err)
	}
	return item, nil
}

func (s *Service) ReplaceItem(ctx context.Context, id int64, in ItemRequest) (*models.OrderItem, error) {
	if _, err := s.repo.GetOrderItem(ctx, id); err != nil {
		return nil, err
	}

	item, err := s.prepareItem(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateOrderItem(ctx, item); err != nil {
		return nil, fmt.Errorf("update order item: %w", err)
	}
	return item, nil
}

func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	return s.repo.DeleteOrderItem(ctx, id)
}

func (s *Service) prepareItem(ctx context.Context, id int64, in ItemRequest) (*models.OrderItem, error) {
	var v apperr.ValidationError
	if in.OrderID <= 0 {
		v.Add("order", "This field is required.")
	}
	if in.ProductID <= 0 {
		v.Add("product", "This field is required.")
	}
	validateQuantity(&v, "quantity", in.Quantity)
	validatePrice(&v, "unit_price", in.UnitPrice)
	if err := v.Err(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetOrder(ctx, in.OrderID); err != nil {
		return nil, err
	}
	product, err := s.repo.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.OrderItemExists(ctx, in.OrderID, in.ProductID, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.NewValidation("non_field_errors", "The fields order, product must make a unique set.")
	}

	price := product.Price
	if in.UnitPrice != nil {
		price = *in.UnitPrice
	}

	return &models.OrderItem{
		ID:          id,
		OrderID:     in.OrderID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    in.Quantity,
		UnitPrice:   price,
	}, nil
}
