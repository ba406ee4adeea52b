package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/memstore"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/safar/go-shop-api/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	calls   int
	results []notify.Result
}

func (f *fakeNotifier) OrderPlaced(_ context.Context, _ *models.Customer, _ *models.Order) []notify.Result {
	f.calls++
	return f.results
}

type fixture struct {
	repo     *memstore.Store
	customer *models.Customer
	laptop   *models.Product
	mouse    *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := memstore.New()

	user := &models.User{Username: "jane@example.com", Email: "jane@example.com"}
	customer := &models.Customer{FirstName: "Jane", Email: "jane@example.com", Phone: "0712345678"}
	require.NoError(t, repo.SaveIdentity(ctx, user, customer))

	laptop := &models.Product{Name: "Laptop", Price: decimal.RequireFromString("1000.00"), Stock: 5}
	require.NoError(t, repo.CreateProduct(ctx, laptop))
	mouse := &models.Product{Name: "Mouse", Price: decimal.RequireFromString("50.00"), Stock: 10}
	require.NoError(t, repo.CreateProduct(ctx, mouse))

	return &fixture{repo: repo, customer: customer, laptop: laptop, mouse: mouse}
}

func (f *fixture) input() CreateInput {
	return CreateInput{
		CustomerID:      f.customer.ID,
		ShippingAddress: "1 Moi Avenue, Nairobi",
		Items: []ItemInput{
			{ProductID: f.laptop.ID, Quantity: 1},
			{ProductID: f.mouse.ID, Quantity: 2},
		},
	}
}

func TestCreateOrderFreezesPricesAndTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	notifier := &fakeNotifier{}
	svc := NewService(f.repo, notifier)

	placed, err := svc.CreateOrder(ctx, f.input())
	require.NoError(t, err)

	order := placed.Order
	assert.Equal(t, models.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "1100.00", order.Total().StringFixed(2))
	assert.Equal(t, 1, notifier.calls)

	f.laptop.Price = decimal.RequireFromString("1200.00")
	require.NoError(t, f.repo.UpdateProduct(ctx, f.laptop))

	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "1100.00", stored.Total().StringFixed(2))
}

func TestCreateOrderExplicitUnitPrice(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.repo, nil)

	in := f.input()
	price := decimal.RequireFromString("900.00")
	in.Items[0].UnitPrice = &price

	placed, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", placed.Order.Total().StringFixed(2))
}

func TestCreateOrderRejectsDuplicateProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.repo, nil)

	in := f.input()
	in.Items = append(in.Items, ItemInput{ProductID: f.laptop.ID, Quantity: 3})

	_, err := svc.CreateOrder(ctx, in)
	verr, ok := apperr.IsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, verr.Fields, "items[2].product")

	page, err := svc.ListOrders(ctx, nil, "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.repo, nil)
	negative := decimal.RequireFromString("-1")
	huge := decimal.RequireFromString("1000000000.00")
	ceiling := decimal.RequireFromString("100000000.00")

	tests := []struct {
		name  string
		edit  func(in *CreateInput)
		field string
	}{
		{"no items", func(in *CreateInput) { in.Items = nil }, "items"},
		{"zero quantity", func(in *CreateInput) { in.Items[1].Quantity = 0 }, "items[1].quantity"},
		{"negative price", func(in *CreateInput) { in.Items[0].UnitPrice = &negative }, "items[0].unit_price"},
		{"bad status", func(in *CreateInput) { in.Status = "lost" }, "status"},
		{"price too large", func(in *CreateInput) { in.Items[0].UnitPrice = &huge }, "items[0].unit_price"},
		{"price at column limit", func(in *CreateInput) { in.Items[0].UnitPrice = &ceiling }, "items[0].unit_price"},
		{"quantity too large", func(in *CreateInput) { in.Items[1].Quantity = 3000000000 }, "items[1].quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input()
			tt.edit(&in)
			_, err := svc.CreateOrder(context.Background(), in)
			verr, ok := apperr.IsValidation(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestCreateOrderMissingReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.repo, nil)

	in := f.input()
	in.CustomerID = 999
	_, err := svc.CreateOrder(ctx, in)
	assert.True(t, errors.Is(err, database.ErrCustomerNotFound), "got %v", err)

	in = f.input()
	in.Items[1].ProductID = 999
	_, err = svc.CreateOrder(ctx, in)
	assert.True(t, errors.Is(err, database.ErrProductNotFound), "got %v", err)
}

func TestCreateOrderSurvivesNotificationFailures(t *testing.T) {
	f := newFixture(t)
	notifier := &fakeNotifier{results: []notify.Result{
		{Channel: notify.ChannelSMS, Status: notify.StatusFailed, Reason: "gateway down"},
		{Channel: notify.ChannelEmail, Status: notify.StatusFailed, Reason: "smtp refused"},
	}}
	svc := NewService(f.repo, notifier)

	placed, err := svc.CreateOrder(context.Background(), f.input())
	require.NoError(t, err)
	assert.NotZero(t, placed.Order.ID)
	assert.Len(t, placed.Notifications, 2)
}

func TestUpdateOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.repo, nil)

	placed, err := svc.CreateOrder(ctx, f.input())
	require.NoError(t, err)

	status := models.OrderStatusShipped
	order, err := svc.UpdateOrder(ctx, placed.Order.ID, UpdateInput{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, order.Status)
	assert.Len(t, order.Items, 2)

	order, err = svc.UpdateOrder(ctx, placed.Order.ID, UpdateInput{
		Items: []ItemInput{{ProductID: f.mouse.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "200.00", order.Total().StringFixed(2))

	_, err = svc.UpdateOrder(ctx, placed.Order.ID, UpdateInput{Items: []ItemInput{}})
	_, ok := apperr.IsValidation(err)
	assert.True(t, ok, "expected validation error, got %v", err)

	_, err = svc.UpdateOrder(ctx, 999, UpdateInput{Status: &status})
	assert.True(t, errors.Is(err, database.ErrOrderNotFound))
}

func TestListOrdersPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.repo, nil)

	var ids []int64
	for i := 0; i < 3; i++ {
		placed, err := svc.CreateOrder(ctx, f.input())
		require.NoError(t, err)
		ids = append(ids, placed.Order.ID)
	}

	first, err := svc.ListOrders(ctx, nil, "", 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.NextCursor)

	second, err := svc.ListOrders(ctx, &f.customer.ID, first.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.False(t, second.HasMore)

	got := []int64{first.Items[0].ID, first.Items[1].ID, second.Items[0].ID}
	assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, got)

	_, err = svc.ListOrders(ctx, nil, "not-a-cursor", 2)
	_, ok := apperr.IsValidation(err)
	assert.True(t, ok, "expected validation error, got %v", err)
}

func TestDeleteOrderRemovesItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.repo, nil)

	placed, err := svc.CreateOrder(ctx, f.input())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteOrder(ctx, placed.Order.ID))

	items, err := svc.ListItems(ctx, &placed.Order.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, errors.Is(svc.DeleteOrder(ctx, placed.Order.ID), database.ErrOrderNotFound))
}

func TestOrderItemLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.repo, nil)

	in := f.input()
	in.Items = in.Items[:1]
	placed, err := svc.CreateOrder(ctx, in)
	require.NoError(t, err)
	orderID := placed.Order.ID

	item, err := svc.CreateItem(ctx, ItemRequest{OrderID: orderID, ProductID: f.mouse.ID, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, "50", item.UnitPrice.String())
	assert.Equal(t, "Mouse", item.ProductName)

	_, err = svc.CreateItem(ctx, ItemRequest{OrderID: orderID, ProductID: f.mouse.ID, Quantity: 1})
	verr, ok := apperr.IsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, verr.Fields, "non_field_errors")

	updated, err := svc.ReplaceItem(ctx, item.ID, ItemRequest{OrderID: orderID, ProductID: f.mouse.ID, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)

	order, err := svc.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "1250.00", order.Total().StringFixed(2))

	require.NoError(t, svc.DeleteItem(ctx, item.ID))
	_, err = svc.GetItem(ctx, item.ID)
	assert.True(t, errors.Is(err, database.ErrOrderItemNotFound))

	_, err = svc.CreateItem(ctx, ItemRequest{OrderID: 999, ProductID: f.mouse.ID, Quantity: 1})
	assert.True(t, errors.Is(err, database.ErrOrderNotFound))
}

func TestOrderItemRejectsOutOfRangeValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(f.repo, nil)

	placed, err := svc.CreateOrder(ctx, f.input())
	require.NoError(t, err)

	huge := decimal.RequireFromString("1000000000.00")
	_, err = svc.CreateItem(ctx, ItemRequest{OrderID: placed.Order.ID, ProductID: f.mouse.ID, Quantity: 3000000000, UnitPrice: &huge})
	verr, ok := apperr.IsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, verr.Fields, "quantity")
	assert.Contains(t, verr.Fields, "unit_price")

	_, err = svc.ReplaceItem(ctx, placed.Order.Items[0].ID, ItemRequest{OrderID: placed.Order.ID, ProductID: f.laptop.ID, Quantity: 3000000000})
	verr, ok = apperr.IsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, verr.Fields, "quantity")
}
