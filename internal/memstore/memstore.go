// Package memstore keeps every repository in process memory. It enforces
// the same keys and foreign keys as the PostgreSQL schema and is used by
// tests and local runs without a database.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/safar/go-shop-api/internal/store"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu sync.RWMutex

	nextID int64
	now    func() time.Time

	users      map[int64]models.User
	categories map[int64]models.Category
	products   map[int64]models.Product
	customers  map[int64]models.Customer
	orders     map[int64]models.Order
	items      map[int64]models.OrderItem
}

func New() *Store {
	return &Store{
		now:        time.Now,
		users:      make(map[int64]models.User),
		categories: make(map[int64]models.Category),
		products:   make(map[int64]models.Product),
		customers:  make(map[int64]models.Customer),
		orders:     make(map[int64]models.Order),
		items:      make(map[int64]models.OrderItem),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func integrity(constraint string) error {
	return &database.IntegrityError{Constraint: constraint, Err: database.ErrIntegrity}
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Categories

func (s *Store) GetCategory(_ context.Context, id int64) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, database.ErrCategoryNotFound
	}
	return &c, nil
}

func (s *Store) ListChildren(_ context.Context, parentID int64) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Category
	for _, c := range s.categories {
		if c.ParentID != nil && *c.ParentID == parentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListCategories(_ context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SlugExists(_ context.Context, parentID *int64, slug string, excludeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slugTaken(parentID, slug, excludeID), nil
}

func (s *Store) slugTaken(parentID *int64, slug string, excludeID int64) bool {
	for _, c := range s.categories {
		if c.ID != excludeID && c.Slug == slug && sameParent(c.ParentID, parentID) {
			return true
		}
	}
	return false
}

func (s *Store) CreateCategory(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ParentID != nil {
		if _, ok := s.categories[*c.ParentID]; !ok {
			return integrity("categories_parent_id_fkey")
		}
	}
	if s.slugTaken(c.ParentID, c.Slug, 0) {
		return integrity("uq_categories_parent_slug")
	}

	c.ID = s.id()
	s.categories[c.ID] = *c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[c.ID]; !ok {
		return database.ErrCategoryNotFound
	}
	if c.ParentID != nil {
		if _, ok := s.categories[*c.ParentID]; !ok {
			return integrity("categories_parent_id_fkey")
		}
	}
	if s.slugTaken(c.ParentID, c.Slug, c.ID) {
		return integrity("uq_categories_parent_slug")
	}

	s.categories[c.ID] = *c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return database.ErrCategoryNotFound
	}

	removed := map[int64]bool{id: true}
	for grew := true; grew; {
		grew = false
		for _, c := range s.categories {
			if c.ParentID != nil && removed[*c.ParentID] && !removed[c.ID] {
				removed[c.ID] = true
				grew = true
			}
		}
	}

	for cid := range removed {
		delete(s.categories, cid)
	}
	for pid, p := range s.products {
		kept := p.CategoryIDs[:0:0]
		for _, cid := range p.CategoryIDs {
			if !removed[cid] {
				kept = append(kept, cid)
			}
		}
		p.CategoryIDs = kept
		s.products[pid] = p
	}
	return nil
}

// Products

func (s *Store) withCategoryNames(p models.Product) models.Product {
	p.CategoryIDs = append([]int64{}, p.CategoryIDs...)
	p.CategoryNames = make([]string, 0, len(p.CategoryIDs))
	for _, cid := range p.CategoryIDs {
		p.CategoryNames = append(p.CategoryNames, s.categories[cid].Name)
	}
	return p
}

func (s *Store) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, database.ErrProductNotFound
	}
	p = s.withCategoryNames(p)
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, limit, offset int) ([]models.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		all = append(all, s.withCategoryNames(p))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return window(all, limit, offset), int64(len(all)), nil
}

func (s *Store) checkCategories(ids []int64) error {
	for _, cid := range ids {
		if _, ok := s.categories[cid]; !ok {
			return integrity("product_categories_category_id_fkey")
		}
	}
	return nil
}

func (s *Store) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCategories(p.CategoryIDs); err != nil {
		return err
	}

	p.ID = s.id()
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = s.withCategoryNames(*p)
	*p = s.withCategoryNames(*p)
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return database.ErrProductNotFound
	}
	if err := s.checkCategories(p.CategoryIDs); err != nil {
		return err
	}

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	s.products[p.ID] = s.withCategoryNames(*p)
	*p = s.withCategoryNames(*p)
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return database.ErrProductNotFound
	}
	for _, it := range s.items {
		if it.ProductID == id {
			return integrity("order_items_product_id_fkey")
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListPricesByCategory(_ context.Context, categoryID int64) ([]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var prices []decimal.Decimal
	for _, p := range s.products {
		for _, cid := range p.CategoryIDs {
			if cid == categoryID {
				prices = append(prices, p.Price)
				break
			}
		}
	}
	return prices, nil
}

// Users and customers

func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.User
	for _, u := range s.users {
		if u.Email != "" && strings.EqualFold(u.Email, email) && (found == nil || u.ID < found.ID) {
			u := u
			found = &u
		}
	}
	if found == nil {
		return nil, database.ErrUserNotFound
	}
	return found, nil
}

func (s *Store) FindUserBySubject(_ context.Context, sub string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if c.OIDCSub != nil && *c.OIDCSub == sub {
			if u, ok := s.users[c.UserID]; ok {
				return &u, nil
			}
		}
	}
	return nil, database.ErrUserNotFound
}

func copyCustomer(c models.Customer) *models.Customer {
	if c.OIDCSub != nil {
		sub := *c.OIDCSub
		c.OIDCSub = &sub
	}
	if c.LastLogin != nil {
		at := *c.LastLogin
		c.LastLogin = &at
	}
	return &c
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, database.ErrCustomerNotFound
	}
	return copyCustomer(c), nil
}

func (s *Store) GetCustomerByUser(_ context.Context, userID int64) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if c.UserID == userID {
			return copyCustomer(c), nil
		}
	}
	return nil, database.ErrCustomerNotFound
}

func (s *Store) ListCustomers(_ context.Context, limit, offset int) ([]models.Customer, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		all = append(all, *copyCustomer(c))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return window(all, limit, offset), int64(len(all)), nil
}

func (s *Store) CustomerEmailTaken(_ context.Context, email string, excludeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emailTaken(email, excludeID), nil
}

func (s *Store) emailTaken(email string, excludeID int64) bool {
	for _, c := range s.customers {
		if c.ID != excludeID && c.Email == email {
			return true
		}
	}
	return false
}

func (s *Store) checkCustomer(c *models.Customer) error {
	if _, ok := s.users[c.UserID]; !ok {
		return integrity("customers_user_id_fkey")
	}
	if s.emailTaken(c.Email, c.ID) {
		return integrity("customers_email_key")
	}
	for _, other := range s.customers {
		if other.ID == c.ID {
			continue
		}
		if other.UserID == c.UserID {
			return integrity("customers_user_id_key")
		}
		if c.OIDCSub != nil && other.OIDCSub != nil && *other.OIDCSub == *c.OIDCSub {
			return integrity("customers_oidc_sub_key")
		}
	}
	return nil
}

func (s *Store) CreateCustomer(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCustomer(c)
}

func (s *Store) insertCustomer(c *models.Customer) error {
	c.ID = 0
	if err := s.checkCustomer(c); err != nil {
		return err
	}
	c.ID = s.id()
	c.CreatedAt = s.now()
	s.customers[c.ID] = *copyCustomer(*c)
	return nil
}

func (s *Store) UpdateCustomer(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceCustomer(c)
}

func (s *Store) replaceCustomer(c *models.Customer) error {
	existing, ok := s.customers[c.ID]
	if !ok {
		return database.ErrCustomerNotFound
	}
	if err := s.checkCustomer(c); err != nil {
		return err
	}
	c.CreatedAt = existing.CreatedAt
	s.customers[c.ID] = *copyCustomer(*c)
	return nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return database.ErrCustomerNotFound
	}
	for _, o := range s.orders {
		if o.CustomerID == id {
			return integrity("orders_customer_id_fkey")
		}
	}
	delete(s.customers, id)
	return nil
}

// SaveIdentity inserts or updates the user and the customer together.
// Nothing is written when either fails.
func (s *Store) SaveIdentity(_ context.Context, u *models.User, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.users {
		if other.ID != u.ID && other.Username == u.Username {
			return integrity("users_username_key")
		}
	}

	prevUser, hadUser := s.users[u.ID]
	now := s.now()
	if u.ID == 0 {
		u.ID = s.id()
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.ID] = *u

	c.UserID = u.ID
	var err error
	if c.ID == 0 {
		err = s.insertCustomer(c)
	} else {
		err = s.replaceCustomer(c)
	}
	if err != nil {
		if hadUser {
			s.users[u.ID] = prevUser
		} else {
			delete(s.users, u.ID)
			u.ID = 0
		}
		return err
	}
	return nil
}

// Orders

func (s *Store) orderWithItems(o models.Order) models.Order {
	o.Items = []models.OrderItem{}
	for _, it := range s.items {
		if it.OrderID == o.ID {
			it.ProductName = s.products[it.ProductID].Name
			o.Items = append(o.Items, it)
		}
	}
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].ID < o.Items[j].ID })
	return o
}

func (s *Store) checkItem(it models.OrderItem) error {
	if _, ok := s.orders[it.OrderID]; !ok {
		return integrity("order_items_order_id_fkey")
	}
	if _, ok := s.products[it.ProductID]; !ok {
		return integrity("order_items_product_id_fkey")
	}
	for _, other := range s.items {
		if other.ID != it.ID && other.OrderID == it.OrderID && other.ProductID == it.ProductID {
			return integrity("uq_order_items_order_product")
		}
	}
	return nil
}

// insertItems writes items for orderID or nothing at all.
func (s *Store) insertItems(orderID int64, items []models.OrderItem) error {
	var added []int64
	for i := range items {
		items[i].OrderID = orderID
		items[i].ID = 0
		if err := s.checkItem(items[i]); err != nil {
			for _, id := range added {
				delete(s.items, id)
			}
			return err
		}
		items[i].ID = s.id()
		items[i].ProductName = s.products[items[i].ProductID].Name
		s.items[items[i].ID] = items[i]
		added = append(added, items[i].ID)
	}
	return nil
}

func (s *Store) CreateOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[o.CustomerID]; !ok {
		return integrity("orders_customer_id_fkey")
	}

	o.ID = s.id()
	o.PlacedAt = s.now()
	header := *o
	header.Items = nil
	s.orders[o.ID] = header

	if err := s.insertItems(o.ID, o.Items); err != nil {
		delete(s.orders, o.ID)
		o.ID = 0
		return err
	}
	return nil
}

func (s *Store) UpdateOrder(_ context.Context, o *models.Order, replaceItems bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[o.ID]
	if !ok {
		return database.ErrOrderNotFound
	}
	if _, ok := s.customers[o.CustomerID]; !ok {
		return integrity("orders_customer_id_fkey")
	}

	if replaceItems {
		previous := make(map[int64]models.OrderItem)
		for id, it := range s.items {
			if it.OrderID == o.ID {
				previous[id] = it
				delete(s.items, id)
			}
		}
		if err := s.insertItems(o.ID, o.Items); err != nil {
			for id, it := range previous {
				s.items[id] = it
			}
			return err
		}
	}

	o.PlacedAt = existing.PlacedAt
	header := *o
	header.Items = nil
	s.orders[o.ID] = header
	*o = s.orderWithItems(header)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	o = s.orderWithItems(o)
	return &o, nil
}

func (s *Store) ListOrders(_ context.Context, customerID *int64, cursor store.OrderCursor, limit int) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Order
	for _, o := range s.orders {
		if customerID != nil && o.CustomerID != *customerID {
			continue
		}
		if !cursor.IsZero() && !before(o, cursor) {
			continue
		}
		out = append(out, s.orderWithItems(o))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].PlacedAt.After(out[j].PlacedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func before(o models.Order, c store.OrderCursor) bool {
	if o.PlacedAt.Equal(c.PlacedAt) {
		return o.ID < c.ID
	}
	return o.PlacedAt.Before(c.PlacedAt)
}

func (s *Store) DeleteOrder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return database.ErrOrderNotFound
	}
	for itemID, it := range s.items {
		if it.OrderID == id {
			delete(s.items, itemID)
		}
	}
	delete(s.orders, id)
	return nil
}

// Order items

func (s *Store) GetOrderItem(_ context.Context, id int64) (*models.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return nil, database.ErrOrderItemNotFound
	}
	it.ProductName = s.products[it.ProductID].Name
	return &it, nil
}

func (s *Store) ListOrderItems(_ context.Context, orderID *int64) ([]models.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.OrderItem{}
	for _, it := range s.items {
		if orderID != nil && it.OrderID != *orderID {
			continue
		}
		it.ProductName = s.products[it.ProductID].Name
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) OrderItemExists(_ context.Context, orderID, productID, excludeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, it := range s.items {
		if it.ID != excludeID && it.OrderID == orderID && it.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateOrderItem(_ context.Context, it *models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it.ID = 0
	if err := s.checkItem(*it); err != nil {
		return err
	}
	it.ID = s.id()
	it.ProductName = s.products[it.ProductID].Name
	s.items[it.ID] = *it
	return nil
}

func (s *Store) UpdateOrderItem(_ context.Context, it *models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[it.ID]; !ok {
		return database.ErrOrderItemNotFound
	}
	if err := s.checkItem(*it); err != nil {
		return err
	}
	it.ProductName = s.products[it.ProductID].Name
	s.items[it.ID] = *it
	return nil
}

func (s *Store) DeleteOrderItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return database.ErrOrderItemNotFound
	}
	delete(s.items, id)
	return nil
}

func window[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
