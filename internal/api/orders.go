package api

import (
	"net/http"
	"strconv"

	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/auth"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/safar/go-shop-api/internal/notify"
	"github.com/safar/go-shop-api/internal/orders"
	"github.com/shopspring/decimal"
)

type orderLineRequest struct {
	Product   int64            `json:"product" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gte=1"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"omitnil,gte=0"`
}

type orderRequest struct {
	Customer        *int64             `json:"customer" validate:"omitnil,gt=0"`
	Status          *string            `json:"status" validate:"omitnil,oneof=pending processing shipped completed cancelled"`
	ShippingAddress *string            `json:"shipping_address" validate:"omitnil,max=500"`
	Items           []orderLineRequest `json:"items" validate:"dive"`
}

func (req orderRequest) lines() []orders.ItemInput {
	if req.Items == nil {
		return nil
	}
	lines := make([]orders.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, orders.ItemInput{
			ProductID: item.Product,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return lines
}

type orderResponse struct {
	*models.Order
	TotalPrice string `json:"total_price"`
}

func newOrderResponse(o *models.Order) orderResponse {
	if o.Items == nil {
		o.Items = []models.OrderItem{}
	}
	return orderResponse{Order: o, TotalPrice: o.Total().StringFixed(2)}
}

type orderCreatedResponse struct {
	orderResponse
	Notifications []notify.Result `json:"notifications"`
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	customerID, err := queryID(r, "customer_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	page, err := s.orders.ListOrders(r.Context(), customerID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// handleCreateOrder responds 201 once the order commits, whatever the
// notification outcome.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in := orders.CreateInput{Items: req.lines()}
	switch p, ok := auth.FromContext(r.Context()); {
	case req.Customer != nil:
		in.CustomerID = *req.Customer
	case ok && p.Customer != nil:
		in.CustomerID = p.Customer.ID
	default:
		writeError(w, r, apperr.NewValidation("customer", "This field is required."))
		return
	}
	if req.Status != nil {
		in.Status = *req.Status
	}
	if req.ShippingAddress != nil {
		in.ShippingAddress = *req.ShippingAddress
	}

	placed, err := s.orders.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	notifications := placed.Notifications
	if notifications == nil {
		notifications = []notify.Result{}
	}
	respondJSON(w, http.StatusCreated, orderCreatedResponse{
		orderResponse: newOrderResponse(placed.Order),
		Notifications: notifications,
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	order, err := s.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newOrderResponse(order))
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req orderRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	order, err := s.orders.UpdateOrder(r.Context(), id, orders.UpdateInput{
		CustomerID:      req.Customer,
		Status:          req.Status,
		ShippingAddress: req.ShippingAddress,
		Items:           req.lines(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newOrderResponse(order))
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.orders.DeleteOrder(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type orderItemRequest struct {
	Order     int64            `json:"order" validate:"required"`
	Product   int64            `json:"product" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gte=1"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"omitnil,gte=0"`
}

func (req orderItemRequest) input() orders.ItemRequest {
	return orders.ItemRequest{
		OrderID:   req.Order,
		ProductID: req.Product,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
	}
}

func (s *Server) handleListOrderItems(w http.ResponseWriter, r *http.Request) {
	orderID, err := queryID(r, "order_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := s.orders.ListItems(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateOrderItem(w http.ResponseWriter, r *http.Request) {
	var req orderItemRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.orders.CreateItem(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetOrderItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.orders.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateOrderItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req orderItemRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.orders.ReplaceItem(r.Context(), id, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteOrderItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.orders.DeleteItem(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
