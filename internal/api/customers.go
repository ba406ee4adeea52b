package api

import (
	"net/http"

	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/auth"
	"github.com/safar/go-shop-api/internal/customers"
	"github.com/safar/go-shop-api/internal/store"
)

type customerRequest struct {
	UserID    *int64  `json:"user_id" validate:"omitnil,gt=0"`
	FirstName *string `json:"first_name" validate:"omitnil,max=100"`
	LastName  *string `json:"last_name" validate:"omitnil,max=100"`
	Email     *string `json:"email" validate:"omitnil,email"`
	Phone     *string `json:"phone" validate:"omitnil,max=20"`
}

func (req customerRequest) profile() customers.ProfileInput {
	return customers.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	}
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	page, pageSize, limit, offset := pageParams(r)

	list, total, err := s.customers.ListCustomers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, store.NewOffsetPage(list, total, page, pageSize))
}

// handleCreateCustomer attaches the profile to user_id, or to the
// authenticated user when user_id is omitted.
func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var userID int64
	switch p, ok := auth.FromContext(r.Context()); {
	case req.UserID != nil:
		userID = *req.UserID
	case ok:
		userID = p.User.ID
	default:
		writeError(w, r, apperr.NewValidation("user_id", "This field is required."))
		return
	}

	customer, err := s.customers.CreateCustomer(r.Context(), userID, req.profile())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, customer)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	customer, err := s.customers.GetCustomer(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req customerRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	customer, err := s.customers.UpdateCustomer(r.Context(), id, req.profile())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.customers.DeleteCustomer(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
