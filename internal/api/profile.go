package api

import (
	"net/http"

	"github.com/safar/go-shop-api/internal/auth"
	"github.com/safar/go-shop-api/internal/models"
)

type loginResponse struct {
	User     *models.User     `json:"user"`
	Customer *models.Customer `json:"customer"`
}

// handleLogin provisions or refreshes the local account for the verified
// bearer token. It runs outside Authenticate because first-time users have
// no local account yet.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	claims, err := s.auth.VerifyRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	identity, err := s.customers.Login(r.Context(), claims)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{User: identity.User, Customer: identity.Customer})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	respondJSON(w, http.StatusOK, p.Customer)
}

// handleUpdateProfile applies a partial update to the caller's own profile.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	var req customerRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	customer, err := s.customers.UpdateCustomer(r.Context(), p.Customer.ID, req.profile())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}
