package api

import (
	"net/http"

	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/catalog"
	"github.com/safar/go-shop-api/internal/store"
	"github.com/shopspring/decimal"
)

type categoryRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Slug   string `json:"slug" validate:"omitempty,max=100"`
	Parent *int64 `json:"parent" validate:"omitnil,gt=0"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if nodes == nil {
		nodes = []*catalog.Node{}
	}
	respondJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	category, err := s.catalog.CreateCategory(r.Context(), catalog.CategoryInput{
		Name:     req.Name,
		Slug:     req.Slug,
		ParentID: req.Parent,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	node, err := s.catalog.GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, node)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req categoryRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	category, err := s.catalog.UpdateCategory(r.Context(), id, catalog.CategoryInput{
		Name:     req.Name,
		Slug:     req.Slug,
		ParentID: req.Parent,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, category)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.catalog.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAncestors(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ancestors, err := s.catalog.Ancestors(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ancestors)
}

func (s *Server) handleDescendants(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	descendants, err := s.catalog.Descendants(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, descendants)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tree, err := s.catalog.Tree(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tree)
}

type averagePriceResponse struct {
	CategoryID   int64  `json:"category_id"`
	AveragePrice string `json:"average_price"`
}

func (s *Server) handleAveragePrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	avg, err := s.catalog.AveragePrice(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, averagePriceResponse{CategoryID: id, AveragePrice: avg.StringFixed(2)})
}

type productRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"omitnil,gte=0"`
	Stock       int              `json:"stock" validate:"gte=0"`
	Categories  []int64          `json:"categories" validate:"dive,gt=0"`
}

func (s *Server) decodeProduct(w http.ResponseWriter, r *http.Request) (catalog.ProductInput, error) {
	var req productRequest
	if err := s.decode(w, r, &req); err != nil {
		return catalog.ProductInput{}, err
	}
	if req.Price == nil {
		return catalog.ProductInput{}, apperr.NewValidation("price", "This field is required.")
	}

	return catalog.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Stock:       req.Stock,
		CategoryIDs: req.Categories,
	}, nil
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize, limit, offset := pageParams(r)

	products, total, err := s.catalog.ListProducts(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, store.NewOffsetPage(products, total, page, pageSize))
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := s.decodeProduct(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	product, err := s.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	product, err := s.catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in, err := s.decodeProduct(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	product, err := s.catalog.UpdateProduct(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.catalog.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
