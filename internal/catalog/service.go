package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/logging"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/shopspring/decimal"
)

const (
	msgRequired    = "This field is required."
	msgNotNegative = "Ensure this value is greater than or equal to 0."
)

// maxPrice is the first value NUMERIC(10,2) cannot hold.
var maxPrice = decimal.New(1, 8)

type Repository interface {
	CategoryReader
	SlugChecker
	PriceReader

	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]models.Product, int64, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CategoryInput struct {
	Name     string
	Slug     string
	ParentID *int64
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryIDs []int64
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*Node, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	return Tree(ctx, s.repo, c)
}

// ListCategories returns every category with its nested children, built
// from a single listing.
func (s *Service) ListCategories(ctx context.Context) ([]*Node, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return NewIndex(cats).Forest(ctx)
}

func (s *Service) Ancestors(ctx context.Context, id int64) ([]models.Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	return Ancestors(ctx, s.repo, c)
}

func (s *Service) Descendants(ctx context.Context, id int64) ([]models.Category, error) {
	if _, err := s.repo.GetCategory(ctx, id); err != nil {
		return nil, err
	}
	return Descendants(ctx, s.repo, id)
}

func (s *Service) Tree(ctx context.Context, id int64) (*Node, error) {
	return s.GetCategory(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	c := &models.Category{Name: strings.TrimSpace(in.Name), Slug: in.Slug, ParentID: in.ParentID}
	if err := s.prepareCategory(ctx, c); err != nil {
		return nil, err
	}

	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	logging.Ctx(ctx).Info().Int64("category_id", c.ID).Str("slug", c.Slug).Msg("category created")
	return c, nil
}

// UpdateCategory replaces name, slug and parent. A parent inside the
// category's own subtree is rejected.
func (s *Service) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (*models.Category, error) {
	existing, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		if *in.ParentID == id {
			return nil, apperr.NewValidation("parent", "A category cannot be its own parent.")
		}
		cycle, err := IsDescendant(ctx, s.repo, id, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if cycle {
			return nil, apperr.NewValidation("parent", "A category cannot be moved below its own descendant (cycle).")
		}
	}

	c := &models.Category{ID: existing.ID, Name: strings.TrimSpace(in.Name), Slug: in.Slug, ParentID: in.ParentID}
	if err := s.prepareCategory(ctx, c); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

func (s *Service) prepareCategory(ctx context.Context, c *models.Category) error {
	var v apperr.ValidationError
	if c.Name == "" {
		v.Add("name", msgRequired)
	}
	if c.ParentID != nil {
		if _, err := s.repo.GetCategory(ctx, *c.ParentID); err != nil {
			if !errors.Is(err, database.ErrNotFound) {
				return err
			}
			v.Add("parent", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *c.ParentID))
		}
	}
	if err := v.Err(); err != nil {
		return err
	}

	if c.Slug != "" {
		if !ValidSlug(c.Slug) {
			return apperr.NewValidation("slug", "Enter a valid slug consisting of letters, numbers, underscores or hyphens.")
		}
		taken, err := s.repo.SlugExists(ctx, c.ParentID, c.Slug, c.ID)
		if err != nil {
			return err
		}
		if taken {
			return apperr.NewValidation("slug", "A category with this slug already exists under the same parent.")
		}
		return nil
	}

	slug, err := UniqueSlug(ctx, s.repo, c.ParentID, Slugify(c.Name), c.ID)
	if err != nil {
		return err
	}
	c.Slug = slug
	return nil
}

// DeleteCategory removes the category, its subtree and their product
// links. Products are kept.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Int64("category_id", id).Msg("category subtree deleted")
	return nil
}

func (s *Service) AveragePrice(ctx context.Context, categoryID int64) (decimal.Decimal, error) {
	return AveragePrice(ctx, s.repo, categoryID)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, int64, error) {
	return s.repo.ListProducts(ctx, limit, offset)
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	p := productFromInput(0, in)
	if err := s.validateProduct(ctx, p); err != nil {
		return nil, err
	}

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*models.Product, error) {
	if _, err := s.repo.GetProduct(ctx, id); err != nil {
		return nil, err
	}

	p := productFromInput(id, in)
	if err := s.validateProduct(ctx, p); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// DeleteProduct fails with database.ErrIntegrity while order lines
// reference the product.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.DeleteProduct(ctx, id)
}

func productFromInput(id int64, in ProductInput) *models.Product {
	return &models.Product{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		CategoryIDs: dedupe(in.CategoryIDs),
	}
}

func (s *Service) validateProduct(ctx context.Context, p *models.Product) error {
	var v apperr.ValidationError
	if p.Name == "" {
		v.Add("name", msgRequired)
	}
	switch {
	case p.Price.IsNegative():
		v.Add("price", msgNotNegative)
	case !p.Price.Equal(p.Price.Round(2)):
		v.Add("price", "Ensure that there are no more than 2 decimal places.")
	case p.Price.GreaterThanOrEqual(maxPrice):
		v.Add("price", "Ensure that there are no more than 10 digits in total.")
	}
	if p.Stock < 0 {
		v.Add("stock", msgNotNegative)
	}

	p.CategoryNames = p.CategoryNames[:0]
	for _, id := range p.CategoryIDs {
		c, err := s.repo.GetCategory(ctx, id)
		if err != nil {
			if !errors.Is(err, database.ErrNotFound) {
				return err
			}
			v.Add("categories", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
			continue
		}
		p.CategoryNames = append(p.CategoryNames, c.Name)
	}

	return v.Err()
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
