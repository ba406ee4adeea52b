package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/catalog"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/shopspring/decimal"
)

func TestCategoryHierarchy(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := catalog.NewService(repo)

	root, err := svc.CreateCategory(ctx, catalog.CategoryInput{Name: "Electronics"})
	if err != nil {
		t.Fatalf("Create root: %v", err)
	}
	child, err := svc.CreateCategory(ctx, catalog.CategoryInput{Name: "Laptops", ParentID: &root.ID})
	if err != nil {
		t.Fatalf("Create child: %v", err)
	}
	grandchild, err := svc.CreateCategory(ctx, catalog.CategoryInput{Name: "Gaming", ParentID: &child.ID})
	if err != nil {
		t.Fatalf("Create grandchild: %v", err)
	}

	ancestors, err := svc.Ancestors(ctx, grandchild.ID)
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	if len(ancestors) != 2 || ancestors[0].ID != root.ID || ancestors[1].ID != child.ID {
		t.Errorf("Expected ancestors [root, child], got %+v", ancestors)
	}

	descendants, err := svc.Descendants(ctx, root.ID)
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	if len(descendants) != 2 {
		t.Errorf("Expected 2 descendants, got %d", len(descendants))
	}

	if err := svc.DeleteCategory(ctx, root.ID); err != nil {
		t.Fatalf("Delete root: %v", err)
	}
	if _, err := repo.GetCategory(ctx, grandchild.ID); !errors.Is(err, database.ErrCategoryNotFound) {
		t.Errorf("Expected grandchild removed with its root, got %v", err)
	}
}

func TestCategorySlugSuffix(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := catalog.NewService(repo)

	want := []string{"phones", "phones-2", "phones-3"}
	for i, expected := range want {
		c, err := svc.CreateCategory(ctx, catalog.CategoryInput{Name: "Phones"})
		if err != nil {
			t.Fatalf("Create category %d: %v", i, err)
		}
		if c.Slug != expected {
			t.Errorf("Expected slug %s, got %s", expected, c.Slug)
		}
	}

	explicit := "phones"
	_, err := svc.CreateCategory(ctx, catalog.CategoryInput{Name: "Other", Slug: explicit})
	if _, ok := apperr.IsValidation(err); !ok {
		t.Errorf("Expected validation error for duplicate root slug, got %v", err)
	}

	// The partial unique index still guards root slugs below the service.
	err = repo.CreateCategory(ctx, &models.Category{Name: "Other", Slug: explicit})
	if !errors.Is(err, database.ErrIntegrity) {
		t.Errorf("Expected integrity error for duplicate root slug, got %v", err)
	}
}

func TestAveragePrice(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := catalog.NewService(repo)

	laptops, err := svc.CreateCategory(ctx, catalog.CategoryInput{Name: "Laptops"})
	if err != nil {
		t.Fatalf("Create category: %v", err)
	}
	empty, err := svc.CreateCategory(ctx, catalog.CategoryInput{Name: "Empty"})
	if err != nil {
		t.Fatalf("Create category: %v", err)
	}

	_, err = svc.CreateProduct(ctx, catalog.ProductInput{
		Name:        "Laptop",
		Price:       decimal.RequireFromString("1000.00"),
		Stock:       3,
		CategoryIDs: []int64{laptops.ID},
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	avg, err := svc.AveragePrice(ctx, laptops.ID)
	if err != nil {
		t.Fatalf("Average price: %v", err)
	}
	if avg.StringFixed(2) != "1000.00" {
		t.Errorf("Expected average 1000.00, got %s", avg.StringFixed(2))
	}

	avg, err = svc.AveragePrice(ctx, empty.ID)
	if err != nil {
		t.Fatalf("Average price: %v", err)
	}
	if !avg.IsZero() {
		t.Errorf("Expected average 0, got %s", avg)
	}
}

func TestProductCategoryNames(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	a := &models.Category{Name: "Audio", Slug: "audio"}
	b := &models.Category{Name: "Bluetooth", Slug: "bluetooth"}
	for _, c := range []*models.Category{a, b} {
		if err := repo.CreateCategory(ctx, c); err != nil {
			t.Fatalf("Create category: %v", err)
		}
	}

	p := &models.Product{Name: "Headset", Price: decimal.RequireFromString("79.99"), CategoryIDs: []int64{a.ID, b.ID}}
	if err := repo.CreateProduct(ctx, p); err != nil {
		t.Fatalf("Create product: %v", err)
	}

	got, err := repo.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if len(got.CategoryNames) != 2 {
		t.Errorf("Expected 2 category names, got %v", got.CategoryNames)
	}
	if !got.Price.Equal(decimal.RequireFromString("79.99")) {
		t.Errorf("Expected price 79.99, got %s", got.Price)
	}

	p.CategoryIDs = []int64{b.ID}
	if err := repo.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("Update product: %v", err)
	}
	got, err = repo.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if len(got.CategoryIDs) != 1 || got.CategoryIDs[0] != b.ID {
		t.Errorf("Expected categories [%d], got %v", b.ID, got.CategoryIDs)
	}
}
