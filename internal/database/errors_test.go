package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      ErrorClass
		retryable bool
	}{
		{"nil", nil, ErrorClassPermanent, false},
		{"plain", errors.New("boom"), ErrorClassPermanent, false},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization, true},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrorClassDeadlock, true},
		{"lock timeout", &pq.Error{Code: "55P03"}, ErrorClassTransient, true},
		{"unique", &pq.Error{Code: "23505"}, ErrorClassPermanent, false},
		{"wrapped deadlock", fmt.Errorf("insert order: %w", &pq.Error{Code: "40P01"}), ErrorClassDeadlock, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestMapIntegrity(t *testing.T) {
	fk := fmt.Errorf("delete product: %w", &pq.Error{Code: "23503", Constraint: "order_items_product_id_fkey"})

	err := MapIntegrity(fk)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Expected ErrIntegrity, got %v", err)
	}
	if !IsForeignKeyViolation(err) {
		t.Errorf("Expected the pq error to stay reachable")
	}

	var integrity *IntegrityError
	if !errors.As(err, &integrity) || integrity.Constraint != "order_items_product_id_fkey" {
		t.Errorf("Unexpected constraint: %+v", integrity)
	}

	plain := errors.New("connection reset")
	if MapIntegrity(plain) != plain {
		t.Errorf("Expected non-constraint errors to pass through")
	}
	if MapIntegrity(&pq.Error{Code: "40001"}) == nil || errors.Is(MapIntegrity(&pq.Error{Code: "40001"}), ErrIntegrity) {
		t.Errorf("Serialization failures are not integrity errors")
	}
}

func TestNotFoundFamily(t *testing.T) {
	for _, err := range []error{ErrUserNotFound, ErrCustomerNotFound, ErrCategoryNotFound, ErrProductNotFound, ErrOrderNotFound, ErrOrderItemNotFound} {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%v does not wrap ErrNotFound", err)
		}
	}
}
