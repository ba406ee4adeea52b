package apperr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	var v ValidationError
	assert.NoError(t, v.Err())

	v.Add("name", "This field is required.")
	v.Add("name", "ignored")
	v.Add("items[1].product", "Duplicate product.")

	err := fmt.Errorf("create category: %w", v.Err())
	got, ok := IsValidation(err)
	assert.True(t, ok)
	assert.Equal(t, "This field is required.", got.Fields["name"])
	assert.Equal(t, "validation failed: items[1].product: Duplicate product.; name: This field is required.", got.Error())
}
