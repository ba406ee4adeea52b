package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Electronics", "electronics"},
		{"Home & Garden", "home-garden"},
		{"  Phones -- Tablets  ", "phones-tablets"},
		{"Café Crème", "cafe-creme"},
		{"snake_case name", "snake_case-name"},
		{"_leading and trailing_", "leading-and-trailing"},
		{"日本語", ""},
		{"!!!", ""},
		{"ＴＶ", "tv"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestValidSlug(t *testing.T) {
	for _, s := range []string{"gaming", "Gaming", "USB-C_hubs", "4k", "-x-"} {
		assert.True(t, ValidSlug(s), s)
	}
	for _, s := range []string{"", "Not A Slug", "café", "a/b", "tv!", string(make([]byte, maxSlugLength+1))} {
		assert.False(t, ValidSlug(s), s)
	}
}

type slugSet map[string]bool

func (s slugSet) SlugExists(_ context.Context, _ *int64, slug string, _ int64) (bool, error) {
	return s[slug], nil
}

func TestUniqueSlugSuffixes(t *testing.T) {
	ctx := context.Background()

	slug, err := UniqueSlug(ctx, slugSet{}, nil, "phones", 0)
	require.NoError(t, err)
	assert.Equal(t, "phones", slug)

	slug, err = UniqueSlug(ctx, slugSet{"phones": true}, nil, "phones", 0)
	require.NoError(t, err)
	assert.Equal(t, "phones-2", slug)

	slug, err = UniqueSlug(ctx, slugSet{"phones": true, "phones-2": true}, nil, "phones", 0)
	require.NoError(t, err)
	assert.Equal(t, "phones-3", slug)

	slug, err = UniqueSlug(ctx, slugSet{}, nil, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "category", slug)
}
