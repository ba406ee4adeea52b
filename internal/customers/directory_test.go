package customers

import (
	"context"
	"testing"
	"time"

	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/memstore"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectory(t *testing.T) (*Directory, *memstore.Store) {
	t.Helper()
	repo := memstore.New()
	d := NewDirectory(repo)
	d.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return d, repo
}

func strPtr(s string) *string { return &s }

func janeClaims() *models.IdentityClaims {
	return &models.IdentityClaims{
		Subject:     "sub-jane",
		Email:       "jane@example.com",
		GivenName:   "Jane",
		FamilyName:  "Doe",
		PhoneNumber: "0712345678",
	}
}

func TestLoginCreatesUserAndCustomer(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)

	id, err := d.Login(ctx, janeClaims())
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", id.User.Username)
	require.NotNil(t, id.Customer)
	assert.Equal(t, id.User.ID, id.Customer.UserID)
	assert.Equal(t, "0712345678", id.Customer.Phone)
	require.NotNil(t, id.Customer.OIDCSub)
	assert.Equal(t, "sub-jane", *id.Customer.OIDCSub)
	require.NotNil(t, id.Customer.LastLogin)
}

func TestLoginIsIdempotentPerSubject(t *testing.T) {
	ctx := context.Background()
	d, repo := newDirectory(t)

	first, err := d.Login(ctx, janeClaims())
	require.NoError(t, err)

	claims := janeClaims()
	claims.Email = "jane.doe@example.com"
	claims.GivenName = "Janet"
	second, err := d.Login(ctx, claims)
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)
	assert.Equal(t, "Janet", second.Customer.FirstName)
	assert.Equal(t, "jane.doe@example.com", second.User.Email)

	_, total, err := repo.ListCustomers(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestLoginMatchesByEmailAndCreatesMissingProfile(t *testing.T) {
	ctx := context.Background()
	d, repo := newDirectory(t)

	u := &models.User{Username: "legacy", Email: "jane@example.com"}
	c := &models.Customer{Email: "other@example.com"}
	require.NoError(t, repo.SaveIdentity(ctx, u, c))
	require.NoError(t, repo.DeleteCustomer(ctx, c.ID))

	id, err := d.Login(ctx, janeClaims())
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.User.ID)
	assert.NotZero(t, id.Customer.ID)
	assert.Equal(t, "jane@example.com", id.Customer.Email)
}

func TestLoginWithoutEmailRejected(t *testing.T) {
	d, _ := newDirectory(t)

	_, err := d.Login(context.Background(), &models.IdentityClaims{Subject: "anon"})
	assert.ErrorIs(t, err, apperr.ErrAuthenticationFailed)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	d, _ := newDirectory(t)

	_, err := d.Resolve(ctx, janeClaims())
	assert.ErrorIs(t, err, apperr.ErrAuthenticationFailed)

	created, err := d.Login(ctx, janeClaims())
	require.NoError(t, err)

	byEmail, err := d.Resolve(ctx, &models.IdentityClaims{Email: "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, byEmail.User.ID)
	require.NotNil(t, byEmail.Customer)
	assert.Equal(t, created.Customer.ID, byEmail.Customer.ID)
}

func TestCustomerCRUD(t *testing.T) {
	ctx := context.Background()
	d, repo := newDirectory(t)

	owner := &models.User{Username: "owner", Email: "owner@example.com"}
	seed := &models.Customer{Email: "owner@example.com"}
	require.NoError(t, repo.SaveIdentity(ctx, owner, seed))

	other := &models.User{Username: "other"}
	otherSeed := &models.Customer{Email: "placeholder@example.com"}
	require.NoError(t, repo.SaveIdentity(ctx, other, otherSeed))
	require.NoError(t, repo.DeleteCustomer(ctx, otherSeed.ID))

	_, err := d.CreateCustomer(ctx, owner.ID, ProfileInput{Email: strPtr("again@example.com")})
	v, ok := apperr.IsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "user_id")

	_, err = d.CreateCustomer(ctx, other.ID, ProfileInput{Email: strPtr("owner@example.com")})
	v, ok = apperr.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, msgEmailTaken, v.Fields["email"])

	created, err := d.CreateCustomer(ctx, other.ID, ProfileInput{
		FirstName: strPtr("Otto"),
		Email:     strPtr("otto@example.com"),
		Phone:     strPtr("0700000000"),
	})
	require.NoError(t, err)

	updated, err := d.UpdateCustomer(ctx, created.ID, ProfileInput{LastName: strPtr("Other")})
	require.NoError(t, err)
	assert.Equal(t, "Otto", updated.FirstName)
	assert.Equal(t, "Other", updated.LastName)
	assert.Equal(t, "otto@example.com", updated.Email)

	require.NoError(t, d.DeleteCustomer(ctx, created.ID))
	_, err = d.GetCustomer(ctx, created.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
