package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/config"
	"github.com/safar/go-shop-api/internal/customers"
	"github.com/safar/go-shop-api/internal/memstore"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func jane() models.IdentityClaims {
	return models.IdentityClaims{
		Subject:     "sub-jane",
		Email:       "jane@example.com",
		GivenName:   "Jane",
		FamilyName:  "Doe",
		PhoneNumber: "0712345678",
	}
}

func TestHMACVerifierRoundTrip(t *testing.T) {
	v := NewHMACVerifier(testSecret, "shop", "shop-api")

	token, err := v.Sign(jane(), time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, jane(), *claims)
}

func TestHMACVerifierRejects(t *testing.T) {
	v := NewHMACVerifier(testSecret, "shop", "shop-api")
	ctx := context.Background()

	other, err := NewHMACVerifier("another-secret-another-secret-xx", "shop", "shop-api").Sign(jane(), time.Minute)
	require.NoError(t, err)
	expired, err := v.Sign(jane(), -time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := NewHMACVerifier(testSecret, "elsewhere", "shop-api").Sign(jane(), time.Minute)
	require.NoError(t, err)
	noSubject, err := v.Sign(models.IdentityClaims{Email: "jane@example.com"}, time.Minute)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "sub-jane",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": other,
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"alg none":     unsigned,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(ctx, token)
			assert.True(t, errors.Is(err, apperr.ErrAuthenticationFailed), "got %v", err)
		})
	}
}

func TestNewVerifierModes(t *testing.T) {
	ctx := context.Background()

	v, err := NewVerifier(ctx, config.AuthConfig{Mode: config.AuthModeNone})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = NewVerifier(ctx, config.AuthConfig{Mode: config.AuthModeJWT, JWTSecret: testSecret})
	require.NoError(t, err)
	assert.IsType(t, &HMACVerifier{}, v)

	_, err = NewVerifier(ctx, config.AuthConfig{Mode: "saml"})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(r))

	r.Header.Set("Authorization", "bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(r))
}

func writeStatus(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrPermissionDenied):
		w.WriteHeader(http.StatusForbidden)
	case errors.Is(err, apperr.ErrAuthenticationFailed):
		w.WriteHeader(http.StatusUnauthorized)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

type stack struct {
	verifier *HMACVerifier
	mw       *Middleware
	dir      *customers.Directory
	repo     *memstore.Store
}

func newStack(t *testing.T) *stack {
	t.Helper()
	repo := memstore.New()
	dir := customers.NewDirectory(repo)
	v := NewHMACVerifier(testSecret, "", "")
	return &stack{verifier: v, mw: NewMiddleware(v, dir, writeStatus), dir: dir, repo: repo}
}

func (s *stack) request(t *testing.T, h http.Handler, claims *models.IdentityClaims) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if claims != nil {
		token, err := s.verifier.Sign(*claims, time.Minute)
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestAuthenticateAttachesPrincipal(t *testing.T) {
	s := newStack(t)
	_, err := s.dir.Login(context.Background(), ptr(jane()))
	require.NoError(t, err)

	var got *Principal
	h := s.mw.Authenticate(s.mw.RequireCustomer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	w := s.request(t, h, ptr(jane()))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "jane@example.com", got.User.Email)
	require.NotNil(t, got.Customer)
	assert.Equal(t, "Jane", got.Customer.FirstName)
}

func TestAuthenticateRejections(t *testing.T) {
	s := newStack(t)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	// Anonymous requests pass Authenticate but not RequireAuthenticated.
	assert.Equal(t, http.StatusOK, s.request(t, s.mw.Authenticate(ok), nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.request(t, s.mw.Authenticate(s.mw.RequireAuthenticated(ok)), nil).Code)

	// Valid token for an account that never logged in.
	assert.Equal(t, http.StatusUnauthorized, s.request(t, s.mw.Authenticate(ok), ptr(jane())).Code)
}

func TestRequireCustomerWithoutProfile(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	identity, err := s.dir.Login(ctx, ptr(jane()))
	require.NoError(t, err)
	require.NoError(t, s.repo.DeleteCustomer(ctx, identity.Customer.ID))

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	assert.Equal(t, http.StatusOK, s.request(t, s.mw.Authenticate(s.mw.RequireAuthenticated(ok)), ptr(jane())).Code)
	assert.Equal(t, http.StatusForbidden, s.request(t, s.mw.Authenticate(s.mw.RequireCustomer(ok)), ptr(jane())).Code)
}

func TestDisabledVerifierIgnoresTokens(t *testing.T) {
	s := newStack(t)
	mw := NewMiddleware(nil, s.dir, writeStatus)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	assert.Equal(t, http.StatusOK, s.request(t, mw.Authenticate(ok), ptr(jane())).Code)

	r := httptest.NewRequest(http.MethodPost, "/auth/login/", nil)
	_, err := mw.VerifyRequest(r)
	assert.True(t, errors.Is(err, apperr.ErrAuthenticationFailed))
}

func ptr[T any](v T) *T { return &v }
