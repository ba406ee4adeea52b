package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/customers"
	"github.com/safar/go-shop-api/internal/logging"
	"github.com/safar/go-shop-api/internal/models"
)

type Principal struct {
	Claims *models.IdentityClaims
	User   *models.User
	// Customer is nil for users without a profile.
	Customer *models.Customer
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

type Resolver interface {
	Resolve(ctx context.Context, claims *models.IdentityClaims) (*customers.Identity, error)
}

// ErrorFunc writes err to the client.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

type Middleware struct {
	verifier Verifier
	resolver Resolver
	fail     ErrorFunc
}

// NewMiddleware accepts a nil verifier, in which case bearer tokens are
// ignored and every request is anonymous.
func NewMiddleware(verifier Verifier, resolver Resolver, fail ErrorFunc) *Middleware {
	if fail == nil {
		fail = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	return &Middleware{verifier: verifier, resolver: resolver, fail: fail}
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// VerifyRequest checks the request's bearer token without resolving a
// local account.
func (m *Middleware) VerifyRequest(r *http.Request) (*models.IdentityClaims, error) {
	if m.verifier == nil {
		return nil, fmt.Errorf("%w: authentication is disabled", apperr.ErrAuthenticationFailed)
	}
	token := BearerToken(r)
	if token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", apperr.ErrAuthenticationFailed)
	}
	return m.verifier.Verify(r.Context(), token)
}

// Authenticate attaches a Principal when the request carries a valid token.
// Requests without a token pass through anonymously; invalid tokens and
// unknown accounts are rejected.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.verifier == nil || BearerToken(r) == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.VerifyRequest(r)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("token rejected")
			m.fail(w, r, err)
			return
		}

		identity, err := m.resolver.Resolve(r.Context(), claims)
		if err != nil {
			m.fail(w, r, err)
			return
		}

		ctx := WithPrincipal(r.Context(), &Principal{
			Claims:   claims,
			User:     identity.User,
			Customer: identity.Customer,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			m.fail(w, r, fmt.Errorf("%w: credentials were not provided", apperr.ErrAuthenticationFailed))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCustomer rejects anonymous requests with 401 and users without a
// customer profile with 403.
func (m *Middleware) RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok {
			m.fail(w, r, fmt.Errorf("%w: credentials were not provided", apperr.ErrAuthenticationFailed))
			return
		}
		if p.Customer == nil {
			m.fail(w, r, fmt.Errorf("%w: no customer profile", apperr.ErrPermissionDenied))
			return
		}
		next.ServeHTTP(w, r)
	})
}
