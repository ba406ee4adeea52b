package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/safar/go-shop-api/internal/apperr"
	"github.com/safar/go-shop-api/internal/config"
	"github.com/safar/go-shop-api/internal/models"
	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

// Verifier checks a bearer token and returns the identity it carries.
// Failures wrap apperr.ErrAuthenticationFailed.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.IdentityClaims, error)
}

// NewVerifier builds the verifier for cfg.Mode. It returns nil for
// config.AuthModeNone.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (Verifier, error) {
	switch cfg.Mode {
	case config.AuthModeOIDC:
		return NewOIDCVerifier(ctx, cfg)
	case config.AuthModeJWT:
		return NewHMACVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience), nil
	case config.AuthModeNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
}

type OIDCVerifier struct {
	verifier *rp.IDTokenVerifier
}

// NewOIDCVerifier runs discovery against the issuer and verifies ID tokens
// with its published keys.
func NewOIDCVerifier(ctx context.Context, cfg config.AuthConfig) (*OIDCVerifier, error) {
	scopes := []string{oidc.ScopeOpenID, oidc.ScopeProfile, oidc.ScopeEmail, oidc.ScopePhone}

	party, err := rp.NewRelyingPartyOIDC(ctx,
		cfg.OIDCIssuerURL,
		cfg.OIDCClientID,
		cfg.OIDCClientSecret,
		cfg.OIDCRedirectURL,
		scopes,
		rp.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("create relying party: %w", err)
	}

	return &OIDCVerifier{verifier: party.IDTokenVerifier()}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*models.IdentityClaims, error) {
	claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, token, v.verifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAuthenticationFailed, err)
	}

	return &models.IdentityClaims{
		Subject:     claims.Subject,
		Email:       claims.Email,
		GivenName:   claims.GivenName,
		FamilyName:  claims.FamilyName,
		PhoneNumber: claims.PhoneNumber,
	}, nil
}

type tokenClaims struct {
	Email       string `json:"email,omitempty"`
	GivenName   string `json:"given_name,omitempty"`
	FamilyName  string `json:"family_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	jwt.RegisteredClaims
}

// HMACVerifier accepts HS256 tokens signed with a shared secret. It uses the
// same claim names as OIDC ID tokens.
type HMACVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewHMACVerifier(secret, issuer, audience string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), issuer: issuer, audience: audience}
}

func (v *HMACVerifier) Verify(_ context.Context, token string) (*models.IdentityClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAuthenticationFailed, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAuthenticationFailed, errors.New("token has no subject"))
	}

	return &models.IdentityClaims{
		Subject:     claims.Subject,
		Email:       claims.Email,
		GivenName:   claims.GivenName,
		FamilyName:  claims.FamilyName,
		PhoneNumber: claims.PhoneNumber,
	}, nil
}

// Sign issues a token this verifier accepts.
func (v *HMACVerifier) Sign(identity models.IdentityClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Email:       identity.Email,
		GivenName:   identity.GivenName,
		FamilyName:  identity.FamilyName,
		PhoneNumber: identity.PhoneNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
