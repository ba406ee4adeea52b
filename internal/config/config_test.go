package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "")
	t.Setenv("SERVER_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Auth.Mode != AuthModeNone {
		t.Errorf("Expected auth mode none, got %s", cfg.Auth.Mode)
	}
	if cfg.Notify.CountryCode != "+254" {
		t.Errorf("Expected country code +254, got %s", cfg.Notify.CountryCode)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("NOTIFY_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("AUTH_MODE", "JWT")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTH_PROTECT_RESOURCES", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Notify.Timeout != 3*time.Second {
		t.Errorf("Expected notify timeout 3s, got %s", cfg.Notify.Timeout)
	}
	if len(cfg.Server.CORSAllowedOrigins) != 2 || cfg.Server.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected CORS origins: %v", cfg.Server.CORSAllowedOrigins)
	}
	if cfg.Auth.Mode != AuthModeJWT || !cfg.Auth.ProtectResources {
		t.Errorf("Unexpected auth config: %+v", cfg.Auth)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		auth    AuthConfig
		wantErr bool
	}{
		{"none", AuthConfig{Mode: AuthModeNone}, false},
		{"none protected", AuthConfig{Mode: AuthModeNone, ProtectResources: true}, true},
		{"oidc missing issuer", AuthConfig{Mode: AuthModeOIDC, OIDCClientID: "shop"}, true},
		{"oidc", AuthConfig{Mode: AuthModeOIDC, OIDCIssuerURL: "https://id.example", OIDCClientID: "shop"}, false},
		{"jwt short secret", AuthConfig{Mode: AuthModeJWT, JWTSecret: "short"}, true},
		{"unknown", AuthConfig{Mode: "saml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Auth: tt.auth}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
