package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":8080" || c.Cache.Kind != "memory" || c.Identity.Mode != "local" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if !c.Auth.PasswordEnabled || !c.Auth.EmailLinkEnabled {
		t.Fatal("all sign-in methods must default to enabled")
	}
	if c.SignInURL() != "http://localhost:8080/signin" {
		t.Fatalf("sign-in url: %q", c.SignInURL())
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  base_url: https://board.example
identity:
  mode: rest
  rest:
    base_url: https://idp.example
auth:
  password_enabled: true
  social_providers: [google.com]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("AUTH_SOCIAL_PROVIDERS", "github.com,apple.com")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":9999" {
		t.Fatalf("env must override yaml, got %q", c.Server.Addr)
	}
	if len(c.Auth.SocialProviders) != 2 || c.Auth.SocialProviders[0] != "github.com" {
		t.Fatalf("csv env override failed: %v", c.Auth.SocialProviders)
	}
	if c.CallbackURL() != "https://board.example/auth/callback" {
		t.Fatalf("callback url: %q", c.CallbackURL())
	}
}

func TestLoadRejectsBadIdentityMode(t *testing.T) {
	t.Setenv("IDENTITY_MODE", "saml")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown identity mode")
	}
}

func TestLoadRejectsRESTWithoutBaseURL(t *testing.T) {
	t.Setenv("IDENTITY_MODE", "rest")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when rest mode lacks base_url")
	}
}
