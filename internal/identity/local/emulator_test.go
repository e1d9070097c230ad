package local

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/dropDatabas3/johnboard/internal/identity"
)

// captureSender guarda el último mail "enviado".
type captureSender struct {
	mu   sync.Mutex
	to   string
	body string
}

func (c *captureSender) Send(to, _, _, textBody string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.to = to
	c.body = textBody
	return nil
}

func (c *captureSender) lastLink(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	i := strings.Index(c.body, "http")
	if i < 0 {
		t.Fatalf("no link in body %q", c.body)
	}
	return strings.TrimSpace(c.body[i:])
}

func TestPasswordRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := New(Config{JWTSecret: "test-secret"})

	s, err := e.CreateAccount(ctx, "A@X.com", "hunter22")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Email != "a@x.com" || s.IDToken == "" {
		t.Fatalf("bad session: %+v", s)
	}

	if _, err := e.CreateAccount(ctx, "a@x.com", "other"); !identity.IsCode(err, identity.CodeEmailAlreadyInUse) {
		t.Fatalf("expected email-already-in-use, got %v", err)
	}
	if _, err := e.SignInWithPassword(ctx, "a@x.com", "wrong"); !identity.IsCode(err, identity.CodeInvalidCredentials) {
		t.Fatalf("expected invalid-credentials, got %v", err)
	}
	if _, err := e.SignInWithPassword(ctx, "nobody@x.com", "x"); !identity.IsCode(err, identity.CodeUserNotFound) {
		t.Fatalf("expected user-not-found, got %v", err)
	}
	if _, err := e.SignInWithPassword(ctx, "a@x.com", "hunter22"); err != nil {
		t.Fatalf("sign-in: %v", err)
	}
}

func TestEmailLinkProvisionsAndVerifies(t *testing.T) {
	ctx := context.Background()
	cap := &captureSender{}
	e := New(Config{JWTSecret: "test-secret", Sender: cap})

	if err := e.SendSignInLinkToEmail(ctx, "new@x.com", "https://app.example/signin"); err != nil {
		t.Fatalf("send link: %v", err)
	}
	link := cap.lastLink(t)
	if !e.IsSignInLinkURL(link) {
		t.Fatalf("emitted link not recognized: %q", link)
	}

	s, err := e.CompleteSignInWithLink(ctx, "new@x.com", link)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !s.EmailVerified {
		t.Fatal("link sign-in must leave the email verified")
	}

	// Un solo uso.
	if _, err := e.CompleteSignInWithLink(ctx, "new@x.com", link); !identity.IsCode(err, identity.CodeInvalidOneTimeCode) {
		t.Fatalf("expected invalid-one-time-code on reuse, got %v", err)
	}
}

func TestFederatedConflictAndLinking(t *testing.T) {
	ctx := context.Background()
	e := New(Config{JWTSecret: "test-secret"})

	if _, err := e.CreateAccount(ctx, "a@x.com", "hunter22"); err != nil {
		t.Fatalf("create: %v", err)
	}

	q := map[string][]string{"code": {"c1"}, "email": {"a@x.com"}}
	res, err := e.ExchangeRedirect(ctx, identity.ProviderGoogle, q)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if res.Code != identity.CodeAccountExists || res.Credential == nil {
		t.Fatalf("expected account-exists conflict, got %+v", res)
	}

	methods, err := e.FetchSignInMethodsForEmail(ctx, "a@x.com")
	if err != nil || len(methods) == 0 || methods[0] != identity.MethodPassword {
		t.Fatalf("password must be first method, got %v / %v", methods, err)
	}

	s, err := e.SignInWithPassword(ctx, "a@x.com", "hunter22")
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}
	if err := e.LinkCredential(ctx, s, res.Credential); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := e.LinkCredential(ctx, s, res.Credential); !identity.IsCode(err, identity.CodeProviderAlreadyLinked) {
		t.Fatalf("expected provider-already-linked, got %v", err)
	}

	// Ya linkeado: el próximo redirect entra directo.
	res2, err := e.ExchangeRedirect(ctx, identity.ProviderGoogle, q)
	if err != nil || res2.Session == nil {
		t.Fatalf("expected clean federated sign-in, got %+v / %v", res2, err)
	}
}

func TestUpdatePasswordRequiresReauth(t *testing.T) {
	ctx := context.Background()
	e := New(Config{JWTSecret: "test-secret"})

	// Cuenta solo-federada: no hay credencial de email que re-probar.
	res, err := e.ExchangeRedirect(ctx, identity.ProviderGoogle, map[string][]string{"code": {"c"}})
	if err != nil || res.Session == nil {
		t.Fatalf("federated provision failed: %+v / %v", res, err)
	}
	if err := e.Reauthenticate(ctx, res.Session, "x"); !identity.IsCode(err, identity.CodeMissingEmailCredential) {
		t.Fatalf("expected missing-email-credential, got %v", err)
	}

	s, err := e.CreateAccount(ctx, "p@x.com", "oldpass")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.Reauthenticate(ctx, s, "oldpass"); err != nil {
		t.Fatalf("reauth: %v", err)
	}
	if err := e.UpdatePassword(ctx, s, "newpass"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := e.SignInWithPassword(ctx, "p@x.com", "newpass"); err != nil {
		t.Fatalf("sign-in with new password: %v", err)
	}
}
