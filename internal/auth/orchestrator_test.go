package auth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/johnboard/internal/auth/flow"
	"github.com/dropDatabas3/johnboard/internal/cache"
	"github.com/dropDatabas3/johnboard/internal/identity"
)

// fakeProvider implementa identity.Provider con hooks por operación.
type fakeProvider struct {
	signInPassword func(email, password string) (*identity.Session, error)
	completeLink   func(email, rawURL string) (*identity.Session, error)
	isSignInLink   func(rawURL string) bool
	fetchMethods   func(email string) ([]string, error)
	linkCredential func(s *identity.Session, c *identity.Credential) error
	federatedURL   func(providerID string) (string, error)
	sendLink       func(email string) error

	// linkedWith se escribe desde la goroutine de linking; siempre vía mu.
	mu         sync.Mutex
	linkedWith []*identity.Credential
}

func (f *fakeProvider) linkedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.linkedWith)
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	if f.signInPassword != nil {
		return f.signInPassword(email, password)
	}
	return &identity.Session{UserID: "u1", Email: email}, nil
}

func (f *fakeProvider) CreateAccount(_ context.Context, email, _ string) (*identity.Session, error) {
	return &identity.Session{UserID: "u1", Email: email}, nil
}

func (f *fakeProvider) SendPasswordResetEmail(context.Context, string) error { return nil }

func (f *fakeProvider) SendSignInLinkToEmail(_ context.Context, email, _ string) error {
	if f.sendLink != nil {
		return f.sendLink(email)
	}
	return nil
}

func (f *fakeProvider) IsSignInLinkURL(rawURL string) bool {
	if f.isSignInLink != nil {
		return f.isSignInLink(rawURL)
	}
	u, err := url.Parse(rawURL)
	return err == nil && u.Query().Get("oobCode") != ""
}

func (f *fakeProvider) CompleteSignInWithLink(_ context.Context, email, rawURL string) (*identity.Session, error) {
	if f.completeLink != nil {
		return f.completeLink(email, rawURL)
	}
	return &identity.Session{UserID: "u1", Email: email}, nil
}

func (f *fakeProvider) FederatedAuthURL(_ context.Context, providerID, _, _ string) (string, error) {
	if f.federatedURL != nil {
		return f.federatedURL(providerID)
	}
	return "https://idp.example/" + providerID, nil
}

func (f *fakeProvider) ExchangeRedirect(context.Context, string, url.Values) (*identity.RedirectResult, error) {
	return nil, errors.New("not used in tests")
}

func (f *fakeProvider) FetchSignInMethodsForEmail(_ context.Context, email string) ([]string, error) {
	if f.fetchMethods != nil {
		return f.fetchMethods(email)
	}
	return nil, nil
}

func (f *fakeProvider) LinkCredential(_ context.Context, s *identity.Session, c *identity.Credential) error {
	f.mu.Lock()
	f.linkedWith = append(f.linkedWith, c)
	f.mu.Unlock()
	if f.linkCredential != nil {
		return f.linkCredential(s, c)
	}
	return nil
}

func (f *fakeProvider) UpdateProfile(_ context.Context, s *identity.Session, p identity.ProfilePatch) (*identity.Session, error) {
	out := *s
	if p.DisplayName != nil {
		out.DisplayName = *p.DisplayName
	}
	return &out, nil
}

func (f *fakeProvider) Reauthenticate(context.Context, *identity.Session, string) error { return nil }
func (f *fakeProvider) UpdatePassword(context.Context, *identity.Session, string) error { return nil }
func (f *fakeProvider) SendEmailVerification(context.Context, *identity.Session) error  { return nil }
func (f *fakeProvider) SignOut(context.Context, *identity.Session) error                { return nil }

func newTestOrchestrator(t *testing.T, p identity.Provider) *Orchestrator {
	t.Helper()
	o := New(Deps{
		Provider:    p,
		Store:       cache.NewMemory("test", time.Minute),
		SignInURL:   "/signin",
		CallbackURL: "/auth/callback",
	})
	t.Cleanup(o.Close)
	return o
}

func drainEffects(o *Orchestrator) Snapshot { return o.Snapshot() }

// waitFor espera una condición con polling corto; el linking de credenciales
// corre en su propia goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRedirectResultResolutionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{fetchMethods: func(string) ([]string, error) {
		return []string{identity.MethodPassword}, nil
	}}
	o := newTestOrchestrator(t, fp)

	err := o.StashRedirectResult(ctx, &identity.RedirectResult{
		Code:       identity.CodeAccountExists,
		Email:      "a@x.com",
		Credential: &identity.Credential{ProviderID: identity.ProviderGoogle},
	})
	if err != nil {
		t.Fatalf("stash: %v", err)
	}

	o.ResolveRedirectResult(ctx)
	first := o.Snapshot()
	if first.Flow.Kind != flow.KindPasswordRequiredForEmail {
		t.Fatalf("expected password-required, got %s", first.Flow.Kind)
	}

	// Segunda resolución sin resultado nuevo: no-op.
	o.ResolveRedirectResult(ctx)
	second := o.Snapshot()
	if second.Flow.Kind != flow.KindPasswordRequiredForEmail || second.Flow.Alert != nil {
		t.Fatalf("second resolution must not change state, got %+v", second.Flow)
	}
}

func TestDeferredEmailRoundTrip(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{}
	o := newTestOrchestrator(t, fp)
	o.Bootstrap(ctx, "")

	if ok := o.SendSignInLinkToEmail(ctx, "a@x.com"); !ok {
		t.Fatal("send link should succeed")
	}
	if snap := o.Snapshot(); snap.Flow.Kind != flow.KindLinkSentToEmail {
		t.Fatalf("expected link-sent, got %s", snap.Flow.Kind)
	}

	// Con el email diferido presente, el link completa sin pedir email.
	o.SignInWithEmailLink(ctx, "https://app.example/signin?mode=signIn&oobCode=abc", "")
	waitFor(t, func() bool { return o.CurrentSession() != nil })
	if got := o.CurrentSession().Email; got != "a@x.com" {
		t.Fatalf("expected session for stored email, got %q", got)
	}
}

func TestLinkSignInRequiresEmailWhenDeferredCleared(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{}
	o := newTestOrchestrator(t, fp)
	o.Bootstrap(ctx, "")

	// Nadie guardó el email (p. ej. otro dispositivo): pide el email.
	o.SignInWithEmailLink(ctx, "https://app.example/signin?mode=signIn&oobCode=abc", "")
	if snap := o.Snapshot(); snap.Flow.Kind != flow.KindEmailRequiredForLinkSignIn {
		t.Fatalf("expected email-required, got %s", snap.Flow.Kind)
	}

	// Reintento con email explícito: completa.
	o.SignInWithEmailLink(ctx, "https://app.example/signin?mode=signIn&oobCode=abc", "b@x.com")
	waitFor(t, func() bool { return o.CurrentSession() != nil })
	if got := o.CurrentSession().Email; got != "b@x.com" {
		t.Fatalf("expected session for b@x.com, got %q", got)
	}
}

func TestConflictRoutesToPassword(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{fetchMethods: func(string) ([]string, error) {
		return []string{identity.MethodPassword, identity.ProviderGoogle}, nil
	}}
	o := newTestOrchestrator(t, fp)

	_ = o.StashRedirectResult(ctx, &identity.RedirectResult{
		Code:       identity.CodeAccountExists,
		Email:      "a@x.com",
		Credential: &identity.Credential{ProviderID: identity.ProviderGitHub, IDToken: "tok"},
	})
	o.ResolveRedirectResult(ctx)

	snap := o.Snapshot()
	if snap.Flow.Kind != flow.KindPasswordRequiredForEmail || snap.Flow.Email != "a@x.com" {
		t.Fatalf("expected password-required for a@x.com, got %+v", snap.Flow)
	}
	d := snap.Directive
	if !d.EmailDisabled || d.EmailPrefill != "a@x.com" {
		t.Fatalf("email must be disabled and prefilled, got %+v", d)
	}

	cred, err := o.pending.Get(ctx, "a@x.com")
	if err != nil || cred == nil {
		t.Fatalf("pending credential must exist, got %v / %v", cred, err)
	}
	if cred.ProviderID != identity.ProviderGitHub {
		t.Fatalf("wrong pending credential: %+v", cred)
	}
}

func TestConflictRoutesToFederatedProvider(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{fetchMethods: func(string) ([]string, error) {
		return []string{identity.ProviderGoogle}, nil
	}}
	o := newTestOrchestrator(t, fp)

	_ = o.StashRedirectResult(ctx, &identity.RedirectResult{
		Code:       identity.CodeAccountExists,
		Email:      "a@x.com",
		Credential: &identity.Credential{ProviderID: identity.ProviderGitHub},
	})
	o.ResolveRedirectResult(ctx)

	snap := o.Snapshot()
	if snap.Effect != EffectRedirectProvider {
		t.Fatalf("expected provider redirect effect, got %q", snap.Effect)
	}
	if snap.EffectURL != "https://idp.example/"+identity.ProviderGoogle {
		t.Fatalf("expected redirect to google, got %q", snap.EffectURL)
	}
	// Sin alerta: la ruta es silenciosa.
	if snap.Flow.Alert != nil {
		t.Fatalf("federated re-route must not raise an alert, got %+v", snap.Flow.Alert)
	}
}

func TestPendingCredentialConsumedAfterSignIn(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{}
	o := newTestOrchestrator(t, fp)
	o.Bootstrap(ctx, "")

	cred := &identity.Credential{ProviderID: identity.ProviderGoogle, IDToken: "tok"}
	if err := o.pending.Put(ctx, "a@x.com", cred); err != nil {
		t.Fatalf("put: %v", err)
	}

	o.SignInWithPassword(ctx, "a@x.com", "secret")

	waitFor(t, func() bool { return fp.linkedCount() == 1 })
	waitFor(t, func() bool {
		c, _ := o.pending.Get(ctx, "a@x.com")
		return c == nil
	})
}

func TestAlreadyLinkedTreatedAsSuccess(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{linkCredential: func(*identity.Session, *identity.Credential) error {
		return identity.NewError(identity.CodeProviderAlreadyLinked, "")
	}}
	o := newTestOrchestrator(t, fp)
	o.Bootstrap(ctx, "")

	_ = o.pending.Put(ctx, "a@x.com", &identity.Credential{ProviderID: identity.ProviderGoogle})
	o.SignInWithPassword(ctx, "a@x.com", "secret")

	waitFor(t, func() bool {
		c, _ := o.pending.Get(ctx, "a@x.com")
		return c == nil
	})
}

func TestInvalidLinkYieldsInvalidSignInLink(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{completeLink: func(string, string) (*identity.Session, error) {
		return nil, identity.NewError(identity.CodeInvalidOneTimeCode, "EXPIRED_OOB_CODE")
	}}
	o := newTestOrchestrator(t, fp)
	o.Bootstrap(ctx, "")

	_ = o.deferred.Put(ctx, "a@x.com")
	o.SignInWithEmailLink(ctx, "https://app.example/signin?mode=signIn&oobCode=stale", "")

	snap := o.Snapshot()
	if snap.Flow.Kind != flow.KindInvalidSignInLink {
		t.Fatalf("expected invalid-link, got %s", snap.Flow.Kind)
	}
	if snap.Directive.SubmitAction != flow.ActionSendLinkToEmail {
		t.Fatalf("invalid link must offer resend, got %q", snap.Directive.SubmitAction)
	}
}

func TestRouteGuardFiresOnce(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t, &fakeProvider{})
	o.Bootstrap(ctx, "")

	o.SetRoute("/dashboard")
	first := o.Snapshot()
	if first.Effect != EffectRedirectSignIn {
		t.Fatalf("expected sign-in redirect, got %q", first.Effect)
	}

	// Re-evaluación con inputs sin cambios: el effect no re-dispara.
	o.SetRoute("/dashboard")
	second := o.Snapshot()
	if second.Effect != EffectNone {
		t.Fatalf("guard must fire once per transition, got %q", second.Effect)
	}
}

func TestRouteGuardAllowsOpenRoutes(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t, &fakeProvider{})
	o.Bootstrap(ctx, "")

	for _, route := range []string{"/signin", "/signup", "/forgot-pw"} {
		o.SetRoute(route)
		if snap := o.Snapshot(); snap.Effect != EffectNone {
			t.Fatalf("route %s must not redirect, got %q", route, snap.Effect)
		}
	}
}

func TestSignInRedirectsHomeFromEntryRoute(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t, &fakeProvider{})
	o.Bootstrap(ctx, "")

	o.SetRoute("/signin")
	drainEffects(o)

	o.SignInWithPassword(ctx, "a@x.com", "secret")
	waitFor(t, func() bool { return o.CurrentSession() != nil })

	snap := o.Snapshot()
	if snap.Effect != EffectRedirectHome {
		t.Fatalf("expected home redirect after sign-in, got %q", snap.Effect)
	}
}

func TestHomeRedirectCarriesNoStaleEffectURL(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t, &fakeProvider{})
	o.Bootstrap(ctx, "")

	o.SignInWithPassword(ctx, "a@x.com", "secret")
	waitFor(t, func() bool { return o.CurrentSession() != nil })
	drainEffects(o)

	// Effect de proveedor pendiente (con URL) que nunca se consume.
	o.SignInWithOauthProvider(ctx, identity.ProviderGoogle)

	o.SetRoute("/signin")
	snap := o.Snapshot()
	if snap.Effect != EffectRedirectHome {
		t.Fatalf("expected home redirect, got %q", snap.Effect)
	}
	if snap.EffectURL != "" {
		t.Fatalf("home redirect must not carry a url, got %q", snap.EffectURL)
	}
}

func TestUnknownErrorFallsBackToGenericAlert(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{signInPassword: func(string, string) (*identity.Session, error) {
		return nil, errors.New("totally unexpected wire failure")
	}}
	o := newTestOrchestrator(t, fp)
	o.Bootstrap(ctx, "")

	o.SignInWithPassword(ctx, "a@x.com", "secret")

	snap := o.Snapshot()
	if snap.Flow.Kind != flow.KindInitial {
		t.Fatalf("variant must not change on error, got %s", snap.Flow.Kind)
	}
	if snap.Flow.Alert == nil || snap.Flow.Alert.Title != genericAlert.Title {
		t.Fatalf("expected generic fallback alert, got %+v", snap.Flow.Alert)
	}
}

func TestSignOutClearsSessionAndPersistence(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t, &fakeProvider{})
	o.Bootstrap(ctx, "")

	o.SignInWithPassword(ctx, "a@x.com", "secret")
	waitFor(t, func() bool { return o.CurrentSession() != nil })

	o.SignOut(ctx)
	if o.CurrentSession() != nil {
		t.Fatal("session must be gone after sign-out")
	}
	if _, err := o.store.Get(ctx, sessionKey); !cache.IsNotFound(err) {
		t.Fatalf("persisted session must be deleted, got %v", err)
	}
}
