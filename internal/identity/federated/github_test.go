package federated

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dropDatabas3/johnboard/internal/identity"
)

func newTestGitHub(t *testing.T, emailFromProfile bool) *GitHub {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"error":"bad_verification_code","error_description":"nope"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if emailFromProfile {
			_, _ = w.Write([]byte(`{"id":42,"login":"octo","name":"Octo Cat","email":"octo@example.com","avatar_url":"https://a/x.png"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":42,"login":"octo","name":"","email":"","avatar_url":"https://a/x.png"}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"email":"old@example.com","primary":false,"verified":true},{"email":"octo@example.com","primary":true,"verified":true}]`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	g := NewGitHub("cid", "secret", "http://localhost:8080/auth/callback/github.com")
	g.authURL = srv.URL + "/login/oauth/authorize"
	g.tokenURL = srv.URL + "/login/oauth/access_token"
	g.userURL = srv.URL + "/user"
	g.emailURL = srv.URL + "/user/emails"
	return g
}

func TestGitHubAuthURLCarriesStateAndScopes(t *testing.T) {
	g := newTestGitHub(t, true)

	raw, err := g.AuthURL(context.Background(), "state-123")
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("state") != "state-123" {
		t.Fatalf("state = %q", q.Get("state"))
	}
	if q.Get("client_id") != "cid" {
		t.Fatalf("client_id = %q", q.Get("client_id"))
	}
	if !strings.Contains(q.Get("scope"), "user:email") {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
}

func TestGitHubExchangeProfileEmail(t *testing.T) {
	g := newTestGitHub(t, true)

	id, err := g.Exchange(context.Background(), url.Values{"code": {"good-code"}, "state": {"s"}})
	if err != nil {
		t.Fatal(err)
	}
	if id.ProviderID != identity.ProviderGitHub {
		t.Fatalf("provider = %q", id.ProviderID)
	}
	if id.Subject != "42" || id.Email != "octo@example.com" || id.Name != "Octo Cat" {
		t.Fatalf("identity = %+v", id)
	}
	if !id.EmailVerified {
		t.Fatal("expected verified email")
	}
}

func TestGitHubExchangePrivateEmailFallsBackToPrimary(t *testing.T) {
	g := newTestGitHub(t, false)

	id, err := g.Exchange(context.Background(), url.Values{"code": {"good-code"}})
	if err != nil {
		t.Fatal(err)
	}
	if id.Email != "octo@example.com" || !id.EmailVerified {
		t.Fatalf("identity = %+v", id)
	}
	// sin name en el perfil cae al login
	if id.Name != "octo" {
		t.Fatalf("name = %q", id.Name)
	}
}

func TestGitHubExchangeRejectsBadCode(t *testing.T) {
	g := newTestGitHub(t, true)

	if _, err := g.Exchange(context.Background(), url.Values{"code": {"bad"}}); err == nil {
		t.Fatal("expected error for bad code")
	}
	if _, err := g.Exchange(context.Background(), url.Values{}); err == nil {
		t.Fatal("expected error for missing code")
	}
}
