package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/johnboard/internal/cache"
	authctrl "github.com/dropDatabas3/johnboard/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/johnboard/internal/http/controllers/health"
	pagesctrl "github.com/dropDatabas3/johnboard/internal/http/controllers/pages"
	"github.com/dropDatabas3/johnboard/internal/http/router"
	"github.com/dropDatabas3/johnboard/internal/identity/local"
	"github.com/dropDatabas3/johnboard/internal/observability/logger"
	"github.com/dropDatabas3/johnboard/internal/session"
)

// stateBody es la vista mínima del estado que asertamos acá; el shape completo
// se cubre en los tests de los paquetes auth y flow.
type stateBody struct {
	Loading bool `json:"loading"`
	User    *struct {
		Email string `json:"email"`
	} `json:"user"`
	Flow struct {
		Kind string `json:"kind"`
	} `json:"flow"`
	Effect    string `json:"effect"`
	EffectURL string `json:"effect_url"`
	Methods   struct {
		Password bool `json:"password"`
		SignUp   bool `json:"sign_up"`
	} `json:"methods"`
}

func newStack(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	store := cache.NewMemory("e2e", time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	provider := local.New(local.Config{JWTSecret: "e2e-secret"})

	var srv *httptest.Server
	// El registry necesita las URLs absolutas; el puerto recién se conoce al
	// levantar el server, así que armamos el handler en dos pasos.
	mux := http.NewServeMux()
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	registry := session.NewRegistry(session.Deps{
		Provider:    provider,
		Store:       store,
		Log:         logger.L(),
		SignInURL:   srv.URL + "/signin",
		CallbackURL: srv.URL + "/auth/callback",
		IdleTTL:     time.Minute,
	})
	t.Cleanup(registry.Close)

	toggles := authctrl.Toggles{
		Password:  true,
		EmailLink: true,
		SignUp:    true,
		Social:    []string{"google.com"},
	}
	pages, err := pagesctrl.NewController("johnboard", toggles)
	require.NoError(t, err)

	handler := router.New(router.Deps{
		Registry: registry,
		Auth:     authctrl.NewController(provider, toggles),
		Pages:    pages,
		Health:   healthctrl.NewController(store),
	})
	mux.Handle("/", handler)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return srv, client
}

func postJSON(t *testing.T, c *http.Client, rawURL string, payload any) (*http.Response, stateBody) {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := c.Post(rawURL, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()

	var st stateBody
	_ = json.NewDecoder(resp.Body).Decode(&st)
	return resp, st
}

func getState(t *testing.T, c *http.Client, base string) stateBody {
	t.Helper()
	resp, err := c.Get(base + "/api/auth/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st stateBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestHealthAndReady(t *testing.T) {
	srv, client := newStack(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := client.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestSignInPageIssuesSessionCookie(t *testing.T) {
	srv, client := newStack(t)

	resp, err := client.Get(srv.URL + "/signin")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	u, _ := url.Parse(srv.URL)
	var found bool
	for _, ck := range client.Jar.Cookies(u) {
		if ck.Name == session.CookieName {
			found = true
		}
	}
	require.True(t, found, "expected %s cookie", session.CookieName)
}

func TestPasswordSignUpSignOutRoundTrip(t *testing.T) {
	srv, client := newStack(t)

	resp, st := postJSON(t, client, srv.URL+"/api/auth/signup",
		map[string]string{"email": "ana@example.com", "password": "hunter22"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, st.User)
	require.Equal(t, "ana@example.com", st.User.Email)

	st = getState(t, client, srv.URL)
	require.NotNil(t, st.User)
	require.True(t, st.Methods.Password)

	resp, st = postJSON(t, client, srv.URL+"/api/auth/signout", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, st.User)
}

func TestBadPasswordKeepsSignedOutWithAlert(t *testing.T) {
	srv, client := newStack(t)

	_, _ = postJSON(t, client, srv.URL+"/api/auth/signup",
		map[string]string{"email": "bob@example.com", "password": "correct-horse"})
	_, _ = postJSON(t, client, srv.URL+"/api/auth/signout", struct{}{})

	resp, st := postJSON(t, client, srv.URL+"/api/auth/signin",
		map[string]string{"email": "bob@example.com", "password": "wrong"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, st.User)
	require.Equal(t, "initial", st.Flow.Kind)
}

func TestGuardedPageRedirectsAnonToSignIn(t *testing.T) {
	srv, client := newStack(t)

	resp, err := client.Get(srv.URL + "/dashboard")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/signin", resp.Header.Get("Location"))
}

func TestFederatedRoundTripSignsIn(t *testing.T) {
	srv, client := newStack(t)

	// start: el emulador simula el IdP devolviendo el callback de una
	resp, err := client.Get(srv.URL + "/auth/social/google.com/start")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc := resp.Header.Get("Location")
	require.True(t, strings.Contains(loc, "/auth/callback/google.com"), "location=%s", loc)

	// callback con identidad elegida por query
	cb := loc + "&email=fede@example.com&name=Fede"
	resp, err = client.Get(cb)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	st := getState(t, client, srv.URL)
	require.NotNil(t, st.User)
	require.Equal(t, "fede@example.com", st.User.Email)
}

func TestSignedInEntryRouteRedirectsHome(t *testing.T) {
	srv, client := newStack(t)

	_, st := postJSON(t, client, srv.URL+"/api/auth/signup",
		map[string]string{"email": "eva@example.com", "password": "hunter22"})
	require.NotNil(t, st.User)

	resp, err := client.Get(srv.URL + "/signin")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}
