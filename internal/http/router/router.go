// Package router arma el árbol de rutas de la aplicación.
package router

import (
	"net/http"
	"time"

	authctrl "github.com/dropDatabas3/johnboard/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/johnboard/internal/http/controllers/health"
	pagesctrl "github.com/dropDatabas3/johnboard/internal/http/controllers/pages"
	httperrors "github.com/dropDatabas3/johnboard/internal/http/errors"
	mw "github.com/dropDatabas3/johnboard/internal/http/middlewares"
	"github.com/dropDatabas3/johnboard/internal/http/static"
	"github.com/dropDatabas3/johnboard/internal/session"
	"github.com/go-chi/chi/v5"
)

// RateLimits agrupa los límites por endpoint sensible.
type RateLimits struct {
	Enabled      bool
	LoginLimit   int
	LoginWindow  time.Duration
	ForgotLimit  int
	ForgotWindow time.Duration
	LinkLimit    int
	LinkWindow   time.Duration
}

func (r RateLimits) login() mw.Middleware {
	if !r.Enabled {
		return mw.WithRateLimit(0, 0)
	}
	return mw.WithRateLimit(r.LoginLimit, r.LoginWindow)
}

func (r RateLimits) forgot() mw.Middleware {
	if !r.Enabled {
		return mw.WithRateLimit(0, 0)
	}
	return mw.WithRateLimit(r.ForgotLimit, r.ForgotWindow)
}

func (r RateLimits) link() mw.Middleware {
	if !r.Enabled {
		return mw.WithRateLimit(0, 0)
	}
	return mw.WithRateLimit(r.LinkLimit, r.LinkWindow)
}

// Deps contiene todas las dependencias del router.
type Deps struct {
	Registry *session.Registry

	Auth   *authctrl.Controller
	Pages  *pagesctrl.Controller
	Health *healthctrl.Controller

	Metrics http.Handler // handler de /metrics; nil lo omite
	Rate    RateLimits
}

// New arma el router con la cadena estándar de middlewares.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRequestID())
	r.Use(mw.WithRecover())
	r.Use(mw.WithMetrics())

	// Assets, health y metrics por fuera de la sesión de navegador.
	r.Handle("/static/*", static.Handler())
	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.Ready)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.WithBrowserSession(d.Registry))
		r.Use(mw.WithLogging())

		// ===========================================================================
		// API de auth
		// ===========================================================================
		r.Route("/api", func(r chi.Router) {
			r.Get("/auth/state", d.Auth.State)
			r.With(d.Rate.login()).Post("/auth/signin", d.Auth.SignIn)
			r.With(d.Rate.login()).Post("/auth/signup", d.Auth.SignUp)
			r.With(d.Rate.link()).Post("/auth/link/send", d.Auth.SendLink)
			r.With(d.Rate.login()).Post("/auth/link/signin", d.Auth.CompleteLink)
			r.With(d.Rate.forgot()).Post("/auth/forgot", d.Auth.Forgot)
			r.Post("/auth/signout", d.Auth.SignOut)

			r.Post("/profile", d.Auth.UpdateProfile)
			r.Post("/profile/password", d.Auth.ChangePassword)
			r.Post("/profile/verify-email", d.Auth.SendVerification)
		})

		// ===========================================================================
		// Flujo federado (full-page redirects)
		// ===========================================================================
		r.Get("/auth/social/{provider}/start", d.Auth.SocialStart)
		r.Get("/auth/callback/{provider}", d.Auth.SocialCallback)

		// ===========================================================================
		// Páginas
		// ===========================================================================
		r.Get("/signin", d.Pages.SignIn())
		r.Get("/signup", d.Pages.SignUp())
		r.Get("/forgot-pw", d.Pages.Forgot())

		r.Get("/", d.Pages.Home())
		r.Get("/dashboard", d.Pages.Dashboard())
		r.Get("/profile/edit", d.Pages.ProfileEdit())
		r.Get("/profile/change-pw", d.Pages.ProfilePassword())
		r.Get("/settings", d.Pages.Settings())
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	return r
}
