// Package pages sirve el shell HTML del dashboard. La lógica de qué
// controles deshabilitar y qué alerta mostrar viene entera en la directiva
// del orchestrator; las plantillas solo la renderizan.
package pages

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/dropDatabas3/johnboard/internal/auth"
	"github.com/dropDatabas3/johnboard/internal/auth/flow"
	authctrl "github.com/dropDatabas3/johnboard/internal/http/controllers/auth"
	httperrors "github.com/dropDatabas3/johnboard/internal/http/errors"
	mw "github.com/dropDatabas3/johnboard/internal/http/middlewares"
	"github.com/dropDatabas3/johnboard/internal/identity"
	"github.com/dropDatabas3/johnboard/internal/observability/logger"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Controller renderiza las páginas.
type Controller struct {
	tpl     *template.Template
	appName string
	toggles authctrl.Toggles
}

// NewController parsea las plantillas embebidas.
func NewController(appName string, toggles authctrl.Toggles) (*Controller, error) {
	tpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Controller{tpl: tpl, appName: appName, toggles: toggles}, nil
}

// PageData es el contexto de render de todas las páginas.
type PageData struct {
	AppName string
	Title   string
	User    *identity.User
	Flow    flow.State
	Dir     flow.Directive
	Methods authctrl.Toggles
}

func (c *Controller) render(w http.ResponseWriter, r *http.Request, name, title string, snap auth.Snapshot) {
	data := PageData{
		AppName: c.appName,
		Title:   title,
		User:    snap.User,
		Flow:    snap.Flow,
		Dir:     snap.Directive,
		Methods: c.toggles,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.tpl.ExecuteTemplate(w, name, data); err != nil {
		logger.From(r.Context()).Error("template render failed",
			logger.String("template", name), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}

// page arma un handler que evalúa el route guard y renderiza. Los effects de
// navegación se ejecutan acá (server-side redirect), una sola vez.
func (c *Controller) page(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o := mw.GetOrchestrator(r.Context())
		if o == nil {
			httperrors.WriteError(w, httperrors.ErrInternalServerError.WithDetail("missing session orchestrator"))
			return
		}

		o.SetRoute(r.URL.Path)
		snap := o.Snapshot()

		switch snap.Effect {
		case auth.EffectRedirectSignIn:
			http.Redirect(w, r, "/signin", http.StatusSeeOther)
			return
		case auth.EffectRedirectHome:
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		case auth.EffectRedirectProvider:
			if snap.EffectURL != "" {
				http.Redirect(w, r, snap.EffectURL, http.StatusFound)
				return
			}
		}

		c.render(w, r, name, title, snap)
	}
}

// Páginas abiertas.
func (c *Controller) SignIn() http.HandlerFunc { return c.page("signin.html", "Sign in") }
func (c *Controller) SignUp() http.HandlerFunc { return c.page("signup.html", "Sign up") }
func (c *Controller) Forgot() http.HandlerFunc { return c.page("forgot.html", "Forgot password") }

// Páginas protegidas por el route guard.
func (c *Controller) Home() http.HandlerFunc      { return c.page("home.html", "Home") }
func (c *Controller) Dashboard() http.HandlerFunc { return c.page("dashboard.html", "Dashboard") }
func (c *Controller) ProfileEdit() http.HandlerFunc {
	return c.page("profile_edit.html", "Edit profile")
}
func (c *Controller) ProfilePassword() http.HandlerFunc {
	return c.page("profile_password.html", "Change password")
}
func (c *Controller) Settings() http.HandlerFunc { return c.page("settings.html", "Settings") }
