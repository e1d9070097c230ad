// Package auth expone la superficie HTTP del orchestrator: estado observable,
// operaciones imperativas de sign-in y el par start/callback del flujo
// federado.
package auth

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/johnboard/internal/auth"
	dto "github.com/dropDatabas3/johnboard/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/johnboard/internal/http/errors"
	mw "github.com/dropDatabas3/johnboard/internal/http/middlewares"
	"github.com/dropDatabas3/johnboard/internal/identity"
	"github.com/dropDatabas3/johnboard/internal/observability/logger"
	"github.com/go-chi/chi/v5"
)

// Toggles son los métodos de sign-in habilitados por configuración.
type Toggles struct {
	Password  bool
	EmailLink bool
	SignUp    bool
	Social    []string
}

// Controller maneja los endpoints /api/auth/*.
type Controller struct {
	provider identity.Provider
	toggles  Toggles
}

// NewController crea el controller de auth.
func NewController(provider identity.Provider, toggles Toggles) *Controller {
	return &Controller{provider: provider, toggles: toggles}
}

var errMethodDisabled = httperrors.New(http.StatusForbidden, "SIGN_IN_METHOD_DISABLED",
	"Este método de sign-in no está habilitado.")

func (c *Controller) socialEnabled(providerID string) bool {
	for _, p := range c.toggles.Social {
		if p == providerID {
			return true
		}
	}
	return false
}

// orch saca el orchestrator de la sesión del request. El middleware de sesión
// siempre lo cuelga; si falta es un bug de wiring.
func orch(w http.ResponseWriter, r *http.Request) *auth.Orchestrator {
	o := mw.GetOrchestrator(r.Context())
	if o == nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithDetail("missing session orchestrator"))
	}
	return o
}

func (c *Controller) state(o *auth.Orchestrator) dto.StateResponse {
	return dto.StateResponse{
		Snapshot: o.Snapshot(),
		Methods: dto.Methods{
			Password:  c.toggles.Password,
			EmailLink: c.toggles.EmailLink,
			SignUp:    c.toggles.SignUp,
			Social:    c.toggles.Social,
		},
	}
}

// State maneja GET /api/auth/state. Con ?route= evalúa además el route guard
// para esa ruta; el effect resultante viaja (y se consume) en la respuesta.
func (c *Controller) State(w http.ResponseWriter, r *http.Request) {
	o := orch(w, r)
	if o == nil {
		return
	}
	if route := strings.TrimSpace(r.URL.Query().Get("route")); route != "" {
		o.SetRoute(route)
	}
	httperrors.WriteJSON(w, http.StatusOK, c.state(o))
}

// SignIn maneja POST /api/auth/signin.
func (c *Controller) SignIn(w http.ResponseWriter, r *http.Request) {
	o := orch(w, r)
	if o == nil {
		return
	}
	if !c.toggles.Password {
		httperrors.WriteError(w, errMethodDisabled)
		return
	}

	var req dto.CredentialsRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email and password required"))
		return
	}

	o.SignInWithPassword(r.Context(), req.Email, req.Password)
	httperrors.WriteJSON(w, http.StatusOK, c.state(o))
}

// SignUp maneja POST /api/auth/signup.
func (c *Controller) SignUp(w http.ResponseWriter, r *http.Request) {
	o := orch(w, r)
	if o == nil {
		return
	}
	if !c.toggles.Password || !c.toggles.SignUp {
		httperrors.WriteError(w, errMethodDisabled)
		return
	}

	var req dto.CredentialsRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email and password required"))
		return
	}

	o.SignUpWithPassword(r.Context(), req.Email, req.Password)
	httperrors.WriteJSON(w, http.StatusOK, c.state(o))
}

// SendLink maneja POST /api/auth/link/send.
func (c *Controller) SendLink(w http.ResponseWriter, r *http.Request) {
	o := orch(w, r)
	if o == nil {
		return
	}
	if !c.toggles.EmailLink {
		httperrors.WriteError(w, errMethodDisabled)
		return
	}

	var req dto.EmailRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email required"))
		return
	}

	sent := o.SendSignInLinkToEmail(r.Context(), req.Email)
	resp := c.state(o)
	if !sent {
		// El estado ya trae la alerta; el caller decide si mantiene el form.
		logger.From(r.Context()).Debug("send link rejected", logger.Email(req.Email))
	}
	httperrors.WriteJSON(w, http.StatusOK, resp)
}

// CompleteLink maneja POST /api/auth/link/signin: completa el sign-in por
// link con la URL que el usuario abrió.
func (c *Controller) CompleteLink(w http.ResponseWriter, r *http.Request) {
	o := orch(w, r)
	if o == nil {
		return
	}
	if !c.toggles.EmailLink {
		httperrors.WriteError(w, errMethodDisabled)
		return
	}

	var req dto.LinkSignInRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("url required"))
		return
	}

	o.SignInWithEmailLink(r.Context(), req.URL, req.Email)
	httperrors.WriteJSON(w, http.StatusOK, c.state(o))
}

// Forgot maneja POST /api/auth/forgot.
func (c *Controller) Forgot(w http.ResponseWriter, r *http.Request) {
	o := orch(w, r)
	if o == nil {
		return
	}

	var req dto.EmailRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("email required"))
		return
	}

	o.SendPasswordResetEmail(r.Context(), req.Email)
	httperrors.WriteJSON(w, http.StatusOK, c.state(o))
}

// SignOut maneja POST /api/auth/signout.
func (c *Controller) SignOut(w http.ResponseWriter, r *http.Request) {
	o := orch(w, r)
	if o == nil {
		return
	}
	o.SignOut(r.Context())
	httperrors.WriteJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

// SocialStart maneja GET /auth/social/{provider}/start: arma la URL de
// autorización y hace el full-page redirect.
func (c *Controller) SocialStart(w http.ResponseWriter, r *http.Request) {
	o := orch(w, r)
	if o == nil {
		return
	}

	providerID := chi.URLParam(r, "provider")
	if !c.socialEnabled(providerID) {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("provider not enabled"))
		return
	}

	o.SignInWithOauthProvider(r.Context(), providerID)
	snap := o.Snapshot()
	if snap.Effect != auth.EffectRedirectProvider || snap.EffectURL == "" {
		// El orchestrator dejó la alerta en el estado; volvemos al sign-in.
		http.Redirect(w, r, "/signin", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, snap.EffectURL, http.StatusFound)
}

// SocialCallback maneja GET /auth/callback/{provider}: intercambia los
// parámetros del IdP, guarda el resultado en el store durable y lo resuelve.
// El stash + leer-y-borrar hace la resolución idempotente aunque el browser
// repita el callback.
func (c *Controller) SocialCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SocialCallback"))

	o := orch(w, r)
	if o == nil {
		return
	}

	providerID := chi.URLParam(r, "provider")
	if !c.socialEnabled(providerID) {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("provider not enabled"))
		return
	}

	var stash *identity.RedirectResult
	res, err := c.provider.ExchangeRedirect(ctx, providerID, r.URL.Query())
	if err != nil {
		log.Warn("federated exchange failed",
			logger.ProviderID(providerID), logger.Err(err))
		stash = &identity.RedirectResult{Code: identity.CodeOf(err), ProviderID: providerID}
	} else {
		stash = res
	}

	if err := o.StashRedirectResult(ctx, stash); err != nil {
		log.Error("stash redirect result failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	o.ResolveRedirectResult(ctx)

	snap := o.Snapshot()
	switch {
	case snap.Effect == auth.EffectRedirectProvider && snap.EffectURL != "":
		// Conflicto ruteado a otro proveedor federado: redirect silencioso.
		http.Redirect(w, r, snap.EffectURL, http.StatusFound)
	case snap.User != nil:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		http.Redirect(w, r, "/signin", http.StatusSeeOther)
	}
}
