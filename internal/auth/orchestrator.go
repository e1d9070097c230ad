// Package auth implementa el orchestrator de autenticación: la máquina de
// estados que reconcilia password, email-link y sign-in federado en un único
// estado observable por la UI.
//
// Hay un Orchestrator por sesión de navegador. Dos productores asíncronos lo
// alimentan (la suscripción continua a cambios de sesión y el chequeo one-shot
// del redirect result); ambos pasan por el mismo reducer bajo un mutex, nunca
// mutan campos compartidos por su cuenta.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dropDatabas3/johnboard/internal/auth/flow"
	"github.com/dropDatabas3/johnboard/internal/cache"
	"github.com/dropDatabas3/johnboard/internal/identity"
	"github.com/dropDatabas3/johnboard/internal/metrics"
	"github.com/dropDatabas3/johnboard/internal/observability/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionKey        = "auth:session"
	redirectResultKey = "auth:redirect-result"

	sessionTTL  = 24 * time.Hour
	linkTimeout = 10 * time.Second
)

// Deps agrupa las dependencias del orchestrator.
type Deps struct {
	Provider identity.Provider
	Store    cache.Client // namespaced a la sesión de navegador; sobrevive redirects
	Log      *zap.Logger

	// SignInURL es la URL absoluta de la página de sign-in: return-URL de los
	// sign-in links y destino del route guard.
	SignInURL string

	// CallbackURL es la URL absoluta del callback federado. El providerId
	// viaja en el path.
	CallbackURL string
}

// Snapshot es el estado observable por la UI en un instante. Effect (si hay)
// se consume al leerlo: la navegación se ejecuta una sola vez.
type Snapshot struct {
	Loading   bool           `json:"loading"`
	User      *identity.User `json:"user,omitempty"`
	Flow      flow.State     `json:"flow"`
	Directive flow.Directive `json:"directive"`
	Effect    Effect         `json:"effect,omitempty"`
	EffectURL string         `json:"effect_url,omitempty"`
}

// Orchestrator es la máquina de estados de autenticación de una sesión de
// navegador.
type Orchestrator struct {
	provider identity.Provider
	store    cache.Client
	log      *zap.Logger

	signInURL   string
	callbackURL string

	watcher  *identity.SessionWatcher
	pending  *PendingCredentials
	deferred *DeferredEmail

	// Guard de reentrada: la UI ya deshabilita el submit en vuelo, esto cubre
	// el doble-click que se escapa.
	inFlight atomic.Bool

	mu           sync.Mutex
	loading      bool
	session      *identity.Session
	flowState    flow.State
	effect       Effect
	effectURL    string
	route        string
	lastGuardKey string

	unsubscribe func()
	bootOnce    sync.Once
}

// New crea un orchestrator sin arrancar. Llamar Bootstrap antes de usarlo.
func New(d Deps) *Orchestrator {
	log := d.Log
	if log == nil {
		log = logger.L()
	}
	return &Orchestrator{
		provider:    d.Provider,
		store:       d.Store,
		log:         log.With(logger.Component("auth.orchestrator")),
		signInURL:   d.SignInURL,
		callbackURL: d.CallbackURL,
		watcher:     identity.NewSessionWatcher(),
		pending:     NewPendingCredentials(d.Store),
		deferred:    NewDeferredEmail(d.Store),
		loading:     true,
		flowState:   flow.Initial(),
	}
}

// ===============================
// Bootstrap / teardown
// ===============================

// Bootstrap arranca el orchestrator: instala la suscripción de sesión
// (exactamente una vez), restaura la sesión persistida, resuelve el redirect
// result pendiente y, si corresponde, auto-completa un sign-in link presente
// en currentURL. Al terminar baja loading junto con el último authUser, en
// una sola transición.
func (o *Orchestrator) Bootstrap(ctx context.Context, currentURL string) {
	o.bootOnce.Do(func() {
		o.unsubscribe = o.watcher.Subscribe(o.onSessionChanged)

		if s := o.restoreSession(ctx); s != nil {
			o.watcher.Set(s)
		}

		o.ResolveRedirectResult(ctx)

		if o.watcher.Current() == nil && currentURL != "" && o.provider.IsSignInLinkURL(currentURL) {
			o.SignInWithEmailLink(ctx, currentURL, "")
		}

		o.mu.Lock()
		o.loading = false
		o.mu.Unlock()
	})
}

// Close desarma la suscripción. Idempotente.
func (o *Orchestrator) Close() {
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
}

func (o *Orchestrator) restoreSession(ctx context.Context) *identity.Session {
	raw, err := o.store.Get(ctx, sessionKey)
	if err != nil {
		if !cache.IsNotFound(err) {
			o.log.Warn("no se pudo restaurar la sesión", logger.Err(err))
		}
		return nil
	}
	var s identity.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		_ = o.store.Delete(ctx, sessionKey)
		return nil
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		_ = o.store.Delete(ctx, sessionKey)
		return nil
	}
	return &s
}

func (o *Orchestrator) persistSession(ctx context.Context, s *identity.Session) {
	if s == nil {
		_ = o.store.Delete(ctx, sessionKey)
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		o.log.Error("no se pudo serializar la sesión", logger.Err(err))
		return
	}
	ttl := sessionTTL
	if !s.ExpiresAt.IsZero() {
		if d := time.Until(s.ExpiresAt); d > 0 && d < ttl {
			ttl = d
		}
	}
	if err := o.store.Set(ctx, sessionKey, string(b), ttl); err != nil {
		o.log.Error("no se pudo persistir la sesión", logger.Err(err))
	}
}

// ===============================
// Reducer
// ===============================

// onSessionChanged es el listener canónico: el ÚNICO punto que escribe
// authUser. Los productores publican al watcher y este reducer aplica la
// transición completa bajo el lock.
func (o *Orchestrator) onSessionChanged(s *identity.Session) {
	o.mu.Lock()
	wasSignedIn := o.session != nil
	o.session = s
	if s != nil && !wasSignedIn {
		// Sesión recién establecida: el flujo vuelve a cero y, si estábamos
		// en una página de entrada, navegamos al home.
		o.flowState = flow.Initial()
		if isAuthEntryRoute(o.route) {
			o.effect = EffectRedirectHome
			o.effectURL = "/"
		}
		o.lastGuardKey = ""
	}
	if s == nil && wasSignedIn {
		o.flowState = flow.Initial()
		o.lastGuardKey = ""
	}
	o.mu.Unlock()

	if s != nil && !wasSignedIn {
		// Best-effort, fuera del lock y del camino del sign-in.
		go o.linkPendingCredential(s)
	}
}

func (o *Orchestrator) setFlow(st flow.State) {
	o.mu.Lock()
	o.flowState = st
	o.mu.Unlock()
}

// attachAlert adjunta una alerta al flujo vigente sin cambiar la variante.
func (o *Orchestrator) attachAlert(a flow.Alert) {
	o.mu.Lock()
	o.flowState = o.flowState.WithAlert(a)
	o.mu.Unlock()
}

func (o *Orchestrator) setEffect(e Effect, u string) {
	o.mu.Lock()
	o.effect = e
	o.effectURL = u
	o.mu.Unlock()
}

// establishSession persiste y publica una sesión nueva. El listener canónico
// se encarga de authUser; acá no se toca estado del orchestrator.
func (o *Orchestrator) establishSession(ctx context.Context, s *identity.Session) {
	o.persistSession(ctx, s)
	o.watcher.Set(s)
}

// ===============================
// Snapshot y route guard
// ===============================

// SetRoute informa la ruta activa y evalúa el route guard. El guard dispara
// a lo sumo una vez por transición: con inputs sin cambios no re-dispara.
func (o *Orchestrator) SetRoute(route string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.route = route

	key := fmt.Sprintf("%s|%t|%t", route, o.loading, o.session != nil)
	if key == o.lastGuardKey {
		return
	}
	o.lastGuardKey = key

	if !o.loading && o.session == nil && !IsOpenRoute(route) {
		o.effect = EffectRedirectSignIn
		o.effectURL = o.signInURL
	}
	if !o.loading && o.session != nil && isAuthEntryRoute(route) {
		o.effect = EffectRedirectHome
		o.effectURL = ""
	}
}

// Snapshot retorna el estado observable y consume el effect pendiente.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		Loading:   o.loading,
		Flow:      o.flowState,
		Directive: o.flowState.Directive(),
		Effect:    o.effect,
		EffectURL: o.effectURL,
	}
	if o.session != nil {
		u := o.session.User()
		snap.User = &u
	}

	o.effect = EffectNone
	o.effectURL = ""
	return snap
}

// CurrentSession expone la sesión del proveedor para las operaciones de
// perfil. Nil si no hay usuario.
func (o *Orchestrator) CurrentSession() *identity.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// ===============================
// Sign-in con password
// ===============================

// SignInWithPassword delega en el proveedor. En éxito el listener canónico
// pobla authUser (acá no se setea, para no correr contra la suscripción);
// en rechazo la alerta mapeada se adjunta al flujo vigente.
func (o *Orchestrator) SignInWithPassword(ctx context.Context, email, password string) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer o.inFlight.Store(false)

	s, err := o.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		metrics.SignInAttempts.WithLabelValues("password", "rejected").Inc()
		o.log.Info("sign-in con password rechazado",
			logger.Email(email), logger.Err(err))
		o.attachAlert(alertFor(err))
		return
	}

	metrics.SignInAttempts.WithLabelValues("password", "ok").Inc()
	o.establishSession(ctx, s)
}

// SignUpWithPassword crea la cuenta en el proveedor. Mismo contrato que
// SignInWithPassword; "email already in use" llega con su mensaje propio.
func (o *Orchestrator) SignUpWithPassword(ctx context.Context, email, password string) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer o.inFlight.Store(false)

	s, err := o.provider.CreateAccount(ctx, email, password)
	if err != nil {
		metrics.SignInAttempts.WithLabelValues("password", "rejected").Inc()
		o.log.Info("sign-up rechazado", logger.Email(email), logger.Err(err))
		o.attachAlert(alertFor(err))
		return
	}

	metrics.SignInAttempts.WithLabelValues("password", "ok").Inc()
	o.establishSession(ctx, s)
}

// ===============================
// Email-link
// ===============================

// SendSignInLinkToEmail pide al proveedor despachar el link y, en éxito,
// persiste el email diferido y pasa el flujo a LinkSentToEmail. Retorna si
// el despacho salió bien para que la UI decida si cierra el form.
func (o *Orchestrator) SendSignInLinkToEmail(ctx context.Context, email string) bool {
	if !o.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer o.inFlight.Store(false)

	if err := o.provider.SendSignInLinkToEmail(ctx, email, o.signInURL); err != nil {
		o.log.Info("no se pudo despachar el sign-in link",
			logger.Email(email), logger.Err(err))
		o.attachAlert(alertFor(err))
		return false
	}

	if err := o.deferred.Put(ctx, email); err != nil {
		// El link ya salió; sin el email diferido el usuario tendrá que
		// re-ingresarlo al volver. No es fatal.
		o.log.Warn("no se pudo persistir el email diferido", logger.Err(err))
	}

	metrics.SignInLinksSent.Inc()
	o.setFlow(flow.LinkSent())
	return true
}

// SignInWithEmailLink completa un sign-in por link. Orden de resolución:
//  1. URL inválida → InvalidSignInLink.
//  2. Sin email diferido (ni argumento) → EmailRequiredForLinkSignIn.
//  3. Intercambio con el proveedor; éxito publica la sesión y limpia el
//     email diferido, rechazo mapea la alerta sobre el flujo que pide
//     email/resend.
//
// Se invoca explícitamente (el usuario re-envía su email) y automáticamente
// en el bootstrap cuando no hay sesión y la URL califica.
func (o *Orchestrator) SignInWithEmailLink(ctx context.Context, rawURL, email string) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer o.inFlight.Store(false)

	if !o.provider.IsSignInLinkURL(rawURL) {
		o.setFlow(flow.InvalidLink())
		return
	}

	if email != "" {
		// Segundo dispositivo: el usuario re-ingresó su dirección.
		if err := o.deferred.Put(ctx, email); err != nil {
			o.log.Warn("no se pudo persistir el email diferido", logger.Err(err))
		}
	}

	stored, err := o.deferred.Get(ctx)
	if err != nil {
		o.log.Error("no se pudo leer el email diferido", logger.Err(err))
		o.attachAlert(genericAlert)
		return
	}
	if stored == "" {
		o.setFlow(flow.EmailRequiredForLink())
		return
	}

	s, err := o.provider.CompleteSignInWithLink(ctx, stored, rawURL)
	if err != nil {
		metrics.SignInAttempts.WithLabelValues("email_link", "rejected").Inc()
		o.log.Info("sign-in con link rechazado",
			logger.Email(stored), logger.Err(err))
		if identity.IsCode(err, identity.CodeInvalidOneTimeCode) {
			o.setFlow(flow.InvalidLink())
		} else {
			o.setFlow(flow.EmailRequiredForLink().WithAlert(alertFor(err)))
		}
		return
	}

	metrics.SignInAttempts.WithLabelValues("email_link", "ok").Inc()
	if err := o.deferred.Clear(ctx); err != nil {
		o.log.Warn("no se pudo limpiar el email diferido", logger.Err(err))
	}
	o.establishSession(ctx, s)
}

// ===============================
// Sign-in federado
// ===============================

// SignInWithOauthProvider arma la URL de autorización del proveedor federado
// y señala el full-page redirect. No hay valor de retorno útil: la navegación
// corta la sesión de página y el resultado se recoge después, vía el redirect
// result.
func (o *Orchestrator) SignInWithOauthProvider(ctx context.Context, providerID string) {
	callback := fmt.Sprintf("%s/%s", o.callbackURL, url.PathEscape(providerID))
	authURL, err := o.provider.FederatedAuthURL(ctx, providerID, newState(), callback)
	if err != nil {
		metrics.SignInAttempts.WithLabelValues("federated", "error").Inc()
		o.log.Error("no se pudo iniciar el sign-in federado",
			logger.ProviderID(providerID), logger.Err(err))
		o.attachAlert(alertFor(err))
		return
	}
	o.setEffect(EffectRedirectProvider, authURL)
}

// StashRedirectResult guarda el resultado del callback federado en el store
// durable para que el próximo load lo consuma. El handoff replica el patrón
// de código-de-un-solo-uso: escribir acá, leer-y-borrar en
// ResolveRedirectResult.
func (o *Orchestrator) StashRedirectResult(ctx context.Context, res *identity.RedirectResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("auth: stash redirect result: %w", err)
	}
	return o.store.Set(ctx, redirectResultKey, string(b), 5*time.Minute)
}

// ResolveRedirectResult consume (una sola vez) el redirect result pendiente.
// Idempotente: sin resultado pendiente es un no-op, sin cambio de flujo ni
// alertas duplicadas.
func (o *Orchestrator) ResolveRedirectResult(ctx context.Context) {
	raw, err := o.store.Get(ctx, redirectResultKey)
	if err != nil {
		if !cache.IsNotFound(err) {
			o.log.Error("no se pudo leer el redirect result", logger.Err(err))
		}
		return
	}
	// Leer-y-borrar: la segunda resolución no encuentra nada.
	_ = o.store.Delete(ctx, redirectResultKey)

	var res identity.RedirectResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		o.log.Error("redirect result corrupto", logger.Err(err))
		return
	}

	switch {
	case res.Session != nil:
		metrics.SignInAttempts.WithLabelValues("federated", "ok").Inc()
		o.establishSession(ctx, res.Session)

	case res.Code == identity.CodeAccountExists:
		o.resolveAccountConflict(ctx, &res)

	case res.Code != "":
		metrics.SignInAttempts.WithLabelValues("federated", "rejected").Inc()
		o.log.Info("sign-in federado rechazado",
			logger.ProviderID(res.ProviderID), logger.String("code", string(res.Code)))
		o.attachAlert(alertFor(identity.NewError(res.Code, "")))
	}
}

// resolveAccountConflict maneja el caso central: la cuenta ya existe con otra
// credencial. Guarda la credencial pendiente keyed por email y rutea al
// usuario a probar ownership por su método original. Precedencia documentada:
// password primero; si no hay password, el primer método federado reportado.
func (o *Orchestrator) resolveAccountConflict(ctx context.Context, res *identity.RedirectResult) {
	metrics.AccountConflicts.Inc()

	if res.Email == "" || res.Credential == nil {
		o.log.Warn("conflicto de cuenta sin email o credencial; no se puede rutear")
		o.attachAlert(genericAlert)
		return
	}

	if err := o.pending.Put(ctx, res.Email, res.Credential); err != nil {
		o.log.Error("no se pudo guardar la credencial pendiente",
			logger.Email(res.Email), logger.Err(err))
		o.attachAlert(genericAlert)
		return
	}

	methods, err := o.provider.FetchSignInMethodsForEmail(ctx, res.Email)
	if err != nil {
		o.log.Error("no se pudieron obtener los métodos de sign-in",
			logger.Email(res.Email), logger.Err(err))
		o.attachAlert(genericAlert)
		return
	}

	if containsMethod(methods, identity.MethodPassword) {
		o.setFlow(flow.PasswordRequired(res.Email))
		return
	}

	for _, m := range methods {
		if m == identity.MethodPassword || m == identity.MethodEmailLink {
			continue
		}
		// El método existente es federado: el proof-of-ownership también va
		// por redirect, sin alerta de por medio.
		o.SignInWithOauthProvider(ctx, m)
		return
	}

	o.log.Warn("conflicto sin método utilizable", logger.Email(res.Email))
	o.attachAlert(genericAlert)
}

func containsMethod(methods []string, want string) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}

// linkPendingCredential corre después de que el listener setea authUser.
// Best-effort: jamás bloquea ni falla el sign-in que lo disparó; "already
// linked" cuenta como éxito y los demás errores se tragan con log.
func (o *Orchestrator) linkPendingCredential(s *identity.Session) {
	if s.Email == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), linkTimeout)
	defer cancel()

	cred, err := o.pending.Get(ctx, s.Email)
	if err != nil {
		o.log.Warn("no se pudo leer la credencial pendiente", logger.Err(err))
		return
	}
	if cred == nil {
		return
	}

	err = o.provider.LinkCredential(ctx, s, cred)
	switch {
	case err == nil:
		metrics.CredentialLinks.WithLabelValues("linked").Inc()
		o.log.Info("credencial pendiente linkeada",
			logger.Email(s.Email), logger.ProviderID(cred.ProviderID))
	case identity.IsCode(err, identity.CodeProviderAlreadyLinked):
		metrics.CredentialLinks.WithLabelValues("already_linked").Inc()
	default:
		metrics.CredentialLinks.WithLabelValues("failed").Inc()
		o.log.Warn("falló el linking de la credencial pendiente",
			logger.Email(s.Email), logger.Err(err))
		return
	}

	if err := o.pending.Delete(ctx, s.Email); err != nil {
		o.log.Warn("no se pudo borrar la credencial pendiente", logger.Err(err))
	}
}

// ===============================
// Pass-throughs
// ===============================

// SignOut cierra la sesión en el proveedor y publica la ausencia.
func (o *Orchestrator) SignOut(ctx context.Context) {
	s := o.CurrentSession()
	if s == nil {
		return
	}
	if err := o.provider.SignOut(ctx, s); err != nil {
		o.log.Warn("sign-out en el proveedor falló", logger.Err(err))
	}
	o.persistSession(ctx, nil)
	o.watcher.Set(nil)
}

// SendPasswordResetEmail delega en el proveedor; los rechazos se adjuntan
// como alerta.
func (o *Orchestrator) SendPasswordResetEmail(ctx context.Context, email string) bool {
	if err := o.provider.SendPasswordResetEmail(ctx, email); err != nil {
		o.log.Info("no se pudo enviar el reset de password",
			logger.Email(email), logger.Err(err))
		o.attachAlert(alertFor(err))
		return false
	}
	return true
}

// UpdateProfile aplica el patch y republica la sesión actualizada.
func (o *Orchestrator) UpdateProfile(ctx context.Context, patch identity.ProfilePatch) error {
	s := o.CurrentSession()
	if s == nil {
		return identity.NewError(identity.CodeUserNotFound, "no active session")
	}
	updated, err := o.provider.UpdateProfile(ctx, s, patch)
	if err != nil {
		o.attachAlert(alertFor(err))
		return err
	}
	o.establishSession(ctx, updated)
	return nil
}

// UpdatePassword re-prueba el password vigente antes de cambiarlo. Si la
// cuenta no tiene credencial de email, falla con su código propio.
func (o *Orchestrator) UpdatePassword(ctx context.Context, oldPassword, newPassword string) error {
	s := o.CurrentSession()
	if s == nil {
		return identity.NewError(identity.CodeUserNotFound, "no active session")
	}
	if err := o.provider.Reauthenticate(ctx, s, oldPassword); err != nil {
		o.attachAlert(alertFor(err))
		return err
	}
	if err := o.provider.UpdatePassword(ctx, s, newPassword); err != nil {
		o.attachAlert(alertFor(err))
		return err
	}
	return nil
}

// SendEmailVerification pide el email de verificación para la sesión activa.
func (o *Orchestrator) SendEmailVerification(ctx context.Context) error {
	s := o.CurrentSession()
	if s == nil {
		return identity.NewError(identity.CodeUserNotFound, "no active session")
	}
	if err := o.provider.SendEmailVerification(ctx, s); err != nil {
		o.attachAlert(alertFor(err))
		return err
	}
	return nil
}

func newState() string {
	return uuid.NewString()
}
