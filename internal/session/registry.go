// Package session mantiene un Orchestrator por sesión de navegador,
// identificada por cookie. Los orchestrators inactivos expiran y se cierran
// solos; la creación pasa por singleflight para que dos requests simultáneos
// de la misma sesión no la bootstrapeen dos veces.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/johnboard/internal/auth"
	"github.com/dropDatabas3/johnboard/internal/cache"
	"github.com/dropDatabas3/johnboard/internal/identity"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CookieName es la cookie de sesión de navegador. No autentica nada por sí
// sola: solo correlaciona requests con su orchestrator y su store durable.
const CookieName = "jb_sid"

const (
	defaultIdleTTL = 30 * time.Minute
	storePrefix    = "sess:"
)

// Deps del registry.
type Deps struct {
	Provider identity.Provider
	Store    cache.Client // store durable compartido; se namespacea por sesión
	Log      *zap.Logger

	SignInURL   string
	CallbackURL string

	// IdleTTL es cuánto vive un orchestrator sin actividad. 0 = default.
	IdleTTL time.Duration
}

// Registry resuelve session-id → Orchestrator.
type Registry struct {
	deps    Deps
	idleTTL time.Duration
	orchs   *gocache.Cache
	sf      singleflight.Group
}

// NewRegistry crea el registry. Los orchestrators evictados se cierran.
func NewRegistry(d Deps) *Registry {
	ttl := d.IdleTTL
	if ttl == 0 {
		ttl = defaultIdleTTL
	}

	c := gocache.New(ttl, 5*time.Minute)
	c.OnEvicted(func(_ string, v interface{}) {
		if o, ok := v.(*auth.Orchestrator); ok {
			o.Close()
		}
	})

	return &Registry{deps: d, idleTTL: ttl, orchs: c}
}

// Get retorna el orchestrator de la sesión, creándolo y bootstrapeándolo si
// no existe. currentURL es la URL del request que disparó la creación (para
// auto-completar sign-in links en el bootstrap).
func (r *Registry) Get(ctx context.Context, sid, currentURL string) *auth.Orchestrator {
	if v, ok := r.orchs.Get(sid); ok {
		o := v.(*auth.Orchestrator)
		r.orchs.Set(sid, o, gocache.DefaultExpiration) // desliza la expiración
		return o
	}

	v, _, _ := r.sf.Do(sid, func() (interface{}, error) {
		if v, ok := r.orchs.Get(sid); ok {
			return v, nil
		}
		o := auth.New(auth.Deps{
			Provider:    r.deps.Provider,
			Store:       cache.Namespaced(r.deps.Store, storePrefix+sid),
			Log:         r.deps.Log,
			SignInURL:   r.deps.SignInURL,
			CallbackURL: r.deps.CallbackURL,
		})
		o.Bootstrap(ctx, currentURL)
		r.orchs.Set(sid, o, gocache.DefaultExpiration)
		return o, nil
	})
	return v.(*auth.Orchestrator)
}

// Close cierra todos los orchestrators vivos.
func (r *Registry) Close() {
	for _, item := range r.orchs.Items() {
		if o, ok := item.Object.(*auth.Orchestrator); ok {
			o.Close()
		}
	}
	r.orchs.Flush()
}

// EnsureCookie lee la cookie de sesión o la emite si falta. Retorna el sid.
func EnsureCookie(w http.ResponseWriter, req *http.Request) string {
	if c, err := req.Cookie(CookieName); err == nil && c.Value != "" {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}
