package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/johnboard/internal/session"
)

// WithBrowserSession asegura la cookie de sesión de navegador y cuelga el
// orchestrator correspondiente del contexto. No autentica: solo correlaciona.
func WithBrowserSession(reg *session.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := session.EnsureCookie(w, r)
			o := reg.Get(r.Context(), sid, requestURL(r))

			ctx := setSessionID(r.Context(), sid)
			ctx = setOrchestrator(ctx, o)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestURL reconstruye la URL absoluta del request (para que el bootstrap
// pueda reconocer sign-in links en la URL de llegada).
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.RequestURI
}
