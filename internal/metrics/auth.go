package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus del flujo de auth. Viven en un paquete aparte para no
// generar ciclos de import entre el orchestrator y la capa HTTP.

var (
	SignInAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_sign_in_attempts_total",
		Help: "Intentos de sign-in por método y resultado",
	}, []string{"method", "outcome"}) // method: password|email_link|federated; outcome: ok|rejected|error

	SignInLinksSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_sign_in_links_sent_total",
		Help: "Sign-in links despachados por email",
	})

	AccountConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_account_conflicts_total",
		Help: "Conflictos account-exists-with-different-credential detectados",
	})

	CredentialLinks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_credential_links_total",
		Help: "Intentos de linking de credencial pendiente por resultado",
	}, []string{"outcome"}) // outcome: linked|already_linked|failed
)

// RegisterAuth registra las métricas de auth en el registry dado (default si nil).
func RegisterAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{SignInAttempts, SignInLinksSent, AccountConflicts, CredentialLinks} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
