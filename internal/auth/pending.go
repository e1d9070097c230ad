package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/johnboard/internal/cache"
	"github.com/dropDatabas3/johnboard/internal/identity"
)

const (
	pendingCredentialPrefix = "auth:pending-credential:"

	// Los pendientes huérfanos (el usuario abandonó el flujo) expiran solos;
	// no hay limpieza proactiva.
	pendingCredentialTTL = 30 * time.Minute
)

// PendingCredentials guarda credenciales federadas a la espera de linking,
// keyed por el email en conflicto. Vive en el store durable porque tiene que
// sobrevivir el próximo full-page redirect.
type PendingCredentials struct {
	store cache.Client
}

// NewPendingCredentials crea el store sobre el cache namespaced de la sesión.
func NewPendingCredentials(store cache.Client) *PendingCredentials {
	return &PendingCredentials{store: store}
}

func pendingKey(email string) string {
	return pendingCredentialPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Put serializa y guarda la credencial bajo el email dado.
func (p *PendingCredentials) Put(ctx context.Context, email string, cred *identity.Credential) error {
	raw, err := cred.Encode()
	if err != nil {
		return err
	}
	return p.store.Set(ctx, pendingKey(email), raw, pendingCredentialTTL)
}

// Get retorna la credencial pendiente para el email, o (nil, nil) si no hay.
// Una entrada corrupta se descarta como ausente: nunca bloquea el sign-in.
func (p *PendingCredentials) Get(ctx context.Context, email string) (*identity.Credential, error) {
	raw, err := p.store.Get(ctx, pendingKey(email))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	cred, err := identity.DecodeCredential(raw)
	if err != nil {
		_ = p.store.Delete(ctx, pendingKey(email))
		return nil, nil
	}
	return cred, nil
}

// Delete consume la entrada del email.
func (p *PendingCredentials) Delete(ctx context.Context, email string) error {
	return p.store.Delete(ctx, pendingKey(email))
}
