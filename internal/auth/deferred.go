package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/johnboard/internal/cache"
)

const (
	// Key fija y única: hay a lo sumo un flujo de email-link activo por sesión.
	deferredEmailKey = "auth:email-for-signin-link"

	// El link del proveedor dura horas; el email diferido lo acompaña.
	deferredEmailTTL = 24 * time.Hour
)

// DeferredEmail guarda el email que el usuario ingresó antes de irse a su
// cliente de correo a abrir el sign-in link. Durable: el flujo puede
// completarse en otra pestaña o dispositivo.
type DeferredEmail struct {
	store cache.Client
}

// NewDeferredEmail crea el store sobre el cache namespaced de la sesión.
func NewDeferredEmail(store cache.Client) *DeferredEmail {
	return &DeferredEmail{store: store}
}

// Put persiste el email diferido.
func (d *DeferredEmail) Put(ctx context.Context, email string) error {
	return d.store.Set(ctx, deferredEmailKey, strings.TrimSpace(email), deferredEmailTTL)
}

// Get retorna el email diferido, o "" si no hay.
func (d *DeferredEmail) Get(ctx context.Context) (string, error) {
	raw, err := d.store.Get(ctx, deferredEmailKey)
	if err != nil {
		if cache.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return raw, nil
}

// Clear borra el email diferido (se consumió en un sign-in exitoso).
func (d *DeferredEmail) Clear(ctx context.Context) error {
	return d.store.Delete(ctx, deferredEmailKey)
}
