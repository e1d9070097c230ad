// Package federated contiene los clientes OAuth/OIDC contra IdPs reales.
// El emulador local los usa cuando hay credenciales de cliente configuradas;
// sin conector, el flujo federado se simula con un callback inmediato.
package federated

import (
	"context"
	"net/url"
)

// Identity es la identidad remota que devuelve un conector tras el exchange.
type Identity struct {
	ProviderID    string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string

	IDToken     string
	AccessToken string
}

// Connector habla el protocolo de un IdP concreto.
type Connector interface {
	// AuthURL construye la URL de autorización. state viaja de ida y vuelta
	// y es de un solo uso.
	AuthURL(ctx context.Context, state string) (string, error)

	// Exchange canjea el query del callback (code, state) por la identidad.
	Exchange(ctx context.Context, query url.Values) (*Identity, error)
}
