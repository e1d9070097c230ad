// Package identity define la superficie de capacidades del proveedor de
// identidad externo. El core de johnboard consume estas operaciones, no las
// implementa: password hashing, emisión de tokens y delivery de emails son
// responsabilidad del proveedor.
//
// Implementaciones:
//   - rest:  cliente HTTP contra un API estilo identity-toolkit (producción)
//   - local: emulador in-process para desarrollo y tests
package identity

import (
	"context"
	"net/url"
	"time"
)

// Identificadores de métodos de sign-in tal como los reporta el proveedor.
const (
	MethodPassword  = "password"
	MethodEmailLink = "emailLink"

	ProviderGoogle   = "google.com"
	ProviderFacebook = "facebook.com"
	ProviderGitHub   = "github.com"
	ProviderApple    = "apple.com"
	ProviderTwitter  = "twitter.com"
)

// User es el principal autenticado tal como lo expone el orchestrator.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// Session es el bundle de credenciales emitido por el proveedor para un
// usuario autenticado. Es opaco para la UI; el orchestrator lo usa para
// derivar el User y para operaciones que requieren sesión.
type Session struct {
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name,omitempty"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	IDToken       string    `json:"id_token"`
	RefreshToken  string    `json:"refresh_token,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
}

// User deriva el principal visible a partir de la sesión.
func (s *Session) User() User {
	return User{
		ID:            s.UserID,
		Email:         s.Email,
		DisplayName:   s.DisplayName,
		AvatarURL:     s.AvatarURL,
		EmailVerified: s.EmailVerified,
	}
}

// ProfilePatch describe cambios parciales de perfil.
// Un puntero nil significa "no tocar ese campo".
type ProfilePatch struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// RedirectResult es el resultado de un intento de sign-in federado al volver
// del proveedor. En éxito Session != nil y Code vacío. En el caso de conflicto
// (cuenta existente con otra credencial) Code lo indica y Email/Credential
// traen lo necesario para resolverlo.
type RedirectResult struct {
	Session    *Session    `json:"session,omitempty"`
	Code       Code        `json:"code,omitempty"`
	Email      string      `json:"email,omitempty"`
	Credential *Credential `json:"credential,omitempty"`
	ProviderID string      `json:"provider_id,omitempty"`
}

// Provider es la superficie de capacidades del proveedor de identidad.
// Todas las operaciones son sincrónicas respecto del caller; los errores
// retornados llevan un Code mapeable (ver errors.go).
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	CreateAccount(ctx context.Context, email, password string) (*Session, error)
	SendPasswordResetEmail(ctx context.Context, email string) error

	// SendSignInLinkToEmail despacha un link de un solo uso a email.
	// returnURL es la URL de la página de sign-in a la que vuelve el link.
	SendSignInLinkToEmail(ctx context.Context, email, returnURL string) error

	// IsSignInLinkURL verifica si la URL corresponde a un sign-in link del
	// proveedor. No valida que el código siga vigente.
	IsSignInLinkURL(rawURL string) bool

	CompleteSignInWithLink(ctx context.Context, email, rawURL string) (*Session, error)

	// FederatedAuthURL construye la URL de autorización del proveedor
	// federado. El caller hace el full-page redirect.
	FederatedAuthURL(ctx context.Context, providerID, state, callbackURL string) (string, error)

	// ExchangeRedirect intercambia los parámetros del callback federado por
	// una sesión. Se llama una vez por round-trip, desde el callback handler.
	ExchangeRedirect(ctx context.Context, providerID string, query url.Values) (*RedirectResult, error)

	// FetchSignInMethodsForEmail retorna los métodos registrados para un
	// email, en el orden de preferencia del proveedor.
	FetchSignInMethodsForEmail(ctx context.Context, email string) ([]string, error)

	// LinkCredential agrega una credencial federada a la cuenta de la sesión.
	LinkCredential(ctx context.Context, s *Session, cred *Credential) error

	UpdateProfile(ctx context.Context, s *Session, patch ProfilePatch) (*Session, error)
	Reauthenticate(ctx context.Context, s *Session, password string) error
	UpdatePassword(ctx context.Context, s *Session, newPassword string) error
	SendEmailVerification(ctx context.Context, s *Session) error
	SignOut(ctx context.Context, s *Session) error
}
