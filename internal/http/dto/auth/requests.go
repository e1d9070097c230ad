// Package dto define los contratos JSON de la superficie de auth.
package dto

// CredentialsRequest es el body de sign-in y sign-up con password.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailRequest es el body de las operaciones que solo llevan email
// (send link, forgot password).
type EmailRequest struct {
	Email string `json:"email"`
}

// LinkSignInRequest completa un sign-in por link. Email es opcional: solo
// hace falta cuando el flujo se completa en otro dispositivo.
type LinkSignInRequest struct {
	URL   string `json:"url"`
	Email string `json:"email,omitempty"`
}

// ProfileRequest es el patch de perfil. Punteros nil = no tocar.
type ProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// PasswordChangeRequest cambia el password re-probando el vigente.
type PasswordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}
