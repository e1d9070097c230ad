package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/johnboard/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/johnboard/internal/http/errors"
	"github.com/dropDatabas3/johnboard/internal/identity"
)

// UpdateProfile maneja POST /api/profile.
func (c *Controller) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	o := orch(w, r)
	if o == nil {
		return
	}
	if o.CurrentSession() == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var req dto.ProfileRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if req.DisplayName == nil && req.AvatarURL == nil {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("nothing to update"))
		return
	}

	_ = o.UpdateProfile(r.Context(), identity.ProfilePatch{
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	})
	// Los rechazos viajan como alerta en el estado, no como status HTTP.
	httperrors.WriteJSON(w, http.StatusOK, c.state(o))
}

// ChangePassword maneja POST /api/profile/password. Re-prueba el password
// vigente antes de cambiarlo.
func (c *Controller) ChangePassword(w http.ResponseWriter, r *http.Request) {
	o := orch(w, r)
	if o == nil {
		return
	}
	if o.CurrentSession() == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	var req dto.PasswordChangeRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("old_password and new_password required"))
		return
	}

	_ = o.UpdatePassword(r.Context(), req.OldPassword, req.NewPassword)
	httperrors.WriteJSON(w, http.StatusOK, c.state(o))
}

// SendVerification maneja POST /api/profile/verify-email.
func (c *Controller) SendVerification(w http.ResponseWriter, r *http.Request) {
	o := orch(w, r)
	if o == nil {
		return
	}
	if o.CurrentSession() == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	_ = o.SendEmailVerification(r.Context())
	httperrors.WriteJSON(w, http.StatusOK, c.state(o))
}
