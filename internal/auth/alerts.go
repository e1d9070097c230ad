package auth

import (
	"github.com/dropDatabas3/johnboard/internal/auth/flow"
	"github.com/dropDatabas3/johnboard/internal/identity"
)

// alertTable mapea códigos del proveedor a alertas user-facing. Todo código
// no listado cae en genericAlert (fail-soft: un código nuevo del proveedor
// jamás rompe el flujo).
var alertTable = map[identity.Code]flow.Alert{
	identity.CodeInvalidCredentials: {
		Severity: flow.SeverityError,
		Title:    "Sign-in failed",
		Message:  "The email or password is incorrect.",
		Toast:    true,
	},
	identity.CodeUserNotFound: {
		Severity: flow.SeverityError,
		Title:    "Account not found",
		Message:  "No account exists for that email address.",
		Toast:    true,
	},
	identity.CodeInvalidEmail: {
		Severity: flow.SeverityError,
		Title:    "Invalid email",
		Message:  "That doesn't look like a valid email address.",
		Toast:    true,
	},
	identity.CodeEmailAlreadyInUse: {
		Severity: flow.SeverityError,
		Title:    "Email already in use",
		Message:  "An account with that email already exists. Try signing in instead.",
		Toast:    true,
	},
	identity.CodeQuotaExceeded: {
		Severity: flow.SeverityError,
		Title:    "Too many attempts",
		Message:  "Too many attempts in a short time. Wait a few minutes and try again.",
		Toast:    true,
	},
	identity.CodeInvalidOneTimeCode: {
		Severity: flow.SeverityError,
		Title:    "Invalid sign-in link",
		Message:  "This sign-in link is invalid or has expired. Request a new one.",
		Toast:    true,
	},
	identity.CodeOperationNotAllowed: {
		Severity: flow.SeverityError,
		Title:    "Sign-in method disabled",
		Message:  "This sign-in method is not enabled. Contact the administrator.",
		Toast:    true,
	},
	identity.CodeMissingEmailCredential: {
		Severity: flow.SeverityError,
		Title:    "No password on this account",
		Message:  "This account has no email/password credential to re-verify. Sign in again with your original method.",
		Toast:    true,
	},
}

var genericAlert = flow.Alert{
	Severity: flow.SeverityError,
	Title:    "Something went wrong",
	Message:  "An unexpected error occurred. Please try again.",
	Toast:    true,
}

// alertFor resuelve la alerta para un error del proveedor.
func alertFor(err error) flow.Alert {
	if a, ok := alertTable[identity.CodeOf(err)]; ok {
		return a
	}
	return genericAlert
}
