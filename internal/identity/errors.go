package identity

import (
	"errors"
	"fmt"
)

// Code clasifica los rechazos del proveedor. Los códigos "synthetic" no
// vienen del proveedor: los deriva el orchestrator para señalar transiciones
// de flujo disfrazadas de error.
type Code string

const (
	CodeInvalidCredentials  Code = "invalid-credentials"
	CodeUserNotFound        Code = "user-not-found"
	CodeInvalidEmail        Code = "invalid-email"
	CodeEmailAlreadyInUse   Code = "email-already-in-use"
	CodeQuotaExceeded       Code = "quota-exceeded"
	CodeInvalidOneTimeCode  Code = "invalid-one-time-code"
	CodeOperationNotAllowed Code = "operation-not-allowed"

	// CodeAccountExists: "account exists with different credential". No es un
	// error terminal; dispara el flujo de linking.
	CodeAccountExists Code = "account-exists-with-different-credential"

	// CodeProviderAlreadyLinked: la credencial ya estaba linkeada. Tratado
	// como éxito por el linking best-effort.
	CodeProviderAlreadyLinked Code = "provider-already-linked"

	// Synthetic, derivados localmente.
	CodePasswordRequired       Code = "password-required-for-email"
	CodeEmailRequired          Code = "email-required-for-link"
	CodeMissingEmailCredential Code = "missing-email-credential"

	CodeUnknown Code = "unknown"
)

// Error es el error estándar del proveedor.
type Error struct {
	Code    Code
	Message string
	Err     error // causa original, opcional
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity: %s: %v", e.Code, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("identity: %s: %s", e.Code, e.Message)
	}
	return "identity: " + string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError crea un Error con el código dado.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError envuelve una causa con un código.
func WrapError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// CodeOf extrae el Code de un error. Errores ajenos mapean a CodeUnknown
// (fail-soft: nunca crashear el flujo por un código no reconocido).
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnknown
}

// IsCode verifica si un error lleva el código dado.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
