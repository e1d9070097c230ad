package rest

import (
	"testing"

	"github.com/dropDatabas3/johnboard/internal/identity"
)

// La tabla de códigos del API es el contrato con el proveedor; cualquier
// cambio acá tiene que ser deliberado. El conflicto account-exists no figura:
// el API lo reporta vía needConfirmation en la respuesta, nunca como error.
func TestMapAPICode(t *testing.T) {
	cases := []struct {
		msg  string
		want identity.Code
	}{
		{"EMAIL_NOT_FOUND", identity.CodeUserNotFound},
		{"USER_DISABLED", identity.CodeUserNotFound},
		{"INVALID_PASSWORD", identity.CodeInvalidCredentials},
		{"INVALID_LOGIN_CREDENTIALS", identity.CodeInvalidCredentials},
		{"INVALID_EMAIL", identity.CodeInvalidEmail},
		{"EMAIL_EXISTS", identity.CodeEmailAlreadyInUse},
		{"TOO_MANY_ATTEMPTS_TRY_LATER", identity.CodeQuotaExceeded},
		{"INVALID_OOB_CODE", identity.CodeInvalidOneTimeCode},
		{"EXPIRED_OOB_CODE", identity.CodeInvalidOneTimeCode},
		{"FEDERATED_USER_ID_ALREADY_LINKED", identity.CodeProviderAlreadyLinked},
		{"OPERATION_NOT_ALLOWED", identity.CodeOperationNotAllowed},
		// El API adjunta detalle tras el código; solo cuenta el primer token.
		{"EMAIL_NOT_FOUND : no user record", identity.CodeUserNotFound},
		{"SOMETHING_NEW", identity.CodeUnknown},
		{"", identity.CodeUnknown},
	}

	for _, tc := range cases {
		if got := mapAPICode(tc.msg); got != tc.want {
			t.Errorf("mapAPICode(%q) = %s, want %s", tc.msg, got, tc.want)
		}
	}
}

func TestIsSignInLinkURL(t *testing.T) {
	c := New(Config{BaseURL: "https://idp.example"})

	if !c.IsSignInLinkURL("https://app.example/signin?mode=signIn&oobCode=abc") {
		t.Fatal("expected sign-in link to be recognized")
	}
	for _, raw := range []string{
		"https://app.example/signin?mode=signIn",
		"https://app.example/signin?oobCode=abc",
		"https://app.example/signin",
		"://broken",
	} {
		if c.IsSignInLinkURL(raw) {
			t.Fatalf("unexpectedly recognized %q", raw)
		}
	}
}
