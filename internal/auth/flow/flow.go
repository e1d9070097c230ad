// Package flow modela el estado de UX del sign-in como un variant cerrado.
// Cada variante lleva una directiva precomputada (qué controles deshabilitar,
// qué acción dispara el submit, qué alerta mostrar); la capa de presentación
// renderiza la directiva tal cual, sin lógica propia.
package flow

// Kind discrimina la variante activa.
type Kind string

const (
	KindInitial                    Kind = "initial"
	KindLinkSentToEmail            Kind = "link-sent-to-email"
	KindSignInWithLinkRequired     Kind = "sign-in-with-link-required"
	KindPasswordRequiredForEmail   Kind = "password-required-for-email"
	KindEmailRequiredForLinkSignIn Kind = "email-required-for-link-sign-in"
	KindInvalidSignInLink          Kind = "invalid-sign-in-link"
)

// Acciones que puede disparar el botón de submit.
type Action string

const (
	ActionSendLinkToEmail    Action = "sendLinkToEmail"
	ActionSignInWithLink     Action = "signInWithLink"
	ActionSignInWithPassword Action = "signInWithPassword"
)

// Severidades de alerta.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
)

// Alert es el descriptor de alerta que acompaña a una directiva. Toast pide
// además una notificación transitoria; la card inline persiste hasta la
// próxima transición.
type Alert struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Toast    bool     `json:"toast"`
}

// State es el estado de flujo vigente. Email solo aplica a
// PasswordRequiredForEmail (el email en conflicto, pre-cargado y bloqueado).
// Alert, si está seteado, reemplaza la alerta estática de la variante sin
// cambiar la variante (rechazos del proveedor se adjuntan así).
type State struct {
	Kind  Kind   `json:"kind"`
	Email string `json:"email,omitempty"`
	Alert *Alert `json:"alert,omitempty"`
}

// Directive es el contrato con la capa de presentación: campos listos para
// renderizar, sin interpretación adicional.
type Directive struct {
	SocialDisabled   bool   `json:"social_disabled"`
	EmailDisabled    bool   `json:"email_disabled"`
	EmailPrefill     string `json:"email_prefill,omitempty"`
	EmailFocus       bool   `json:"email_focus"`
	PasswordDisabled bool   `json:"password_disabled"`
	SubmitAction     Action `json:"submit_action"`
	SubmitLabel      string `json:"submit_label"`
	SubmitDisabled   bool   `json:"submit_disabled"`
	Alert            *Alert `json:"alert,omitempty"`
}

// ===============================
// Constructores
// ===============================

func Initial() State                { return State{Kind: KindInitial} }
func LinkSent() State               { return State{Kind: KindLinkSentToEmail} }
func SignInWithLinkRequired() State { return State{Kind: KindSignInWithLinkRequired} }
func EmailRequiredForLink() State   { return State{Kind: KindEmailRequiredForLinkSignIn} }
func InvalidLink() State            { return State{Kind: KindInvalidSignInLink} }

func PasswordRequired(email string) State {
	return State{Kind: KindPasswordRequiredForEmail, Email: email}
}

// WithAlert retorna una copia del estado con la alerta adjunta. La variante
// no cambia: así se reportan rechazos del proveedor sin perder el flujo.
func (s State) WithAlert(a Alert) State {
	s.Alert = &a
	return s
}

// ClearAlert retorna una copia sin alerta adjunta.
func (s State) ClearAlert() State {
	s.Alert = nil
	return s
}

// ===============================
// Tabla de directivas
// ===============================

// Directive computa la directiva de la variante. La tabla es estática y
// exhaustiva; una alerta adjunta en el estado pisa la alerta de la tabla.
func (s State) Directive() Directive {
	var d Directive

	switch s.Kind {
	case KindInitial:
		d = Directive{
			SubmitAction: ActionSignInWithPassword,
			SubmitLabel:  "Sign in",
		}

	case KindLinkSentToEmail:
		d = Directive{
			SocialDisabled:   true,
			EmailDisabled:    true,
			PasswordDisabled: true,
			SubmitAction:     ActionSendLinkToEmail,
			SubmitLabel:      "Resend link",
			SubmitDisabled:   true,
			Alert: &Alert{
				Severity: SeveritySuccess,
				Title:    "Link sent",
				Message:  "Check your inbox for a sign-in link. You can close this tab.",
			},
		}

	case KindSignInWithLinkRequired:
		d = Directive{
			SocialDisabled:   true,
			EmailDisabled:    true,
			PasswordDisabled: true,
			SubmitAction:     ActionSignInWithLink,
			SubmitLabel:      "Sign in with link",
		}

	case KindPasswordRequiredForEmail:
		d = Directive{
			SocialDisabled: true,
			EmailDisabled:  true,
			EmailPrefill:   s.Email,
			SubmitAction:   ActionSignInWithPassword,
			SubmitLabel:    "Sign in",
			Alert: &Alert{
				Severity: SeverityWarning,
				Title:    "Account already exists",
				Message:  "An account with this email already exists. Sign in with your password to link the new sign-in method.",
			},
		}

	case KindEmailRequiredForLinkSignIn:
		d = Directive{
			SocialDisabled:   true,
			EmailFocus:       true,
			PasswordDisabled: true,
			SubmitAction:     ActionSignInWithLink,
			SubmitLabel:      "Sign in with link",
			Alert: &Alert{
				Severity: SeverityInfo,
				Title:    "Confirm your email",
				Message:  "Enter the email address this sign-in link was sent to.",
			},
		}

	case KindInvalidSignInLink:
		d = Directive{
			SocialDisabled:   true,
			PasswordDisabled: true,
			SubmitAction:     ActionSendLinkToEmail,
			SubmitLabel:      "Resend link",
			Alert: &Alert{
				Severity: SeverityError,
				Title:    "Invalid sign-in link",
				Message:  "This sign-in link is invalid or has expired. Enter your email to receive a new one.",
			},
		}

	default:
		// Estado desconocido: render seguro equivalente a Initial.
		d = Directive{
			SubmitAction: ActionSignInWithPassword,
			SubmitLabel:  "Sign in",
		}
	}

	if s.Alert != nil {
		d.Alert = s.Alert
	}
	return d
}
