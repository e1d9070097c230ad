package flow

import "testing"

func TestDirectiveLinkSent(t *testing.T) {
	d := LinkSent().Directive()

	if !d.SocialDisabled || !d.PasswordDisabled || !d.EmailDisabled {
		t.Fatalf("expected social/email/password disabled, got %+v", d)
	}
	if !d.SubmitDisabled || d.SubmitAction != ActionSendLinkToEmail {
		t.Fatalf("expected disabled resend submit, got %+v", d)
	}
	if d.Alert == nil || d.Alert.Severity != SeveritySuccess || d.Alert.Toast {
		t.Fatalf("expected non-toast success alert, got %+v", d.Alert)
	}
}

func TestDirectivePasswordRequiredPrefillsEmail(t *testing.T) {
	d := PasswordRequired("a@x.com").Directive()

	if !d.EmailDisabled || d.EmailPrefill != "a@x.com" {
		t.Fatalf("expected disabled prefilled email, got %+v", d)
	}
	if d.PasswordDisabled {
		t.Fatal("password input must stay enabled")
	}
	if d.SubmitAction != ActionSignInWithPassword {
		t.Fatalf("expected password submit, got %q", d.SubmitAction)
	}
}

func TestDirectiveEmailRequiredReenablesEmail(t *testing.T) {
	d := EmailRequiredForLink().Directive()

	if d.EmailDisabled || !d.EmailFocus {
		t.Fatalf("expected enabled focused email input, got %+v", d)
	}
	if d.SubmitAction != ActionSignInWithLink {
		t.Fatalf("expected link submit, got %q", d.SubmitAction)
	}
}

func TestDirectiveInvalidLinkOffersResend(t *testing.T) {
	d := InvalidLink().Directive()

	if d.SubmitAction != ActionSendLinkToEmail || d.SubmitDisabled {
		t.Fatalf("expected enabled resend submit, got %+v", d)
	}
	if d.Alert == nil || d.Alert.Severity != SeverityError {
		t.Fatalf("expected error alert, got %+v", d.Alert)
	}
}

func TestWithAlertOverridesStaticAlert(t *testing.T) {
	a := Alert{Severity: SeverityError, Title: "t", Message: "m", Toast: true}
	s := PasswordRequired("a@x.com").WithAlert(a)

	d := s.Directive()
	if d.Alert == nil || d.Alert.Title != "t" || !d.Alert.Toast {
		t.Fatalf("attached alert must win over the static one, got %+v", d.Alert)
	}
	if s.Kind != KindPasswordRequiredForEmail || s.Email != "a@x.com" {
		t.Fatalf("variant must not change when attaching an alert, got %+v", s)
	}

	cleared := s.ClearAlert().Directive()
	if cleared.Alert == nil || cleared.Alert.Severity != SeverityWarning {
		t.Fatalf("clearing must restore the static alert, got %+v", cleared.Alert)
	}
}
