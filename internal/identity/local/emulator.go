// Package local implementa identity.Provider en memoria, para desarrollo y
// tests. Emula el contrato del proveedor real: passwords con bcrypt, sesiones
// como JWT HS256 y links de un solo uso por email. El flujo federado usa los
// conectores OAuth reales cuando hay credenciales configuradas; sin conector
// se simula con un callback inmediato y la identidad elegida por query.
package local

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/johnboard/internal/email"
	"github.com/dropDatabas3/johnboard/internal/identity"
	"github.com/dropDatabas3/johnboard/internal/identity/federated"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	oobTTL     = time.Hour
	sessionTTL = time.Hour
)

type oobKind string

const (
	oobSignIn oobKind = "signin"
	oobReset  oobKind = "reset"
	oobVerify oobKind = "verify"
)

type oobRecord struct {
	email   string
	kind    oobKind
	expires time.Time
}

type account struct {
	id            string
	email         string
	passwordHash  []byte
	displayName   string
	avatarURL     string
	emailVerified bool
	methods       []string // orden de alta; password/emailLink/providerIDs
}

func (a *account) hasMethod(m string) bool {
	for _, have := range a.methods {
		if have == m {
			return true
		}
	}
	return false
}

func (a *account) addMethod(m string) {
	if !a.hasMethod(m) {
		a.methods = append(a.methods, m)
	}
}

// Config del emulador.
type Config struct {
	JWTSecret string
	Sender    email.Sender // nil = LogSender

	// Connectors mapea providerID → cliente OAuth real. Los providers sin
	// conector usan el flujo simulado.
	Connectors map[string]federated.Connector
}

// Emulator es el proveedor in-process.
type Emulator struct {
	secret     []byte
	sender     email.Sender
	connectors map[string]federated.Connector

	mu       sync.Mutex
	accounts map[string]*account // key: email en minúsculas
	oob      map[string]oobRecord
}

// New crea un emulador vacío.
func New(cfg Config) *Emulator {
	sender := cfg.Sender
	if sender == nil {
		sender = &email.LogSender{}
	}
	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
	}
	return &Emulator{
		secret:     []byte(secret),
		sender:     sender,
		connectors: cfg.Connectors,
		accounts:   make(map[string]*account),
		oob:        make(map[string]oobRecord),
	}
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func validEmail(e string) bool {
	at := strings.IndexByte(e, '@')
	return at > 0 && at < len(e)-1 && strings.ContainsRune(e[at:], '.')
}

func (e *Emulator) mintSession(a *account) *identity.Session {
	now := time.Now()
	exp := now.Add(sessionTTL)

	claims := jwtv5.MapClaims{
		"sub":            a.id,
		"email":          a.email,
		"email_verified": a.emailVerified,
		"iat":            now.Unix(),
		"exp":            exp.Unix(),
	}
	if a.displayName != "" {
		claims["name"] = a.displayName
	}
	if a.avatarURL != "" {
		claims["picture"] = a.avatarURL
	}

	tok, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(e.secret)
	if err != nil {
		// HS256 con secret fijo no falla; dejamos el token vacío por las dudas.
		tok = ""
	}

	return &identity.Session{
		UserID:        a.id,
		Email:         a.email,
		DisplayName:   a.displayName,
		AvatarURL:     a.avatarURL,
		EmailVerified: a.emailVerified,
		IDToken:       tok,
		RefreshToken:  uuid.NewString(),
		ExpiresAt:     exp,
	}
}

func (e *Emulator) issueOOB(em string, kind oobKind) string {
	code := uuid.NewString()
	e.oob[code] = oobRecord{email: normEmail(em), kind: kind, expires: time.Now().Add(oobTTL)}
	return code
}

func (e *Emulator) takeOOB(code string, kind oobKind) (oobRecord, bool) {
	rec, ok := e.oob[code]
	if !ok || rec.kind != kind || time.Now().After(rec.expires) {
		return oobRecord{}, false
	}
	delete(e.oob, code)
	return rec, true
}

// ─── Password ───

func (e *Emulator) SignInWithPassword(_ context.Context, em, password string) (*identity.Session, error) {
	if !validEmail(em) {
		return nil, identity.NewError(identity.CodeInvalidEmail, "INVALID_EMAIL")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.accounts[normEmail(em)]
	if !ok {
		return nil, identity.NewError(identity.CodeUserNotFound, "EMAIL_NOT_FOUND")
	}
	if len(a.passwordHash) == 0 {
		return nil, identity.NewError(identity.CodeInvalidCredentials, "INVALID_PASSWORD")
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return nil, identity.NewError(identity.CodeInvalidCredentials, "INVALID_PASSWORD")
	}
	return e.mintSession(a), nil
}

func (e *Emulator) CreateAccount(_ context.Context, em, password string) (*identity.Session, error) {
	if !validEmail(em) {
		return nil, identity.NewError(identity.CodeInvalidEmail, "INVALID_EMAIL")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := normEmail(em)
	if _, exists := e.accounts[key]; exists {
		return nil, identity.NewError(identity.CodeEmailAlreadyInUse, "EMAIL_EXISTS")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, identity.WrapError(identity.CodeUnknown, err)
	}

	a := &account{
		id:           uuid.NewString(),
		email:        key,
		passwordHash: hash,
		methods:      []string{identity.MethodPassword},
	}
	e.accounts[key] = a
	return e.mintSession(a), nil
}

func (e *Emulator) SendPasswordResetEmail(_ context.Context, em string) error {
	e.mu.Lock()
	_, ok := e.accounts[normEmail(em)]
	var code string
	if ok {
		code = e.issueOOB(em, oobReset)
	}
	e.mu.Unlock()

	if !ok {
		return identity.NewError(identity.CodeUserNotFound, "EMAIL_NOT_FOUND")
	}
	return e.sender.Send(em, "Reset your password", "",
		fmt.Sprintf("Use this code to reset your password: %s", code))
}

// ─── Email-link ───

func (e *Emulator) SendSignInLinkToEmail(_ context.Context, em, returnURL string) error {
	if !validEmail(em) {
		return identity.NewError(identity.CodeInvalidEmail, "INVALID_EMAIL")
	}

	e.mu.Lock()
	code := e.issueOOB(em, oobSignIn)
	e.mu.Unlock()

	sep := "?"
	if strings.Contains(returnURL, "?") {
		sep = "&"
	}
	link := fmt.Sprintf("%s%smode=signIn&oobCode=%s", returnURL, sep, code)

	return e.sender.Send(em, "Your sign-in link", "",
		fmt.Sprintf("Open this link to sign in: %s", link))
}

func (e *Emulator) IsSignInLinkURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	q := u.Query()
	return q.Get("mode") == "signIn" && q.Get("oobCode") != ""
}

func (e *Emulator) CompleteSignInWithLink(_ context.Context, em, rawURL string) (*identity.Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, identity.NewError(identity.CodeInvalidOneTimeCode, "INVALID_OOB_CODE")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.takeOOB(u.Query().Get("oobCode"), oobSignIn)
	if !ok || rec.email != normEmail(em) {
		return nil, identity.NewError(identity.CodeInvalidOneTimeCode, "INVALID_OOB_CODE")
	}

	// El link prueba ownership del email: auto-provisiona si hace falta y
	// deja el email verificado.
	key := rec.email
	a, exists := e.accounts[key]
	if !exists {
		a = &account{id: uuid.NewString(), email: key}
		e.accounts[key] = a
	}
	a.addMethod(identity.MethodEmailLink)
	a.emailVerified = true
	return e.mintSession(a), nil
}

// ─── Federado ───

// FederatedAuthURL delega en el conector real si hay uno configurado para el
// provider. Sin conector, el "IdP" somos nosotros: la URL de autorización es
// directamente el callback con un code fresco, y la identidad remota se elige
// con los params email/name del callback (o una identidad dev por defecto).
func (e *Emulator) FederatedAuthURL(ctx context.Context, providerID, state, callbackURL string) (string, error) {
	if conn, ok := e.connectors[providerID]; ok {
		return conn.AuthURL(ctx, state)
	}

	sep := "?"
	if strings.Contains(callbackURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sstate=%s&code=%s", callbackURL, sep,
		url.QueryEscape(state), uuid.NewString()), nil
}

func (e *Emulator) ExchangeRedirect(ctx context.Context, providerID string, query url.Values) (*identity.RedirectResult, error) {
	if conn, ok := e.connectors[providerID]; ok {
		remote, err := conn.Exchange(ctx, query)
		if err != nil {
			return nil, identity.WrapError(identity.CodeInvalidOneTimeCode, err)
		}
		return e.admitFederated(providerID, remote)
	}

	if query.Get("code") == "" {
		return nil, identity.NewError(identity.CodeInvalidOneTimeCode, "INVALID_OOB_CODE")
	}

	em := normEmail(query.Get("email"))
	if em == "" {
		em = "dev@" + providerID
	}
	return e.admitFederated(providerID, &federated.Identity{
		ProviderID:    providerID,
		Subject:       "local|" + em,
		Email:         em,
		EmailVerified: true,
		Name:          query.Get("name"),
	})
}

// admitFederated aplica la identidad remota sobre el directorio de cuentas:
// upsert si el provider ya está linkeado o la cuenta es nueva, conflicto de
// linking si el email existe con otros métodos.
func (e *Emulator) admitFederated(providerID string, remote *federated.Identity) (*identity.RedirectResult, error) {
	em := normEmail(remote.Email)
	if em == "" {
		return nil, identity.NewError(identity.CodeMissingEmailCredential, "federated identity without email")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, exists := e.accounts[em]
	if exists && !a.hasMethod(providerID) {
		return &identity.RedirectResult{
			Code:       identity.CodeAccountExists,
			Email:      em,
			ProviderID: providerID,
			Credential: &identity.Credential{
				ProviderID:  providerID,
				Subject:     remote.Subject,
				IDToken:     remote.IDToken,
				AccessToken: remote.AccessToken,
				Email:       em,
			},
		}, nil
	}

	if !exists {
		a = &account{
			id:            uuid.NewString(),
			email:         em,
			displayName:   remote.Name,
			avatarURL:     remote.Picture,
			emailVerified: remote.EmailVerified,
		}
		e.accounts[em] = a
	}
	a.addMethod(providerID)
	return &identity.RedirectResult{Session: e.mintSession(a), ProviderID: providerID}, nil
}

func (e *Emulator) FetchSignInMethodsForEmail(_ context.Context, em string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.accounts[normEmail(em)]
	if !ok {
		return nil, nil
	}

	// Password primero; el resto en orden de alta.
	out := make([]string, 0, len(a.methods))
	if a.hasMethod(identity.MethodPassword) {
		out = append(out, identity.MethodPassword)
	}
	for _, m := range a.methods {
		if m != identity.MethodPassword {
			out = append(out, m)
		}
	}
	return out, nil
}

func (e *Emulator) LinkCredential(_ context.Context, s *identity.Session, cred *identity.Credential) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.accounts[normEmail(s.Email)]
	if !ok {
		return identity.NewError(identity.CodeUserNotFound, "USER_NOT_FOUND")
	}
	if a.hasMethod(cred.ProviderID) {
		return identity.NewError(identity.CodeProviderAlreadyLinked, "FEDERATED_USER_ID_ALREADY_LINKED")
	}
	a.addMethod(cred.ProviderID)
	return nil
}

// ─── Perfil ───

func (e *Emulator) UpdateProfile(_ context.Context, s *identity.Session, patch identity.ProfilePatch) (*identity.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.accounts[normEmail(s.Email)]
	if !ok {
		return nil, identity.NewError(identity.CodeUserNotFound, "USER_NOT_FOUND")
	}
	if patch.DisplayName != nil {
		a.displayName = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		a.avatarURL = *patch.AvatarURL
	}
	return e.mintSession(a), nil
}

func (e *Emulator) Reauthenticate(ctx context.Context, s *identity.Session, password string) error {
	if s.Email == "" {
		return identity.NewError(identity.CodeMissingEmailCredential, "no email credential")
	}

	e.mu.Lock()
	a, ok := e.accounts[normEmail(s.Email)]
	hasPassword := ok && len(a.passwordHash) > 0
	e.mu.Unlock()

	if !ok {
		return identity.NewError(identity.CodeUserNotFound, "USER_NOT_FOUND")
	}
	if !hasPassword {
		return identity.NewError(identity.CodeMissingEmailCredential, "account has no password")
	}
	_, err := e.SignInWithPassword(ctx, s.Email, password)
	return err
}

func (e *Emulator) UpdatePassword(_ context.Context, s *identity.Session, newPassword string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.accounts[normEmail(s.Email)]
	if !ok {
		return identity.NewError(identity.CodeUserNotFound, "USER_NOT_FOUND")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return identity.WrapError(identity.CodeUnknown, err)
	}
	a.passwordHash = hash
	a.addMethod(identity.MethodPassword)
	return nil
}

func (e *Emulator) SendEmailVerification(_ context.Context, s *identity.Session) error {
	e.mu.Lock()
	code := e.issueOOB(s.Email, oobVerify)
	e.mu.Unlock()

	return e.sender.Send(s.Email, "Verify your email", "",
		fmt.Sprintf("Use this code to verify your email: %s", code))
}

func (e *Emulator) SignOut(context.Context, *identity.Session) error { return nil }

var _ identity.Provider = (*Emulator)(nil)
