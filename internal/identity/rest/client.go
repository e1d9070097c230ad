// Package rest implementa identity.Provider contra un API HTTP estilo
// identity-toolkit. Cada operación es un POST a una acción accounts:*; los
// rechazos vienen como {"error":{"message":"CODE"}} y se mapean a códigos
// de identity.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/johnboard/internal/identity"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Client es el cliente HTTP del proveedor.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Config del cliente REST.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// New crea un cliente contra el API del proveedor.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// ─── Transporte ───

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, action string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return identity.WrapError(identity.CodeUnknown, err)
	}

	u := fmt.Sprintf("%s/v1/accounts:%s?key=%s", c.baseURL, action, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return identity.WrapError(identity.CodeUnknown, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return identity.WrapError(identity.CodeUnknown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var eb apiErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return identity.NewError(mapAPICode(eb.Error.Message), eb.Error.Message)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return identity.WrapError(identity.CodeUnknown, err)
		}
	}
	return nil
}

// mapAPICode traduce los mensajes del API a códigos internos.
// Mensajes no reconocidos caen en CodeUnknown (fail-soft).
func mapAPICode(msg string) identity.Code {
	// El API agrega sufijos tipo "EMAIL_NOT_FOUND : ..." en algunos casos.
	if i := strings.IndexByte(msg, ' '); i > 0 {
		msg = msg[:i]
	}
	switch msg {
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND", "USER_DISABLED":
		return identity.CodeUserNotFound
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return identity.CodeInvalidCredentials
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return identity.CodeInvalidEmail
	case "EMAIL_EXISTS":
		return identity.CodeEmailAlreadyInUse
	case "TOO_MANY_ATTEMPTS_TRY_LATER", "QUOTA_EXCEEDED":
		return identity.CodeQuotaExceeded
	case "INVALID_OOB_CODE", "EXPIRED_OOB_CODE", "INVALID_ID_TOKEN":
		return identity.CodeInvalidOneTimeCode
	case "FEDERATED_USER_ID_ALREADY_LINKED", "PROVIDER_ALREADY_LINKED":
		return identity.CodeProviderAlreadyLinked
	case "OPERATION_NOT_ALLOWED", "PASSWORD_LOGIN_DISABLED":
		return identity.CodeOperationNotAllowed
	default:
		return identity.CodeUnknown
	}
}

// ─── Respuestas comunes ───

type sessionResponse struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoUrl"`
	EmailVerified bool   `json:"emailVerified"`
	IDToken       string `json:"idToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresIn     string `json:"expiresIn"` // segundos, como string
}

func (r *sessionResponse) session() *identity.Session {
	s := &identity.Session{
		UserID:        r.LocalID,
		Email:         r.Email,
		DisplayName:   r.DisplayName,
		AvatarURL:     r.PhotoURL,
		EmailVerified: r.EmailVerified,
		IDToken:       r.IDToken,
		RefreshToken:  r.RefreshToken,
	}
	if secs, err := strconv.Atoi(r.ExpiresIn); err == nil && secs > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(secs) * time.Second)
	}
	fillFromIDToken(s)
	return s
}

// fillFromIDToken completa campos que el endpoint no devuelve leyendo los
// claims del ID token. Sin verificar firma: el token acaba de llegar del
// proveedor por TLS y solo se usa para metadata de presentación.
func fillFromIDToken(s *identity.Session) {
	if s.IDToken == "" {
		return
	}
	tok, _, err := jwtv5.NewParser().ParseUnverified(s.IDToken, jwtv5.MapClaims{})
	if err != nil {
		return
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return
	}
	if s.Email == "" {
		s.Email, _ = claims["email"].(string)
	}
	if s.DisplayName == "" {
		s.DisplayName, _ = claims["name"].(string)
	}
	if s.AvatarURL == "" {
		s.AvatarURL, _ = claims["picture"].(string)
	}
	if !s.EmailVerified {
		if v, ok := claims["email_verified"].(bool); ok {
			s.EmailVerified = v
		}
	}
}

// ─── Operaciones ───

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	var out sessionResponse
	err := c.post(ctx, "signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.session(), nil
}

func (c *Client) CreateAccount(ctx context.Context, email, password string) (*identity.Session, error) {
	var out sessionResponse
	err := c.post(ctx, "signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.session(), nil
}

func (c *Client) SendPasswordResetEmail(ctx context.Context, email string) error {
	return c.post(ctx, "sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

func (c *Client) SendSignInLinkToEmail(ctx context.Context, email, returnURL string) error {
	return c.post(ctx, "sendOobCode", map[string]any{
		"requestType": "EMAIL_SIGNIN",
		"email":       email,
		"continueUrl": returnURL,
	}, nil)
}

// IsSignInLinkURL reconoce los links de sign-in del proveedor:
// llevan mode=signIn y un oobCode.
func (c *Client) IsSignInLinkURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	q := u.Query()
	return q.Get("mode") == "signIn" && q.Get("oobCode") != ""
}

func (c *Client) CompleteSignInWithLink(ctx context.Context, email, rawURL string) (*identity.Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, identity.NewError(identity.CodeInvalidOneTimeCode, "malformed link")
	}
	oob := u.Query().Get("oobCode")
	if oob == "" {
		return nil, identity.NewError(identity.CodeInvalidOneTimeCode, "missing oobCode")
	}

	var out sessionResponse
	if err := c.post(ctx, "signInWithEmailLink", map[string]any{
		"email":   email,
		"oobCode": oob,
	}, &out); err != nil {
		return nil, err
	}
	return out.session(), nil
}

func (c *Client) FederatedAuthURL(ctx context.Context, providerID, state, callbackURL string) (string, error) {
	var out struct {
		AuthURI string `json:"authUri"`
	}
	err := c.post(ctx, "createAuthUri", map[string]any{
		"providerId":  providerID,
		"continueUri": callbackURL,
		"sessionId":   state,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.AuthURI == "" {
		return "", identity.NewError(identity.CodeUnknown, "provider returned empty authUri")
	}
	return out.AuthURI, nil
}

func (c *Client) ExchangeRedirect(ctx context.Context, providerID string, query url.Values) (*identity.RedirectResult, error) {
	var out struct {
		sessionResponse
		NeedConfirmation bool     `json:"needConfirmation"`
		OauthIDToken     string   `json:"oauthIdToken"`
		OauthAccessToken string   `json:"oauthAccessToken"`
		FederatedID      string   `json:"federatedId"`
		VerifiedProvider []string `json:"verifiedProvider"`
	}
	err := c.post(ctx, "signInWithIdp", map[string]any{
		"requestUri":          "?" + query.Encode(),
		"providerId":          providerID,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &out)
	if err != nil {
		return nil, err
	}

	if out.NeedConfirmation {
		return &identity.RedirectResult{
			Code:       identity.CodeAccountExists,
			Email:      out.Email,
			ProviderID: providerID,
			Credential: &identity.Credential{
				ProviderID:  providerID,
				Subject:     out.FederatedID,
				IDToken:     out.OauthIDToken,
				AccessToken: out.OauthAccessToken,
				Email:       out.Email,
			},
		}, nil
	}

	return &identity.RedirectResult{
		Session:    out.session(),
		ProviderID: providerID,
	}, nil
}

func (c *Client) FetchSignInMethodsForEmail(ctx context.Context, email string) ([]string, error) {
	var out struct {
		SigninMethods []string `json:"signinMethods"`
	}
	err := c.post(ctx, "createAuthUri", map[string]any{
		"identifier":  email,
		"continueUri": c.baseURL,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.SigninMethods, nil
}

func (c *Client) LinkCredential(ctx context.Context, s *identity.Session, cred *identity.Credential) error {
	post := url.Values{}
	post.Set("providerId", cred.ProviderID)
	if cred.IDToken != "" {
		post.Set("id_token", cred.IDToken)
	}
	if cred.AccessToken != "" {
		post.Set("access_token", cred.AccessToken)
	}
	return c.post(ctx, "signInWithIdp", map[string]any{
		"idToken":           s.IDToken,
		"postBody":          post.Encode(),
		"requestUri":        c.baseURL,
		"returnSecureToken": true,
	}, nil)
}

func (c *Client) UpdateProfile(ctx context.Context, s *identity.Session, patch identity.ProfilePatch) (*identity.Session, error) {
	in := map[string]any{
		"idToken":           s.IDToken,
		"returnSecureToken": true,
	}
	if patch.DisplayName != nil {
		in["displayName"] = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		in["photoUrl"] = *patch.AvatarURL
	}

	var out sessionResponse
	if err := c.post(ctx, "update", in, &out); err != nil {
		return nil, err
	}

	// El endpoint de update no reemite todos los campos; partimos de la
	// sesión actual y aplicamos el patch.
	updated := *s
	if patch.DisplayName != nil {
		updated.DisplayName = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		updated.AvatarURL = *patch.AvatarURL
	}
	if out.IDToken != "" {
		updated.IDToken = out.IDToken
	}
	return &updated, nil
}

func (c *Client) Reauthenticate(ctx context.Context, s *identity.Session, password string) error {
	if s.Email == "" {
		return identity.NewError(identity.CodeMissingEmailCredential, "session has no email credential")
	}
	_, err := c.SignInWithPassword(ctx, s.Email, password)
	return err
}

func (c *Client) UpdatePassword(ctx context.Context, s *identity.Session, newPassword string) error {
	return c.post(ctx, "update", map[string]any{
		"idToken":           s.IDToken,
		"password":          newPassword,
		"returnSecureToken": true,
	}, nil)
}

func (c *Client) SendEmailVerification(ctx context.Context, s *identity.Session) error {
	return c.post(ctx, "sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     s.IDToken,
	}, nil)
}

// SignOut descarta la sesión. El proveedor no mantiene sesión server-side
// para este flujo; revocar el refresh token es best-effort.
func (c *Client) SignOut(ctx context.Context, s *identity.Session) error {
	return nil
}

var _ identity.Provider = (*Client)(nil)
