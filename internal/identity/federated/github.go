package federated

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/johnboard/internal/identity"
)

// GitHub implementa Connector sobre OAuth 2.0 plano: no hay id_token, así que
// la identidad sale de la API de usuario. El email puede venir vacío en el
// perfil (emails privados) y hay que ir a /user/emails.
type GitHub struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	authURL  string
	tokenURL string
	userURL  string
	emailURL string
	http     *http.Client
}

// NewGitHub crea el conector con los scopes mínimos para leer email y perfil.
func NewGitHub(clientID, clientSecret, redirectURL string) *GitHub {
	return &GitHub{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"user:email", "read:user"},
		authURL:      "https://github.com/login/oauth/authorize",
		tokenURL:     "https://github.com/login/oauth/access_token",
		userURL:      "https://api.github.com/user",
		emailURL:     "https://api.github.com/user/emails",
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GitHub) AuthURL(_ context.Context, state string) (string, error) {
	u, err := url.Parse(g.authURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("client_id", g.ClientID)
	q.Set("redirect_uri", g.RedirectURL)
	q.Set("scope", strings.Join(g.Scopes, " "))
	q.Set("state", state)
	q.Set("allow_signup", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (g *GitHub) Exchange(ctx context.Context, query url.Values) (*Identity, error) {
	code := query.Get("code")
	if code == "" {
		return nil, errors.New("missing code in callback")
	}

	token, err := g.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	user, verified, err := g.fetchUser(ctx, token)
	if err != nil {
		return nil, err
	}

	return &Identity{
		ProviderID:    identity.ProviderGitHub,
		Subject:       strconv.FormatInt(user.ID, 10),
		Email:         user.Email,
		EmailVerified: verified,
		Name:          user.Name,
		Picture:       user.AvatarURL,
		AccessToken:   token,
	}, nil
}

func (g *GitHub) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", g.ClientID)
	form.Set("client_secret", g.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", g.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var tr struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
		Desc        string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.Error != "" {
		return "", fmt.Errorf("github oauth: %s %s", tr.Error, tr.Desc)
	}
	if tr.AccessToken == "" {
		return "", errors.New("no access_token in response")
	}
	return tr.AccessToken, nil
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// fetchUser trae el perfil y, si el email es privado, lo resuelve contra
// /user/emails prefiriendo el primario verificado.
func (g *GitHub) fetchUser(ctx context.Context, token string) (*githubUser, bool, error) {
	var user githubUser
	if err := g.apiGet(ctx, g.userURL, token, &user); err != nil {
		return nil, false, err
	}
	if user.Name == "" {
		user.Name = user.Login
	}
	if user.Email != "" {
		return &user, true, nil
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := g.apiGet(ctx, g.emailURL, token, &emails); err != nil {
		return nil, false, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			user.Email = e.Email
			return &user, true, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			user.Email = e.Email
			return &user, true, nil
		}
	}
	if len(emails) > 0 {
		user.Email = emails[0].Email
		return &user, false, nil
	}
	return nil, false, errors.New("no email on github account")
}

func (g *GitHub) apiGet(ctx context.Context, rawURL, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api %s: status %d", rawURL, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Connector = (*GitHub)(nil)
