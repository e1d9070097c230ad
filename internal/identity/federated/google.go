package federated

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/johnboard/internal/identity"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

const googleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

type googleDiscovery struct {
	Issuer        string `json:"issuer"`
	AuthEndpoint  string `json:"authorization_endpoint"`
	TokenEndpoint string `json:"token_endpoint"`
	JWKSURI       string `json:"jwks_uri"`
}

type googleJWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Google implementa Connector vía OIDC (authorization code + id_token RS256).
type Google struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	discoveryURL string
	http         *http.Client

	mu     sync.RWMutex
	disc   *googleDiscovery
	discAt time.Time
	keys   []googleJWK
	keysAt time.Time
}

// NewGoogle crea el conector con los scopes OIDC estándar.
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		discoveryURL: googleDiscoveryURL,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *Google) discovery(ctx context.Context) (*googleDiscovery, error) {
	g.mu.RLock()
	disc, stale := g.disc, time.Since(g.discAt) > 24*time.Hour
	g.mu.RUnlock()
	if disc != nil && !stale {
		return disc, nil
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, g.discoveryURL, nil)
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dd googleDiscovery
	if err := json.NewDecoder(resp.Body).Decode(&dd); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.disc, g.discAt = &dd, time.Now()
	g.mu.Unlock()
	return &dd, nil
}

func (g *Google) keyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	g.mu.RLock()
	keys, age := g.keys, time.Since(g.keysAt)
	g.mu.RUnlock()

	if keys == nil || age > time.Hour {
		disc, err := g.discovery(ctx)
		if err != nil {
			return nil, err
		}
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, disc.JWKSURI, nil)
		resp, err := g.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("jwks http %d", resp.StatusCode)
		}
		var body struct {
			Keys []googleJWK `json:"keys"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, err
		}
		keys = body.Keys
		g.mu.Lock()
		g.keys, g.keysAt = keys, time.Now()
		g.mu.Unlock()
	}

	for _, k := range keys {
		if k.Kid != kid || !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		nb, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, err
		}
		eb, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, err
		}
		e := 0
		for _, b := range eb {
			e = (e << 8) | int(b)
		}
		if e == 0 {
			e = 65537
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
	}
	return nil, errors.New("kid not found in jwks")
}

// AuthURL usa el state también como nonce: es un uuid de un solo uso, así que
// alcanza para atar el id_token al redirect que lo originó.
func (g *Google) AuthURL(ctx context.Context, state string) (string, error) {
	disc, err := g.discovery(ctx)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(disc.AuthEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", g.ClientID)
	q.Set("redirect_uri", g.RedirectURL)
	q.Set("scope", strings.Join(g.Scopes, " "))
	q.Set("state", state)
	q.Set("nonce", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (g *Google) Exchange(ctx context.Context, query url.Values) (*Identity, error) {
	code := query.Get("code")
	if code == "" {
		return nil, errors.New("missing code in callback")
	}

	disc, err := g.discovery(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", g.ClientID)
	form.Set("client_secret", g.ClientSecret)
	form.Set("redirect_uri", g.RedirectURL)

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, disc.TokenEndpoint, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var b struct {
			Error string `json:"error"`
			Desc  string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&b)
		return nil, fmt.Errorf("token http %d: %s %s", resp.StatusCode, b.Error, b.Desc)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, err
	}

	claims, err := g.verifyIDToken(ctx, tok.IDToken, query.Get("state"))
	if err != nil {
		return nil, err
	}

	return &Identity{
		ProviderID:    identity.ProviderGoogle,
		Subject:       str(claims, "sub"),
		Email:         str(claims, "email"),
		EmailVerified: boolean(claims, "email_verified"),
		Name:          str(claims, "name"),
		Picture:       str(claims, "picture"),
		IDToken:       tok.IDToken,
		AccessToken:   tok.AccessToken,
	}, nil
}

// verifyIDToken valida firma RS256, iss, aud, exp y nonce.
func (g *Google) verifyIDToken(ctx context.Context, idToken, nonce string) (jwtv5.MapClaims, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, errors.New("bad jwt format")
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, err
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(hb, &header); err != nil {
		return nil, err
	}
	if header.Alg != "RS256" {
		return nil, fmt.Errorf("unexpected alg: %s", header.Alg)
	}

	key, err := g.keyForKid(ctx, header.Kid)
	if err != nil {
		return nil, err
	}
	tok, err := jwtv5.Parse(idToken,
		func(*jwtv5.Token) (any, error) { return key, nil },
		jwtv5.WithValidMethods([]string{"RS256"}))
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid id_token")
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}

	if iss := str(claims, "iss"); iss != "https://accounts.google.com" && iss != "accounts.google.com" {
		return nil, fmt.Errorf("bad iss: %s", iss)
	}
	audOK := false
	switch a := claims["aud"].(type) {
	case string:
		audOK = a == g.ClientID
	case []any:
		for _, v := range a {
			if s, _ := v.(string); s == g.ClientID {
				audOK = true
				break
			}
		}
	}
	if !audOK {
		return nil, errors.New("bad aud")
	}
	if nonce != "" && str(claims, "nonce") != nonce {
		return nil, errors.New("bad nonce")
	}
	if exp, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(exp), 0).Before(time.Now().Add(-30 * time.Second)) {
			return nil, errors.New("id_token expired")
		}
	}
	return claims, nil
}

func str(m jwtv5.MapClaims, k string) string {
	s, _ := m[k].(string)
	return s
}

func boolean(m jwtv5.MapClaims, k string) bool {
	b, _ := m[k].(bool)
	return b
}

var _ Connector = (*Google)(nil)
