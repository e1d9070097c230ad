package identity

import (
	"encoding/json"
	"fmt"
)

// Credential es una credencial federada serializable. Se captura cuando un
// sign-in federado choca con una cuenta existente, sobrevive el siguiente
// redirect en el store durable, y se consume al linkear.
type Credential struct {
	ProviderID  string `json:"provider_id"`
	Subject     string `json:"subject,omitempty"` // sub del proveedor federado
	IDToken     string `json:"id_token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Encode serializa la credencial a JSON.
func (c *Credential) Encode() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("identity: encode credential: %w", err)
	}
	return string(b), nil
}

// DecodeCredential deserializa una credencial guardada.
func DecodeCredential(raw string) (*Credential, error) {
	var c Credential
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("identity: decode credential: %w", err)
	}
	if c.ProviderID == "" {
		return nil, fmt.Errorf("identity: decode credential: missing provider_id")
	}
	return &c, nil
}
