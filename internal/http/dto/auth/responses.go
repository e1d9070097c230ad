package dto

import "github.com/dropDatabas3/johnboard/internal/auth"

// Methods son los toggles de métodos de sign-in que la UI respeta.
type Methods struct {
	Password  bool     `json:"password"`
	EmailLink bool     `json:"email_link"`
	SignUp    bool     `json:"sign_up"`
	Social    []string `json:"social"`
}

// StateResponse es el estado observable del orchestrator más los toggles.
type StateResponse struct {
	auth.Snapshot
	Methods Methods `json:"methods"`
}

// OKResponse es la respuesta mínima de las operaciones sin payload.
type OKResponse struct {
	OK bool `json:"ok"`
}
