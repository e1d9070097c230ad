package middlewares

import (
	"context"

	"github.com/dropDatabas3/johnboard/internal/auth"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeySessionID
	ctxKeyOrchestrator
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, rid)
}

// GetRequestID retorna el request ID del contexto, o "".
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func setSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, sid)
}

// GetSessionID retorna el ID de la sesión de navegador, o "".
func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySessionID).(string)
	return v
}

func setOrchestrator(ctx context.Context, o *auth.Orchestrator) context.Context {
	return context.WithValue(ctx, ctxKeyOrchestrator, o)
}

// GetOrchestrator retorna el orchestrator de la sesión del request, o nil.
func GetOrchestrator(ctx context.Context) *auth.Orchestrator {
	v, _ := ctx.Value(ctxKeyOrchestrator).(*auth.Orchestrator)
	return v
}
