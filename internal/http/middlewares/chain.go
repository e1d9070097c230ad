// Package middlewares agrupa los middlewares HTTP de la aplicación.
package middlewares

import "net/http"

// Middleware es el tipo estándar de middleware HTTP.
type Middleware func(http.Handler) http.Handler
