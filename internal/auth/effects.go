package auth

// Effect es un side effect observable que la UI debe ejecutar una sola vez
// (navegaciones). No es estado: se consume, no se re-renderiza.
type Effect string

const (
	EffectNone           Effect = ""
	EffectRedirectSignIn Effect = "redirect-to-sign-in"
	EffectRedirectHome   Effect = "redirect-to-home"

	// EffectRedirectProvider pide un full-page redirect al proveedor federado.
	// La URL viaja junto al effect en el snapshot.
	EffectRedirectProvider Effect = "redirect-to-provider"
)

// Rutas públicas: con sesión ausente no disparan redirect al sign-in.
var openRoutes = map[string]bool{
	"/signin":    true,
	"/signup":    true,
	"/forgot-pw": true,
}

// IsOpenRoute dice si la ruta está en el allow-list de acceso sin sesión.
func IsOpenRoute(route string) bool {
	return openRoutes[route]
}

// isAuthEntryRoute: rutas desde las que una sesión recién establecida debe
// navegar al home.
func isAuthEntryRoute(route string) bool {
	return route == "/signin" || route == "/signup"
}
