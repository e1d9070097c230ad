// Package cache provee el store durable keyed multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//   - Postgres (deployments que ya corren postgres y no redis)
//
// Es el storage que sobrevive el round-trip de un redirect federado:
// el email diferido del sign-in por link y las credenciales pendientes
// de linking viven acá, namespaced por sesión de navegador.
package cache

import (
	"context"
	"time"
)

// Client define las operaciones del store durable.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL opcional.
	// Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un cliente.
type Config struct {
	Driver string // "memory" | "redis" | "postgres"
	Prefix string // Prefijo para todas las keys

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Postgres struct {
		DSN string
	}

	Memory struct {
		DefaultTTL time.Duration
	}
}

// Errores del store.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (e errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "postgres":
		return NewPostgres(cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.Memory.DefaultTTL), nil
	default:
		return NewMemory(cfg.Prefix, cfg.Memory.DefaultTTL), nil
	}
}

// Namespaced envuelve un Client agregando un prefijo extra a todas las keys.
// Usado para aislar el storage de cada sesión de navegador.
func Namespaced(c Client, prefix string) Client {
	return &nsClient{inner: c, prefix: prefix}
}

type nsClient struct {
	inner  Client
	prefix string
}

func (n *nsClient) key(k string) string { return n.prefix + ":" + k }

func (n *nsClient) Get(ctx context.Context, key string) (string, error) {
	return n.inner.Get(ctx, n.key(key))
}

func (n *nsClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return n.inner.Set(ctx, n.key(key), value, ttl)
}

func (n *nsClient) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.key(key))
}

func (n *nsClient) Exists(ctx context.Context, key string) (bool, error) {
	return n.inner.Exists(ctx, n.key(key))
}

func (n *nsClient) Ping(ctx context.Context) error { return n.inner.Ping(ctx) }

// Close en un namespace es un no-op: la conexión es compartida.
func (n *nsClient) Close() error { return nil }
