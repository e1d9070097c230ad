package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env  string `yaml:"app_env"`
		Name string `yaml:"name"`
		// BaseURL pública de la app; con ella se arman las URLs absolutas de
		// sign-in y del callback federado.
		BaseURL string `yaml:"base_url"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis | postgres
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	// Proveedor de identidad externo.
	Identity struct {
		Mode string `yaml:"mode"` // rest | local
		REST struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
			Timeout string `yaml:"timeout"`
		} `yaml:"rest"`
		Local struct {
			JWTSecret string `yaml:"jwt_secret"`
			// Credenciales OAuth opcionales. Con client_id+secret el emulador
			// habla con el IdP real; sin ellas simula el flujo.
			Google struct {
				ClientID     string `yaml:"client_id"`
				ClientSecret string `yaml:"client_secret"`
			} `yaml:"google"`
			GitHub struct {
				ClientID     string `yaml:"client_id"`
				ClientSecret string `yaml:"client_secret"`
			} `yaml:"github"`
		} `yaml:"local"`
	} `yaml:"identity"`

	// Toggles de métodos de sign-in que la UI respeta.
	Auth struct {
		PasswordEnabled  bool     `yaml:"password_enabled"`
		EmailLinkEnabled bool     `yaml:"email_link_enabled"`
		SignUpEnabled    bool     `yaml:"sign_up_enabled"`
		SocialProviders  []string `yaml:"social_providers"` // google.com, github.com, ...
		SessionIdleTTL   string   `yaml:"session_idle_ttl"`
	} `yaml:"auth"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
		Forgot struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"forgot"`
		Link struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"link"`
	} `yaml:"rate"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.App.Name == "" {
		c.App.Name = "johnboard"
	}
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.BaseURL == "" {
		c.App.BaseURL = "http://localhost:8080"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "15s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "24h"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "jb"
	}
	if c.Identity.Mode == "" {
		c.Identity.Mode = "local"
	}
	if c.Identity.REST.Timeout == "" {
		c.Identity.REST.Timeout = "10s"
	}
	// Por defecto todos los métodos habilitados; la UI apaga lo que no esté.
	if !c.Auth.PasswordEnabled && !c.Auth.EmailLinkEnabled && len(c.Auth.SocialProviders) == 0 {
		c.Auth.PasswordEnabled = true
		c.Auth.EmailLinkEnabled = true
		c.Auth.SignUpEnabled = true
		c.Auth.SocialProviders = []string{"google.com", "github.com"}
	}
	if c.Auth.SessionIdleTTL == "" {
		c.Auth.SessionIdleTTL = "30m"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if c.Rate.Forgot.Limit == 0 {
		c.Rate.Forgot.Limit = 5
	}
	if c.Rate.Forgot.Window == "" {
		c.Rate.Forgot.Window = "10m"
	}
	if c.Rate.Link.Limit == 0 {
		c.Rate.Link.Limit = 5
	}
	if c.Rate.Link.Window == "" {
		c.Rate.Link.Window = "10m"
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	// Overrides por env
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// SignInURL es la URL absoluta de la página de sign-in.
func (c *Config) SignInURL() string {
	return strings.TrimRight(c.App.BaseURL, "/") + "/signin"
}

// CallbackURL es la URL absoluta base del callback federado (sin providerId).
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.App.BaseURL, "/") + "/auth/callback"
}

// Duration parsea una de las duraciones string ya validadas.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("APP_BASE_URL"); ok {
		c.App.BaseURL = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("POSTGRES_DSN"); ok {
		c.Cache.Postgres.DSN = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// IDENTITY
	if v, ok := getEnvStr("IDENTITY_MODE"); ok {
		c.Identity.Mode = strings.ToLower(v)
	}
	if v, ok := getEnvStr("IDENTITY_REST_BASE_URL"); ok {
		c.Identity.REST.BaseURL = v
	}
	if v, ok := getEnvStr("IDENTITY_REST_API_KEY"); ok {
		c.Identity.REST.APIKey = v
	}
	if v, ok := getEnvStr("IDENTITY_LOCAL_JWT_SECRET"); ok {
		c.Identity.Local.JWTSecret = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_ID"); ok {
		c.Identity.Local.Google.ClientID = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_SECRET"); ok {
		c.Identity.Local.Google.ClientSecret = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_ID"); ok {
		c.Identity.Local.GitHub.ClientID = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_SECRET"); ok {
		c.Identity.Local.GitHub.ClientSecret = v
	}

	// AUTH
	if v, ok := getEnvBool("AUTH_PASSWORD_ENABLED"); ok {
		c.Auth.PasswordEnabled = v
	}
	if v, ok := getEnvBool("AUTH_EMAIL_LINK_ENABLED"); ok {
		c.Auth.EmailLinkEnabled = v
	}
	if v, ok := getEnvBool("AUTH_SIGN_UP_ENABLED"); ok {
		c.Auth.SignUpEnabled = v
	}
	if v, ok := getEnvCSV("AUTH_SOCIAL_PROVIDERS"); ok {
		c.Auth.SocialProviders = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_IDLE_TTL"); ok {
		c.Auth.SessionIdleTTL = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvStr("RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}
	if v, ok := getEnvInt("RATE_FORGOT_LIMIT"); ok {
		c.Rate.Forgot.Limit = v
	}
	if v, ok := getEnvStr("RATE_FORGOT_WINDOW"); ok {
		c.Rate.Forgot.Window = v
	}
	if v, ok := getEnvInt("RATE_LINK_LIMIT"); ok {
		c.Rate.Link.Limit = v
	}
	if v, ok := getEnvStr("RATE_LINK_WINDOW"); ok {
		c.Rate.Link.Window = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v)
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate chequea valores críticos y duraciones string.
func (c *Config) Validate() error {
	switch c.Identity.Mode {
	case "rest":
		if strings.TrimSpace(c.Identity.REST.BaseURL) == "" {
			return fmt.Errorf("identity.rest.base_url is required when identity.mode=rest")
		}
	case "local":
	default:
		return fmt.Errorf("identity.mode must be rest or local, got %q", c.Identity.Mode)
	}

	switch c.Cache.Kind {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("cache.kind must be memory, redis or postgres, got %q", c.Cache.Kind)
	}

	for name, s := range map[string]string{
		"server.read_timeout":      c.Server.ReadTimeout,
		"server.write_timeout":     c.Server.WriteTimeout,
		"server.shutdown_timeout":  c.Server.ShutdownTimeout,
		"cache.memory.default_ttl": c.Cache.Memory.DefaultTTL,
		"identity.rest.timeout":    c.Identity.REST.Timeout,
		"auth.session_idle_ttl":    c.Auth.SessionIdleTTL,
		"rate.login.window":        c.Rate.Login.Window,
		"rate.forgot.window":       c.Rate.Forgot.Window,
		"rate.link.window":         c.Rate.Link.Window,
	} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
