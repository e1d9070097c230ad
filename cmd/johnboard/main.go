package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/johnboard/internal/cache"
	"github.com/dropDatabas3/johnboard/internal/config"
	"github.com/dropDatabas3/johnboard/internal/email"
	authctrl "github.com/dropDatabas3/johnboard/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/johnboard/internal/http/controllers/health"
	pagesctrl "github.com/dropDatabas3/johnboard/internal/http/controllers/pages"
	"github.com/dropDatabas3/johnboard/internal/http/router"
	"github.com/dropDatabas3/johnboard/internal/http/server"
	"github.com/dropDatabas3/johnboard/internal/identity"
	"github.com/dropDatabas3/johnboard/internal/identity/federated"
	"github.com/dropDatabas3/johnboard/internal/identity/local"
	"github.com/dropDatabas3/johnboard/internal/identity/rest"
	"github.com/dropDatabas3/johnboard/internal/metrics"
	"github.com/dropDatabas3/johnboard/internal/observability/logger"
	"github.com/dropDatabas3/johnboard/internal/session"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// resolveConfigPath: flag > $CONFIG_PATH > configs/config.yaml si existe.
func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if fileExists("configs/config.yaml") {
		return "configs/config.yaml"
	}
	return ""
}

func loadConfig(flagPath, envFile string) (*config.Config, error) {
	if envFile != "" && fileExists(envFile) {
		if err := godotenv.Load(envFile); err == nil {
			logger.L().Debug("dotenv loaded", logger.String("file", envFile))
		}
	}
	return config.Load(resolveConfigPath(flagPath))
}

func buildStore(cfg *config.Config) (cache.Client, error) {
	return cache.New(cache.Config{
		Driver: cfg.Cache.Kind,
		Prefix: cfg.Cache.Redis.Prefix,
		Redis: struct {
			Addr     string
			Password string
			DB       int
		}{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		},
		Postgres: struct{ DSN string }{DSN: cfg.Cache.Postgres.DSN},
		Memory: struct{ DefaultTTL time.Duration }{
			DefaultTTL: config.Duration(cfg.Cache.Memory.DefaultTTL),
		},
	})
}

func buildProvider(cfg *config.Config) (identity.Provider, error) {
	switch cfg.Identity.Mode {
	case "rest":
		return rest.New(rest.Config{
			BaseURL: cfg.Identity.REST.BaseURL,
			APIKey:  cfg.Identity.REST.APIKey,
			Timeout: config.Duration(cfg.Identity.REST.Timeout),
		}), nil
	case "local":
		var sender email.Sender
		if cfg.SMTP.Host != "" {
			s := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
			s.TLSMode = cfg.SMTP.TLS
			s.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
			sender = s
		}
		connectors := make(map[string]federated.Connector)
		if g := cfg.Identity.Local.Google; g.ClientID != "" && g.ClientSecret != "" {
			connectors[identity.ProviderGoogle] = federated.NewGoogle(
				g.ClientID, g.ClientSecret, cfg.CallbackURL()+"/"+identity.ProviderGoogle)
		}
		if g := cfg.Identity.Local.GitHub; g.ClientID != "" && g.ClientSecret != "" {
			connectors[identity.ProviderGitHub] = federated.NewGitHub(
				g.ClientID, g.ClientSecret, cfg.CallbackURL()+"/"+identity.ProviderGitHub)
		}
		return local.New(local.Config{
			JWTSecret:  cfg.Identity.Local.JWTSecret,
			Sender:     sender, // nil = log-only en dev
			Connectors: connectors,
		}), nil
	default:
		return nil, fmt.Errorf("identity.mode: %q", cfg.Identity.Mode)
	}
}

func runServe(cfg *config.Config) error {
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: cfg.App.Name})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	// Store durable (sesiones, redirect results, credenciales pendientes)
	store, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() { _ = store.Close() }()

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	// Métricas
	if err := metrics.RegisterAuth(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	metricsHandler, err := metrics.RegisterHTTP(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	registry := session.NewRegistry(session.Deps{
		Provider:    provider,
		Store:       store,
		Log:         log,
		SignInURL:   cfg.SignInURL(),
		CallbackURL: cfg.CallbackURL(),
		IdleTTL:     config.Duration(cfg.Auth.SessionIdleTTL),
	})
	defer registry.Close()

	toggles := authctrl.Toggles{
		Password:  cfg.Auth.PasswordEnabled,
		EmailLink: cfg.Auth.EmailLinkEnabled,
		SignUp:    cfg.Auth.SignUpEnabled,
		Social:    cfg.Auth.SocialProviders,
	}

	pages, err := pagesctrl.NewController(cfg.App.Name, toggles)
	if err != nil {
		return fmt.Errorf("pages: %w", err)
	}

	handler := router.New(router.Deps{
		Registry: registry,
		Auth:     authctrl.NewController(provider, toggles),
		Pages:    pages,
		Health:   healthctrl.NewController(store),
		Metrics:  metricsHandler,
		Rate: router.RateLimits{
			Enabled:      cfg.Rate.Enabled,
			LoginLimit:   cfg.Rate.Login.Limit,
			LoginWindow:  config.Duration(cfg.Rate.Login.Window),
			ForgotLimit:  cfg.Rate.Forgot.Limit,
			ForgotWindow: config.Duration(cfg.Rate.Forgot.Window),
			LinkLimit:    cfg.Rate.Link.Limit,
			LinkWindow:   config.Duration(cfg.Rate.Link.Window),
		},
	})

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     config.Duration(cfg.Server.ReadTimeout),
		WriteTimeout:    config.Duration(cfg.Server.WriteTimeout),
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout),
	}, handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("johnboard up",
		logger.String("env", cfg.App.Env),
		logger.String("addr", cfg.Server.Addr),
		logger.String("identity_mode", cfg.Identity.Mode),
		logger.String("cache_kind", cfg.Cache.Kind),
		logger.String("social", strings.Join(cfg.Auth.SocialProviders, ",")),
	)
	return srv.Run(ctx)
}

func main() {
	var (
		flagConfig  string
		flagEnvFile string
	)

	root := &cobra.Command{
		Use:   "johnboard",
		Short: "Dashboard con auth multi-método (password, email link, federado)",
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "ruta a .env (si existe, se carga)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flagConfig, flagEnvFile)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return runServe(cfg)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Valida la configuración efectiva y prueba las dependencias",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flagConfig, flagEnvFile)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			store, err := buildStore(cfg)
			if err != nil {
				return fmt.Errorf("cache: %w", err)
			}
			defer func() { _ = store.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				return fmt.Errorf("cache ping: %w", err)
			}
			if _, err := buildProvider(cfg); err != nil {
				return err
			}

			fmt.Printf("ok: env=%s addr=%s identity=%s cache=%s methods(password=%t link=%t signup=%t social=%v)\n",
				cfg.App.Env, cfg.Server.Addr, cfg.Identity.Mode, cfg.Cache.Kind,
				cfg.Auth.PasswordEnabled, cfg.Auth.EmailLinkEnabled, cfg.Auth.SignUpEnabled, cfg.Auth.SocialProviders)
			return nil
		},
	}

	root.AddCommand(serveCmd)
	root.AddCommand(checkCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
