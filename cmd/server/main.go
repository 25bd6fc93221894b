package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bcnelson/l2vpn-manager/internal/api"
	"github.com/bcnelson/l2vpn-manager/internal/auth"
	"github.com/bcnelson/l2vpn-manager/internal/cache"
	"github.com/bcnelson/l2vpn-manager/internal/config"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
	"github.com/bcnelson/l2vpn-manager/internal/service"
	"github.com/bcnelson/l2vpn-manager/internal/storage"
	"github.com/bcnelson/l2vpn-manager/internal/storage/sql"
	"github.com/bcnelson/l2vpn-manager/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", false).Fatal("failed to load configuration", logger.Err(err))
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", logger.Err(err))
	}

	ctx := context.Background()

	// Local backend. The API surface always needs a store for its keys.
	if cfg.Database.Driver == "sqlite3" {
		if dir := filepath.Dir(cfg.Database.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				log.Fatal("failed to create data directory", logger.Err(err))
			}
		}
	}

	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal("failed to initialize storage", logger.Err(err))
	}
	defer store.Close()

	seeded := false
	if cfg.Directory.SeedFile != "" {
		seed, err := storage.LoadSeedFile(ctx, store, cfg.Directory.SeedFile)
		if err != nil {
			log.Fatal("failed to load directory seed", logger.String("file", cfg.Directory.SeedFile), logger.Err(err))
		}
		log.Info("directory seed applied",
			logger.String("file", cfg.Directory.SeedFile),
			logger.Int("users", len(seed.Users)))
		seeded = true
	}

	backend := service.NewBackend(store, log)

	var client provisioning.Client = backend
	if cfg.Backend.Remote() {
		remote, err := provisioning.NewHTTPClient(provisioning.HTTPConfig{
			BaseURL:      cfg.Backend.URL,
			APIKey:       cfg.Backend.APIKey,
			TokenURL:     cfg.Backend.TokenURL,
			ClientID:     cfg.Backend.ClientID,
			ClientSecret: cfg.Backend.ClientSecret,
			Timeout:      cfg.Backend.Timeout,
		}, log)
		if err != nil {
			log.Fatal("failed to initialize backend client", logger.Err(err))
		}
		log.Info("using remote provisioning backend", logger.String("url", cfg.Backend.URL))
		client = remote
	}

	var lookups cache.Cache = cache.NewMemory()
	if cfg.Directory.RedisAddr != "" {
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Directory.RedisAddr,
			Password: cfg.Directory.RedisPassword,
			DB:       cfg.Directory.RedisDB,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to redis", logger.Err(err))
		}
		defer r.Close()
		lookups = r
	}
	cached := provisioning.NewCached(client, lookups, cfg.Directory.CacheTTL, log)
	// Redis outlives the process; lookups cached before the seed are stale.
	if seeded && !cfg.Backend.Remote() {
		if err := cached.Invalidate(ctx); err != nil {
			log.Warn("failed to invalidate directory cache", logger.Err(err))
		}
	}
	client = cached

	var oidcComponents *web.OIDCComponents
	if cfg.OIDC.Enabled {
		oidcComponents, err = newOIDC(ctx, &cfg.OIDC)
		if err != nil {
			log.Fatal("failed to initialize OIDC", logger.Err(err))
		}
		log.Info("OIDC authentication enabled", logger.String("issuer", cfg.OIDC.IssuerURL))
	}

	loc, err := cfg.Session.Location()
	if err != nil {
		log.Fatal("invalid timezone", logger.Err(err))
	}

	ui, err := web.NewRouter(web.Options{
		Client:      client,
		WorkgroupID: cfg.Session.WorkgroupID,
		DefaultUser: cfg.Session.DefaultUserEmail,
		ReadOnly:    cfg.Session.ReadOnly,
		Location:    loc,
		Logger:      log,
		OIDC:        oidcComponents,
	})
	if err != nil {
		log.Fatal("failed to initialize web UI", logger.Err(err))
	}

	// The JSON API always serves the local backend so other editors can
	// point BACKEND_URL at this instance.
	router := api.NewRouter(api.Options{
		Store:        store,
		Backend:      backend,
		BootstrapKey: cfg.Session.BootstrapAPIKey,
		Logger:       log,
		UI:           ui,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info("starting L2VPN manager", logger.String("addr", "http://"+cfg.Server.Addr()))

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", logger.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", logger.Err(err))
		return
	}

	log.Info("server stopped")
}

func newOIDC(ctx context.Context, cfg *config.OIDCConfig) (*web.OIDCComponents, error) {
	secret, err := cfg.GetSessionSecretBytes()
	if err != nil {
		return nil, err
	}
	secure := strings.HasPrefix(cfg.RedirectURL, "https://")

	provider, err := auth.NewOIDCProvider(ctx, auth.OIDCOptions{
		IssuerURL:      cfg.IssuerURL,
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		RedirectURL:    cfg.RedirectURL,
		Scopes:         cfg.GetScopes(),
		AllowedDomains: cfg.GetAllowedDomains(),
	})
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionManager(secret, cfg.SessionDuration, secure)
	if err != nil {
		return nil, err
	}
	states, err := auth.NewStateStore(secret, secure)
	if err != nil {
		return nil, err
	}
	return &web.OIDCComponents{
		Provider:  provider,
		Sessions:  sessions,
		States:    states,
		LogoutURL: cfg.LogoutURL,
	}, nil
}
