// Package server arma el grafo de dependencias del servicio a partir de la
// configuración: stores, registry de providers, sesiones, flow engine y router.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/socialgate/internal/config"
	"github.com/dropDatabas3/socialgate/internal/flow"
	authctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/health"
	pagesctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/pages"
	"github.com/dropDatabas3/socialgate/internal/http/router"
	"github.com/dropDatabas3/socialgate/internal/metrics"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/providers"
	"github.com/dropDatabas3/socialgate/internal/providers/google"
	"github.com/dropDatabas3/socialgate/internal/providers/twitter"
	"github.com/dropDatabas3/socialgate/internal/session"
	"github.com/dropDatabas3/socialgate/internal/store"
	"github.com/dropDatabas3/socialgate/internal/store/memory"
	"github.com/dropDatabas3/socialgate/internal/store/pg"
	redisstore "github.com/dropDatabas3/socialgate/internal/store/redis"
	"github.com/dropDatabas3/socialgate/internal/store/sqlite"
	"github.com/dropDatabas3/socialgate/internal/sweep"
)

// Options son overrides para tests y CLI.
type Options struct {
	Version    string
	HTTPClient *http.Client         // cliente hacia los providers; default http.DefaultClient
	Registry   *prometheus.Registry // default uno nuevo
}

// App es el servicio armado.
type App struct {
	Handler  http.Handler
	Sweeper  *sweep.Sweeper
	Stores   *store.Stores
	Registry *providers.Registry
	Metrics  *metrics.Metrics
}

// Close libera los backends.
func (a *App) Close() error {
	if a == nil || a.Stores == nil {
		return nil
	}
	return a.Stores.Close()
}

// Build arma el servicio completo. Falla si algún provider está mal configurado
// o si el storage no se puede abrir.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := logger.L().With(logger.Layer("wiring"))

	reg, err := BuildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	m, err := metrics.New(opts.Registry)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	stores, err := OpenStores(ctx, cfg, m)
	if err != nil {
		return nil, err
	}

	mgr := session.NewManager(session.Deps{
		Store:    stores.Sessions,
		Lifetime: cfg.Auth.Session.TTL,
		Metrics:  m,
	})
	sameSite, err := session.ParseSameSite(cfg.Auth.Session.SameSite)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	cookies := session.NewCookies(session.CookieConfig{
		Name:     cfg.Auth.Session.CookieName,
		Domain:   cfg.Auth.Session.Domain,
		Secure:   cfg.Auth.Session.Secure,
		SameSite: sameSite,
	})

	states := flow.NewStateStore(flow.StateDeps{
		Registry: reg,
		Flows:    stores.Flows,
		TTL:      cfg.Auth.Flow.TTL,
		Metrics:  m,
	})
	engine := flow.NewEngine(flow.EngineDeps{
		Registry:        reg,
		States:          states,
		Users:           stores.Users,
		Sessions:        mgr,
		HTTPClient:      opts.HTTPClient,
		ProviderTimeout: cfg.Auth.Flow.ProviderTimeout,
		LandingPath:     cfg.Auth.LandingPath,
		Metrics:         m,
	})

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	ids := reg.IDs()
	h := router.New(router.Deps{
		Auth: authctrl.NewController(authctrl.Deps{
			Engine:    engine,
			Sessions:  mgr,
			Cookies:   cookies,
			LoginPath: cfg.Auth.LoginPath,
		}),
		Pages:     pagesctrl.NewController(pagesctrl.Deps{Users: stores.Users, Providers: ids}),
		Health:    healthctrl.NewController(stores.Pingers, opts.Version),
		Sessions:       mgr,
		Cookies:        cookies,
		LoginPath:      cfg.Auth.LoginPath,
		TrustedProxies: proxies,
		Providers:      ids,
		Metrics:        m,
	})

	sw := sweep.New(sweep.Deps{
		Flows:    states,
		Sessions: mgr,
		Interval: cfg.Auth.Session.SweepInterval,
	})

	log.Info("wiring ready",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.Any("providers", ids))

	return &App{Handler: h, Sweeper: sw, Stores: stores, Registry: reg, Metrics: m}, nil
}

// BuildRegistry traduce la config de providers a entradas validadas.
// URLs y scopes vacíos toman los defaults de cada provider.
func BuildRegistry(cfg *config.Config) (*providers.Registry, error) {
	var entries []providers.Entry
	if p := cfg.Providers.Google; p.Enabled {
		entries = append(entries, entry(cfg, google.ProviderName, p,
			google.AuthURL, google.TokenURL, google.UserInfoURL, google.DefaultScopes, google.Normalizer{}))
	}
	if p := cfg.Providers.Twitter; p.Enabled {
		entries = append(entries, entry(cfg, twitter.ProviderName, p,
			twitter.AuthURL, twitter.TokenURL, twitter.UserInfoURL, twitter.DefaultScopes, twitter.Normalizer{}))
	}
	return providers.NewRegistry(entries...)
}

func entry(cfg *config.Config, id string, p config.ProviderConfig, authURL, tokenURL, userInfoURL string, scopes []string, n providers.Normalizer) providers.Entry {
	if p.AuthURL != "" {
		authURL = p.AuthURL
	}
	if p.TokenURL != "" {
		tokenURL = p.TokenURL
	}
	if p.UserInfoURL != "" {
		userInfoURL = p.UserInfoURL
	}
	if len(p.Scopes) > 0 {
		scopes = p.Scopes
	}
	return providers.Entry{
		Config: providers.Config{
			ID:           id,
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			AuthURL:      authURL,
			TokenURL:     tokenURL,
			UserInfoURL:  userInfoURL,
			RedirectURL:  cfg.RedirectURL(id, p),
			Scopes:       scopes,
			PKCE:         p.PKCE,
		},
		Normalizer: n,
	}
}

// OpenStores abre el storage elegido y, con cache.kind=redis, mueve flujos y
// sesiones a Redis. Los usuarios siempre quedan en el storage principal.
func OpenStores(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*store.Stores, error) {
	var stores *store.Stores
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		stores = memory.Open()
	case config.DriverPostgres:
		pgs, err := pg.New(ctx, cfg.Storage.DSN, pg.Options{MaxConns: cfg.Storage.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.Storage.Migrate {
			n, err := pgs.Migrate(ctx)
			if err != nil {
				pgs.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			logger.L().Info("migrations applied", logger.Int("count", n))
		}
		if m != nil {
			_ = m.Register(metrics.NewPoolCollector(pgs.Pool))
		}
		stores = pgs.Stores()
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		stores = s.Stores()
	default:
		return nil, fmt.Errorf("storage driver %q not supported", cfg.Storage.Driver)
	}

	if cfg.Cache.Kind == config.CacheRedis {
		rc := redisstore.New(redisstore.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		stores.Flows = rc.Flows()
		stores.Sessions = rc.Sessions()
		stores.Pingers["redis"] = rc
		stores.Closers = append(stores.Closers, rc.Close)
	}
	return stores, nil
}
