// Package config carga la configuración del servicio: YAML opcional, después
// overrides por variables de entorno, después validación.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Drivers de storage soportados.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Kinds de cache para flows y sesiones.
const (
	CacheNone  = "none"
	CacheRedis = "redis"
)

// ProviderConfig es la configuración de un provider social. Las URLs vacías
// toman los endpoints por defecto del provider.
type ProviderConfig struct {
	Enabled      bool     `yaml:"enabled" env:"ENABLED"`
	ClientID     string   `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"CLIENT_SECRET"`
	RedirectURL  string   `yaml:"redirect_url" env:"REDIRECT_URL"` // si vacío => <server.base_url>/api/auth/<id>_callback
	AuthURL      string   `yaml:"auth_url" env:"AUTH_URL"`
	TokenURL     string   `yaml:"token_url" env:"TOKEN_URL"`
	UserInfoURL  string   `yaml:"userinfo_url" env:"USERINFO_URL"`
	Scopes       []string `yaml:"scopes" env:"SCOPES" envSeparator:","`
	PKCE         bool     `yaml:"pkce" env:"PKCE"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env" env:"APP_ENV"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr" env:"SERVER_ADDR"`
		BaseURL         string        `yaml:"base_url" env:"BASE_URL"`
		ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
		// TrustedProxies: CIDRs (o IPs) cuyo X-Forwarded-For se acepta. Vacío = ninguno.
		TrustedProxies []string `yaml:"trusted_proxies" env:"SERVER_TRUSTED_PROXIES" envSeparator:","`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
	} `yaml:"log"`

	Storage struct {
		Driver   string `yaml:"driver" env:"STORAGE_DRIVER"`
		DSN      string `yaml:"dsn" env:"DATABASE_URL"`
		MaxConns int    `yaml:"max_conns" env:"STORAGE_MAX_CONNS"`
		// Migrate aplica migraciones al arrancar serve.
		Migrate bool `yaml:"migrate" env:"STORAGE_MIGRATE"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind" env:"CACHE_KIND"`
		Redis struct {
			Addr     string `yaml:"addr" env:"REDIS_ADDR"`
			Password string `yaml:"password" env:"REDIS_PASSWORD"`
			DB       int    `yaml:"db" env:"REDIS_DB"`
			Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Auth struct {
		LoginPath   string `yaml:"login_path" env:"AUTH_LOGIN_PATH"`
		LandingPath string `yaml:"landing_path" env:"AUTH_LANDING_PATH"`
		Flow        struct {
			TTL             time.Duration `yaml:"ttl" env:"AUTH_FLOW_TTL"`
			ProviderTimeout time.Duration `yaml:"provider_timeout" env:"AUTH_PROVIDER_TIMEOUT"`
		} `yaml:"flow"`
		Session struct {
			CookieName    string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME"`
			Domain        string        `yaml:"domain" env:"SESSION_DOMAIN"`
			SameSite      string        `yaml:"samesite" env:"SESSION_SAMESITE"`
			Secure        bool          `yaml:"secure" env:"SESSION_SECURE"`
			TTL           time.Duration `yaml:"ttl" env:"SESSION_TTL"`
			SweepInterval time.Duration `yaml:"sweep_interval" env:"SESSION_SWEEP_INTERVAL"`
		} `yaml:"session"`
	} `yaml:"auth"`

	// ───────── Social Login Providers ─────────
	Providers struct {
		Google  ProviderConfig `yaml:"google" envPrefix:"GOOGLE_OAUTH_"`
		Twitter ProviderConfig `yaml:"twitter" envPrefix:"TWITTER_OAUTH_"`
	} `yaml:"providers"`
}

// Default devuelve la configuración base, antes de YAML y env.
func Default() *Config {
	var c Config
	c.App.Env = "dev"
	c.Server.Addr = ":8000"
	c.Server.BaseURL = "http://localhost:8000"
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 30 * time.Second
	c.Server.ShutdownTimeout = 15 * time.Second
	c.Log.Level = "info"
	c.Storage.Driver = DriverMemory
	c.Storage.MaxConns = 10
	c.Cache.Kind = CacheNone
	c.Cache.Redis.Prefix = "socialgate:"
	c.Auth.LoginPath = "/login"
	c.Auth.LandingPath = "/protected"
	c.Auth.Flow.TTL = 10 * time.Minute
	c.Auth.Flow.ProviderTimeout = 10 * time.Second
	c.Auth.Session.CookieName = "sid"
	c.Auth.Session.SameSite = "Lax"
	c.Auth.Session.TTL = 24 * time.Hour
	c.Auth.Session.SweepInterval = 5 * time.Minute
	c.Providers.Twitter.PKCE = true
	return &c
}

// Load lee path (si no es vacío), aplica overrides de entorno y valida.
// Un path inexistente es error; path vacío usa sólo defaults + env.
func Load(path string) (*Config, error) {
	c := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	c.normalize()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) normalize() {
	c.App.Env = strings.ToLower(strings.TrimSpace(c.App.Env))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Cache.Kind = strings.ToLower(strings.TrimSpace(c.Cache.Kind))
	if c.Cache.Kind == "" || c.Cache.Kind == "memory" {
		c.Cache.Kind = CacheNone
	}
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")

	// Guardia dura: en prod la cookie de sesión siempre es Secure.
	if c.IsProd() {
		c.Auth.Session.Secure = true
	}
}

// IsProd indica app.env=prod.
func (c *Config) IsProd() bool { return c.App.Env == "prod" }

// Validate falla rápido ante configuraciones que no pueden arrancar.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported (memory|postgres|sqlite)", c.Storage.Driver))
	}

	switch c.Cache.Kind {
	case CacheNone:
	case CacheRedis:
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			errs = append(errs, errors.New("cache.redis.addr is required when cache.kind=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported (none|redis)", c.Cache.Kind))
	}

	switch strings.ToLower(c.Auth.Session.SameSite) {
	case "lax", "strict":
	case "none":
		errs = append(errs, errors.New("auth.session.samesite=None is not allowed for the session cookie"))
	default:
		errs = append(errs, fmt.Errorf("auth.session.samesite %q not supported (lax|strict)", c.Auth.Session.SameSite))
	}

	if c.Auth.Flow.TTL <= 0 {
		errs = append(errs, errors.New("auth.flow.ttl must be positive"))
	}
	if c.Auth.Flow.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("auth.flow.provider_timeout must be positive"))
	}
	// expires_at se trunca al segundo: con menos de 1s la sesión nacería vencida
	if c.Auth.Session.TTL < time.Second {
		errs = append(errs, errors.New("auth.session.ttl must be at least 1s"))
	}
	if c.Auth.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("auth.session.sweep_interval must be positive"))
	}
	if !strings.HasPrefix(c.Auth.LoginPath, "/") || !strings.HasPrefix(c.Auth.LandingPath, "/") {
		errs = append(errs, errors.New("auth.login_path and auth.landing_path must be local paths"))
	}

	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("server.base_url %q must be an absolute http(s) URL", c.Server.BaseURL))
	}

	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}

	if !c.Providers.Google.Enabled && !c.Providers.Twitter.Enabled {
		errs = append(errs, errors.New("at least one provider must be enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// RedirectURL devuelve el redirect_uri efectivo para el provider id.
func (c *Config) RedirectURL(id string, p ProviderConfig) string {
	if s := strings.TrimSpace(p.RedirectURL); s != "" {
		return s
	}
	return c.Server.BaseURL + "/api/auth/" + id + "_callback"
}

// TrustedProxyPrefixes parsea server.trusted_proxies. Una IP suelta vale como /32 o /128.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range c.Server.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: invalid entry %q", raw)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
