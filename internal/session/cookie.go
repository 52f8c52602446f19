package session

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultCookieName = "sid"

// CookieConfig controla los atributos de la cookie de sesión.
type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	Now      func() time.Time
}

// ParseSameSite acepta "lax" y "strict". "none" se rechaza: la cookie de
// sesión no debe viajar en requests cross-site.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	default:
		return 0, fmt.Errorf("session: unsupported samesite %q", s)
	}
}

// Cookies emite y borra la cookie de sesión.
type Cookies struct {
	cfg CookieConfig
}

func NewCookies(cfg CookieConfig) *Cookies {
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	if cfg.SameSite != http.SameSiteStrictMode {
		cfg.SameSite = http.SameSiteLaxMode
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cookies{cfg: cfg}
}

func (c *Cookies) Name() string { return c.cfg.Name }

// Issue arma la cookie para s. Max-Age es el piso de los segundos restantes.
func (c *Cookies) Issue(s *Session) *http.Cookie {
	remaining := s.ExpiresAt.Sub(c.cfg.Now())
	maxAge := int(remaining / time.Second)
	if maxAge <= 0 {
		return c.Clear()
	}
	return &http.Cookie{
		Name:     c.cfg.Name,
		Value:    s.ID,
		Path:     "/",
		Domain:   c.cfg.Domain,
		MaxAge:   maxAge,
		Expires:  s.ExpiresAt.UTC(),
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: c.cfg.SameSite,
	}
}

// Clear devuelve la cookie de borrado (mismos atributos, valor vacío).
func (c *Cookies) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     c.cfg.Name,
		Value:    "",
		Path:     "/",
		Domain:   c.cfg.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: c.cfg.SameSite,
	}
}

// Read devuelve el valor de la cookie del request, o "".
func (c *Cookies) Read(r *http.Request) string {
	ck, err := r.Cookie(c.cfg.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}
