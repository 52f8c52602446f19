// Package providers defines the identity-provider registry used by the login flow.
//
// Architecture:
// - Config: static endpoints and credentials for one provider, validated at startup
// - Normalizer: maps a provider's user-info payload to a common Profile
// - Registry: immutable lookup by provider id, built once in the wiring
//
// Each provider lives in its own sub-package (google, twitter) exposing its
// default endpoints and its Normalizer.
package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned by ConfigFor when the id is not registered.
	ErrUnknownProvider = errors.New("providers: unknown provider")
	// ErrProfileIncomplete means the user-info payload lacks a stable user id.
	ErrProfileIncomplete = errors.New("providers: profile incomplete")
)

// ConfigError reports an invalid provider entry. Fatal at startup.
type ConfigError struct {
	Provider string
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("providers: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("providers: %s: %s: %s", e.Provider, e.Field, e.Reason)
}

// Config contains the static configuration of one provider.
type Config struct {
	ID           string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
	// PKCE enables S256 code challenge on authorize and verifier on exchange.
	PKCE bool
}

// Profile is a normalized user profile from any provider.
type Profile struct {
	Provider       string
	ProviderUserID string // stable id (Google "sub", Twitter "data.id")
	DisplayName    string
	Email          string // optional

	// Raw data for extensibility
	Raw map[string]any
}

// Normalizer maps a provider-specific user-info body to a Profile.
// Implementations must return ErrProfileIncomplete when the stable id is missing.
type Normalizer interface {
	Normalize(body []byte) (*Profile, error)
}

// NormalizerFunc adapts a function to Normalizer.
type NormalizerFunc func(body []byte) (*Profile, error)

func (f NormalizerFunc) Normalize(body []byte) (*Profile, error) { return f(body) }

// Entry pairs a provider configuration with its normalizer.
type Entry struct {
	Config
	Normalizer Normalizer
}
