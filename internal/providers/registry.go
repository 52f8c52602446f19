package providers

import (
	"net/url"
	"sort"
	"strings"
)

// Registry is an immutable set of validated providers. Safe for concurrent use.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry validates every entry and builds the registry.
// Any invalid entry aborts with *ConfigError.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if err := validate(e); err != nil {
			return nil, err
		}
		if _, dup := r.entries[e.ID]; dup {
			return nil, &ConfigError{Provider: e.ID, Field: "id", Reason: "duplicate provider"}
		}
		e.Scopes = append([]string(nil), e.Scopes...)
		r.entries[e.ID] = e
	}
	return r, nil
}

func validate(e Entry) error {
	if strings.TrimSpace(e.ID) == "" {
		return &ConfigError{Field: "id", Reason: "required"}
	}
	if strings.TrimSpace(e.ClientID) == "" {
		return &ConfigError{Provider: e.ID, Field: "client_id", Reason: "required"}
	}
	if strings.TrimSpace(e.ClientSecret) == "" {
		return &ConfigError{Provider: e.ID, Field: "client_secret", Reason: "required"}
	}
	for field, raw := range map[string]string{
		"auth_url":     e.AuthURL,
		"token_url":    e.TokenURL,
		"userinfo_url": e.UserInfoURL,
		"redirect_url": e.RedirectURL,
	} {
		if !isAbsoluteHTTP(raw) {
			return &ConfigError{Provider: e.ID, Field: field, Reason: "must be an absolute http(s) URL"}
		}
	}
	if e.Normalizer == nil {
		return &ConfigError{Provider: e.ID, Field: "normalizer", Reason: "required"}
	}
	return nil
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ConfigFor returns the entry for id or ErrUnknownProvider.
func (r *Registry) ConfigFor(id string) (Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrUnknownProvider
	}
	return e, nil
}

// IDs returns the registered provider ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
