// Package google maps Google's OpenID userinfo response to a providers.Profile.
package google

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dropDatabas3/socialgate/internal/providers"
)

const ProviderName = "google"

// Default endpoints.
const (
	AuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	TokenURL    = "https://www.googleapis.com/oauth2/v3/token"
	UserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

var DefaultScopes = []string{"openid", "email", "profile"}

type userInfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Normalizer for the userinfo endpoint. "sub" is required; display name
// falls back to the email when "name" is missing.
type Normalizer struct{}

func (Normalizer) Normalize(body []byte) (*providers.Profile, error) {
	var ui userInfo
	if err := json.Unmarshal(body, &ui); err != nil {
		return nil, fmt.Errorf("google: decode userinfo: %w", err)
	}
	if strings.TrimSpace(ui.Sub) == "" {
		return nil, fmt.Errorf("google: missing sub: %w", providers.ErrProfileIncomplete)
	}
	raw := map[string]any{}
	_ = json.Unmarshal(body, &raw)

	display := strings.TrimSpace(ui.Name)
	if display == "" {
		display = ui.Email
	}
	return &providers.Profile{
		Provider:       ProviderName,
		ProviderUserID: ui.Sub,
		DisplayName:    display,
		Email:          strings.TrimSpace(ui.Email),
		Raw:            raw,
	}, nil
}
