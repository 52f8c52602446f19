// Package twitter maps the Twitter v2 /users/me response to a providers.Profile.
package twitter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dropDatabas3/socialgate/internal/providers"
)

const ProviderName = "twitter"

const (
	AuthURL     = "https://twitter.com/i/oauth2/authorize"
	TokenURL    = "https://api.twitter.com/2/oauth2/token"
	UserInfoURL = "https://api.twitter.com/2/users/me"
)

var DefaultScopes = []string{"tweet.read", "users.read"}

type meResponse struct {
	Data struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"data"`
}

// Normalizer requires data.id. Twitter does not expose email with these scopes.
type Normalizer struct{}

func (Normalizer) Normalize(body []byte) (*providers.Profile, error) {
	var me meResponse
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, fmt.Errorf("twitter: decode users/me: %w", err)
	}
	d := me.Data
	if strings.TrimSpace(d.ID) == "" {
		return nil, fmt.Errorf("twitter: missing data.id: %w", providers.ErrProfileIncomplete)
	}
	raw := map[string]any{}
	_ = json.Unmarshal(body, &raw)

	display := strings.TrimSpace(d.Name)
	if display == "" && d.Username != "" {
		display = "@" + d.Username
	}
	return &providers.Profile{
		Provider:       ProviderName,
		ProviderUserID: d.ID,
		DisplayName:    display,
		Raw:            raw,
	}, nil
}
