package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func validEntry(id string) Entry {
	return Entry{
		Config: Config{
			ID:           id,
			ClientID:     "cid",
			ClientSecret: "secret",
			AuthURL:      "https://idp.example/authorize",
			TokenURL:     "https://idp.example/token",
			UserInfoURL:  "https://idp.example/userinfo",
			RedirectURL:  "http://localhost:8000/api/auth/" + id + "_callback",
			Scopes:       []string{"openid"},
		},
		Normalizer: NormalizerFunc(func([]byte) (*Profile, error) { return &Profile{}, nil }),
	}
}

func TestNewRegistry_Lookup(t *testing.T) {
	r, err := NewRegistry(validEntry("twitter"), validEntry("google"))
	require.NoError(t, err)
	require.Equal(t, []string{"google", "twitter"}, r.IDs())

	e, err := r.ConfigFor("google")
	require.NoError(t, err)
	require.Equal(t, "cid", e.ClientID)

	_, err = r.ConfigFor("github")
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewRegistry_RejectsInvalidEntries(t *testing.T) {
	cases := []struct {
		name  string
		mod   func(e *Entry)
		field string
	}{
		{"missing id", func(e *Entry) { e.ID = "" }, "id"},
		{"missing client id", func(e *Entry) { e.ClientID = " " }, "client_id"},
		{"missing secret", func(e *Entry) { e.ClientSecret = "" }, "client_secret"},
		{"relative token url", func(e *Entry) { e.TokenURL = "/token" }, "token_url"},
		{"bad scheme", func(e *Entry) { e.AuthURL = "ftp://idp.example/a" }, "auth_url"},
		{"no host", func(e *Entry) { e.UserInfoURL = "https://" }, "userinfo_url"},
		{"no normalizer", func(e *Entry) { e.Normalizer = nil }, "normalizer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validEntry("google")
			tc.mod(&e)
			_, err := NewRegistry(e)
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			require.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(validEntry("google"), validEntry("google"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "id", cfgErr.Field)
}

func TestRegistry_ScopesAreCopied(t *testing.T) {
	e := validEntry("google")
	r, err := NewRegistry(e)
	require.NoError(t, err)
	e.Scopes[0] = "mutated"

	got, _ := r.ConfigFor("google")
	require.Equal(t, []string{"openid"}, got.Scopes)
}
