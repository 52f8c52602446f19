package google

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialgate/internal/providers"
)

func TestNormalize(t *testing.T) {
	p, err := Normalizer{}.Normalize([]byte(`{"sub":"1081","name":"Ana Pérez","email":"ana@gmail.com","picture":"x"}`))
	require.NoError(t, err)
	require.Equal(t, "google", p.Provider)
	require.Equal(t, "1081", p.ProviderUserID)
	require.Equal(t, "Ana Pérez", p.DisplayName)
	require.Equal(t, "ana@gmail.com", p.Email)
	require.Equal(t, "x", p.Raw["picture"])
}

func TestNormalize_NameFallsBackToEmail(t *testing.T) {
	p, err := Normalizer{}.Normalize([]byte(`{"sub":"1","email":"a@b.co"}`))
	require.NoError(t, err)
	require.Equal(t, "a@b.co", p.DisplayName)
}

func TestNormalize_MissingSub(t *testing.T) {
	_, err := Normalizer{}.Normalize([]byte(`{"name":"x"}`))
	require.ErrorIs(t, err, providers.ErrProfileIncomplete)

	_, err = Normalizer{}.Normalize([]byte(`not json`))
	require.Error(t, err)
	require.NotErrorIs(t, err, providers.ErrProfileIncomplete)
}
