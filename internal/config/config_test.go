package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankurauti1234/Events-Dashboard/internal/auth"
	"github.com/ankurauti1234/Events-Dashboard/internal/timezone"
)

func setupConfig(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	path := filepath.Join(t.TempDir(), "apm.yaml")
	InitConfig(path)
	return path
}

func TestLoadDefaults(t *testing.T) {
	setupConfig(t)

	s := Load()
	assert.Equal(t, DefaultAPIURL, s.APIURL)
	assert.Equal(t, DefaultLogoBaseURL, s.LogoBaseURL)
	assert.Equal(t, timezone.Default, s.Timezone)
	assert.Equal(t, DefaultTheme, s.Theme)
	assert.Equal(t, DefaultRefreshInterval, s.RefreshInterval)
	assert.NotEmpty(t, s.DBPath)
}

func TestSessionRoundTrip(t *testing.T) {
	path := setupConfig(t)

	in := auth.Session{Token: "tok", Name: "ops", Role: "admin", Email: "ops@example.com", Expiry: 1700000000000}
	require.NoError(t, SaveSession(in))

	viper.Reset()
	InitConfig(path)
	assert.Equal(t, in, LoadSession())

	require.NoError(t, ClearSession())
	viper.Reset()
	InitConfig(path)
	assert.Equal(t, auth.Session{}, LoadSession())
}

func TestSet(t *testing.T) {
	path := setupConfig(t)

	require.NoError(t, Set(KeyTimezone, "EST"))
	require.NoError(t, Set(KeyTheme, "dark"))
	require.NoError(t, Set(KeyRefreshInterval, "45s"))
	require.NoError(t, Set(KeyAPIURL, "http://localhost:4000/api/"))

	assert.Error(t, Set(KeyTimezone, "Mars Time"))
	assert.Error(t, Set(KeyTheme, "neon"))
	assert.Error(t, Set(KeyRefreshInterval, "10ms"))
	assert.Error(t, Set("colour", "red"))

	viper.Reset()
	InitConfig(path)
	s := Load()
	assert.Equal(t, "EST", s.Timezone)
	assert.Equal(t, "dark", s.Theme)
	assert.Equal(t, 45*time.Second, s.RefreshInterval)
	assert.Equal(t, "http://localhost:4000/api", s.APIURL)
}
