package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "prod", p.Mode)
	assert.Equal(t, "https://ai.glowdesk.io", p.BaseURL)
	assert.Equal(t, 30, p.RateLimit)
	assert.Equal(t, time.Minute, p.RateWindow)
	assert.Equal(t, 5*time.Minute, p.CacheTTL)
	assert.False(t, p.IsDev())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GLOWDESK_MODE", "dev")
	t.Setenv("GLOWDESK_BASE_URL", "http://localhost:8080")
	t.Setenv("GLOWDESK_API_KEY", "dev-token")
	t.Setenv("GLOWDESK_RATE_LIMIT", "5")

	p, err := Load("")
	require.NoError(t, err)

	assert.True(t, p.IsDev())
	assert.Equal(t, "http://localhost:8080", p.BaseURL)
	assert.Equal(t, "dev-token", p.APIKey)
	assert.Equal(t, 5, p.RateLimit)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "glowdesk.yaml")
	content := "mode: dev\nbase_url: https://staging.ai.glowdesk.io\nrate_limit: 10\nrate_window: 30s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://staging.ai.glowdesk.io", p.BaseURL)
	assert.Equal(t, 10, p.RateLimit)
	assert.Equal(t, 30*time.Second, p.RateWindow)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load("/nonexistent/glowdesk.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("InvalidMode", func(t *testing.T) {
		p := Default()
		p.Mode = "staging"
		assert.Error(t, p.Validate())
	})

	t.Run("BadScheme", func(t *testing.T) {
		p := Default()
		p.BaseURL = "ftp://ai.glowdesk.io"
		assert.Error(t, p.Validate())
	})

	t.Run("NonPositiveRate", func(t *testing.T) {
		p := Default()
		p.RateLimit = 0
		assert.Error(t, p.Validate())
	})
}
