package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(content), 0644)
	require.NoError(t, err)
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"

database:
  url: "postgres://localhost/briefing_test"

ses:
  region: "us-east-1"
  access_key: "test-access"
  secret_key: "test-secret"
  timeout_seconds: 45
  from_name: "Bellingham Breaking News"
  from_email: "news@bellinghambreakingnews.com"

newsletter:
  site_url: "https://bellinghambreakingnews.com"
  channel: "morning_briefing"
  window_hours: 48
  max_items: 5

dispatch:
  workers: 4
  rate_per_second: 10
  burst: 20
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "postgres://localhost/briefing_test", cfg.Database.URL)
	assert.Equal(t, "us-east-1", cfg.SES.Region)
	assert.Equal(t, 45, cfg.SES.TimeoutSeconds)
	assert.Equal(t, "https://bellinghambreakingnews.com", cfg.Newsletter.SiteURL)
	assert.Equal(t, 48, cfg.Newsletter.WindowHours)
	assert.Equal(t, 5, cfg.Newsletter.MaxItems)
	assert.Equal(t, 4, cfg.Dispatch.Workers)
	assert.Equal(t, 10, cfg.Dispatch.RatePerSecond)
	assert.Equal(t, 20, cfg.Dispatch.Burst)
}

func TestLoadDefaults(t *testing.T) {
	configPath := writeConfig(t, `
database:
  url: "postgres://localhost/briefing"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 30, cfg.SES.TimeoutSeconds)
	assert.Equal(t, "us-west-2", cfg.SES.Region)
	assert.Equal(t, "morning_briefing", cfg.Newsletter.Channel)
	assert.Equal(t, 24, cfg.Newsletter.WindowHours)
	assert.Equal(t, 10, cfg.Newsletter.MaxItems)
	assert.Equal(t, 8, cfg.Dispatch.Workers)
	assert.Equal(t, 20, cfg.Dispatch.RatePerSecond)
	// Burst defaults to the per-second rate
	assert.Equal(t, 20, cfg.Dispatch.Burst)
	assert.Equal(t, "postgres", cfg.Articles.Source)
}

func TestLoadFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
database:
  url: "postgres://file-host/briefing"
ses:
  access_key: "file-access"
`)

	os.Setenv("DATABASE_URL", "postgres://env-host/briefing")
	os.Setenv("AWS_SES_ACCESS_KEY", "env-access")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("AWS_SES_ACCESS_KEY")
	}()

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host/briefing", cfg.Database.URL)
	assert.Equal(t, "env-access", cfg.SES.AccessKey)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestWindow(t *testing.T) {
	cfg := NewsletterConfig{WindowHours: 24}
	assert.Equal(t, 24*3600, int(cfg.Window().Seconds()))
}
