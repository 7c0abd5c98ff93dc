package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient("")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Error(t, cfg.Validate())
}

func TestLoadClient_FileAndEnv(t *testing.T) {
	p := writeFile(t, "config.yaml", `
url: https://cloud.example.com/owncloud/
username: alice
timeout: 5s
logging:
  level: DEBUG
`)
	t.Setenv("OCSHARE_USERNAME", "bob")
	t.Setenv("OCSHARE_PASSWORD", "hunter2")

	cfg, err := LoadClient(p)
	require.NoError(t, err)
	assert.Equal(t, "https://cloud.example.com/owncloud/", cfg.URL)
	assert.Equal(t, "bob", cfg.Username)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadClient_MissingFileIsFine(t *testing.T) {
	_, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestLoadClient_BrokenFile(t *testing.T) {
	p := writeFile(t, "config.yaml", "url: [unterminated\n")
	_, err := LoadClient(p)
	assert.Error(t, err)
}

func TestClientConfig_ValidateURL(t *testing.T) {
	cfg := &ClientConfig{URL: "not a url", Username: "alice", Logging: LoggingConfig{Level: "info"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "URL")
}

func TestLoadServer(t *testing.T) {
	p := writeFile(t, "ocsd.yaml", `
address: 127.0.0.1:9000
public_url: https://share.example.com
users:
  alice: wonderland
cleaner:
  interval: 10m
`)
	t.Setenv("OCSD_METRICS_ENABLED", "false")

	cfg, err := LoadServer(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Address)
	assert.Equal(t, "https://share.example.com", cfg.PublicURL)
	assert.Equal(t, map[string]string{"alice": "wonderland"}, cfg.Users)
	assert.Equal(t, 10*time.Minute, cfg.Cleaner.Interval)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.TLS.Enabled())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadServer_HalfTLSIsInvalid(t *testing.T) {
	p := writeFile(t, "ocsd.yaml", "tls:\n  cert_file: server.crt\n")
	_, err := LoadServer(p)
	assert.Error(t, err)
}

func TestParseServer_FlagsOverride(t *testing.T) {
	p := writeFile(t, "ocsd.yaml", "address: 127.0.0.1:9000\n")

	cfg, err := ParseServer([]string{"-c", p, "-a", ":8443", "-d", "postgres://x"})
	require.NoError(t, err)
	assert.Equal(t, ":8443", cfg.Address)
	assert.Equal(t, "postgres://x", cfg.DatabaseDSN)
}

func TestDefaultClientConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "ocshare", "config.yaml"), DefaultClientConfigPath())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OCSHARE_DOTENV_PROBE=yes\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("OCSHARE_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("OCSHARE_DOTENV_PROBE"))

	require.NoError(t, LoadDotEnv())
	assert.Equal(t, "yes", os.Getenv("OCSHARE_DOTENV_PROBE"))
}
