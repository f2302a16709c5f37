package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/antarasi/authgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "cmd-signing-key-0123456789"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FileAndFlags(t *testing.T) {
	t.Setenv(EnvSigningKey, "")
	path := writeConfig(t, `
listen: ":4000"
dsn: "file:test.db"
metrics: prometheus
views_dir: ./views
hashid: true
shutdown_timeout: 3s
auth:
  signing_key: "`+testKey+`"
  issuer: feathers
  token_lifetime: 2h
  bcrypt_cost: 12
  paginate:
    default: 5
    max: 20
`)

	cfg, err := loadConfig([]string{"--config", path, "--listen", ":5000"})
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Listen)
	assert.Equal(t, "file:test.db", cfg.DSN)
	assert.Equal(t, "prometheus", cfg.Metrics)
	assert.True(t, cfg.Hashid)
	assert.Equal(t, "./views", cfg.ViewsDir)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/socket", cfg.SocketPath)
	assert.Equal(t, testKey, cfg.Auth.GetSigningKey())
	assert.Equal(t, "feathers", cfg.Auth.GetIssuer())
	assert.Equal(t, 2*time.Hour, cfg.Auth.GetTokenLifetime())
	assert.Equal(t, 12, cfg.Auth.GetBcryptCost())
	assert.Equal(t, 5, cfg.Auth.GetPaginate().Default)
	assert.Equal(t, 20, cfg.Auth.GetPaginate().Max)
}

func TestLoadConfig_EnvSigningKey(t *testing.T) {
	t.Setenv(EnvSigningKey, "env-signing-key-0123456789")

	cfg, err := loadConfig([]string{"--debug"})
	require.NoError(t, err)
	assert.Equal(t, "env-signing-key-0123456789", cfg.Auth.GetSigningKey())
	assert.True(t, cfg.Debug)
	assert.Equal(t, ":3030", cfg.Listen)
	assert.Equal(t, "none", cfg.Metrics)
}

func TestLoadConfig_Flags(t *testing.T) {
	t.Setenv(EnvSigningKey, "env-signing-key-0123456789")
	path := writeConfig(t, `
auth:
  signing_key: "file-signing-key-0123456789"
  token_lifetime: 1h
`)

	cfg, err := loadConfig([]string{
		"--config", path,
		"--listen", "127.0.0.1:8080",
		"--dsn", "file::memory:",
		"--signing-key", testKey,
		"--token-lifetime", "2h",
		"--metrics", "prometheus",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "file::memory:", cfg.DSN)
	assert.Equal(t, testKey, cfg.Auth.GetSigningKey(), "the flag wins over the file and the environment")
	assert.Equal(t, 2*time.Hour, cfg.Auth.GetTokenLifetime())
	assert.Equal(t, "prometheus", cfg.Metrics)
}

func TestLoadConfig_EnvBeatsFile(t *testing.T) {
	t.Setenv(EnvSigningKey, "env-signing-key-0123456789")
	path := writeConfig(t, `
auth:
  signing_key: "file-signing-key-0123456789"
`)

	cfg, err := loadConfig([]string{"-c", path})
	require.NoError(t, err)
	assert.Equal(t, "env-signing-key-0123456789", cfg.Auth.GetSigningKey())
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv(EnvSigningKey, "")

	_, err := loadConfig(nil)
	require.Error(t, err, "a signing key is required")

	_, err = loadConfig([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)

	_, err = loadConfig([]string{"--config", writeConfig(t, "auth: [not, a, map]")})
	require.Error(t, err)

	_, err = loadConfig([]string{"--unknown-flag"})
	require.Error(t, err)

	_, err = loadConfig([]string{"--signing-key", "short"})
	require.Error(t, err, "the key is too short")

	_, err = loadConfig([]string{"--signing-key", testKey, "--token-lifetime", "-1h"})
	require.Error(t, err, "the lifetime must be positive")

	_, err = loadConfig([]string{"--signing-key", testKey, "--token-lifetime", "soon"})
	require.Error(t, err)
}

func TestActivityLog(t *testing.T) {
	logger := &recordingLogger{}
	sink := activityLog(logger)

	require.NoError(t, sink.Record(context.Background(), authgate.ActivityEvent{
		EventType: authgate.ActivityEventLogout,
		UserID:    "user-1",
		Provider:  authgate.ProviderSocket,
	}))
	require.Len(t, logger.messages, 1)
	assert.Equal(t, "activity", logger.messages[0])
}

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.messages = append(l.messages, msg) }
func (l *recordingLogger) Info(msg string, args ...any)  {}
func (l *recordingLogger) Warn(msg string, args ...any)  {}
func (l *recordingLogger) Error(msg string, args ...any) {}

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 10*time.Second, shutdownTimeout(Config{}))
	assert.Equal(t, time.Second, shutdownTimeout(Config{ShutdownTimeout: time.Second}))
}
