package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2echat/internal/chat"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadYAMLConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
data_dir: /var/lib/e2echat
user_id: alice
gateway_url: ws://chat.example:9000/ws
kdf_iterations: 200000
handshake_timeout_sec: 3
typing_timeout_ms: 500
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, ":8080", cfg.GatewayListen)
	assert.Equal(t, filepath.Join("/var/lib/e2echat", "accounts"), cfg.AccountDir())
	assert.Equal(t, filepath.Join("/var/lib/e2echat", "messages", "alice.json"), cfg.MessageFile("alice"))

	sc := cfg.SessionConfig()
	assert.Equal(t, 3*time.Second, sc.HandshakeTimeout)
	assert.Equal(t, 500*time.Millisecond, sc.TypingTimeout)
	assert.Equal(t, 200000, cfg.EncryptionConfig().Iterations)
}

func TestValidateRejectsWeakKDF(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KDFIterations = chat.MinKDFIterations - 1
	assert.Error(t, cfg.Validate())

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"kdf_iterations": 1000}`), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTripYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	cfg := DefaultConfig()
	cfg.UserID = "bob"
	cfg.Metrics = false
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "ok", sanitizeString("ok"))
	assert.Equal(t, "a b", sanitizeString("a\xffb"))
}
