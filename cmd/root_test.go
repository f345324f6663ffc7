package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2echat/internal/account"
)

func TestAccountCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("data_dir: "+dir+"\nlog_file: \"\"\nkdf_iterations: 100000\n"), 0o600))

	run := func(args ...string) error {
		RootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
		return RootCmd.Execute()
	}

	require.NoError(t, run("account", "create", "-u", "alice", "-p", "secret-pass"))
	assert.FileExists(t, filepath.Join(dir, "accounts", "alice", "account.json"))

	require.NoError(t, run("account", "show", "-u", "alice"))
	require.NoError(t, run("account", "list"))

	err := run("account", "delete", "-u", "alice", "-p", "wrong-pass")
	assert.ErrorIs(t, err, account.ErrWrongPassword)

	require.NoError(t, run("account", "delete", "-u", "alice", "-p", "secret-pass"))
	assert.NoFileExists(t, filepath.Join(dir, "accounts", "alice", "account.json"))
}

func TestVersionCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"data_dir": "`+dir+`", "log_file": "e2echat.log"}`), 0o600))

	RootCmd.SetArgs([]string{"--config", cfgPath, "version"})
	require.NoError(t, RootCmd.Execute())
	assert.FileExists(t, filepath.Join(dir, "e2echat.log"))
}
