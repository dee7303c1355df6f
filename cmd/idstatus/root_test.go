package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := newRootCommand()
	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"serve", "consume", "migrate"})
}

func TestMigrateRequiresPostgres(t *testing.T) {
	t.Setenv("IDSTATUS_POSTGRES_URL", "")
	cmd := newRootCommand()
	cmd.SetArgs([]string{"migrate"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL is required")
}

func TestServeRequiresSigningKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  jwtSigningKey: \"\"\n"), 0o600))
	cmd := newRootCommand()
	cmd.SetArgs([]string{"serve", "--config", path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing key")
}

func TestUnreadableConfigFails(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"migrate", "--config", "testdata/does-not-exist.yaml"})
	require.Error(t, cmd.Execute())
}
