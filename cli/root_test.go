package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerlearn_server/apperrors"
	"peerlearn_server/auth"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := "storage:\n  driver: sqlite\nsqlite:\n  path: " + filepath.Join(dir, "cli.db") + "\nauth:\n  jwt_secret: cli-secret\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "migrate", "purge-match", "token"} {
		found, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, found.Name())
	}
}

func TestTokenCommandMintsVerifiableToken(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())

	out, err := run(t, "--config", cfgPath, "token", "user-7", "--role", "admin")
	require.NoError(t, err)

	identity, err := auth.NewJWTManager("cli-secret", time.Hour).ParseAccessToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-7", identity.UserID)
	assert.True(t, identity.IsAdmin())
}

func TestMigrateAndPurgeMatch(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())

	out, err := run(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema ready (sqlite)")

	_, err = run(t, "--config", cfgPath, "purge-match", "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
