package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupSecret(t *testing.T) {
	dir := t.TempDir()
	prev := SecretsDir
	SecretsDir = dir
	t.Cleanup(func() { SecretsDir = prev })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bot_token"), []byte("  from-file \n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), []byte("\n"), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("EMPTY", "env-fallback")
	t.Setenv("MISSING", "")

	v, err := LookupSecret("bot_token", "BOT_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "from-file", v, "file wins over env")

	v, err = LookupSecret("empty", "EMPTY")
	require.NoError(t, err)
	assert.Equal(t, "env-fallback", v)

	_, err = LookupSecret("missing", "MISSING")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	_, err = ReadSecret("empty")
	assert.ErrorContains(t, err, "is empty")
}
