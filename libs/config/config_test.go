package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8080")
	p, err := Port("TEST_PORT", "1")
	require.NoError(t, err)
	assert.Equal(t, "8080", p)

	t.Setenv("TEST_PORT", "70000")
	_, err = Port("TEST_PORT", "1")
	assert.Error(t, err)
}

func TestTypedHelpers(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_LIST", " a, ,b ")

	assert.True(t, Bool("TEST_BOOL", false))
	assert.False(t, Bool("TEST_BOOL_MISSING", false))

	n, err := Int("TEST_INT", 1)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	d, err := Duration("TEST_DURATION", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	assert.Equal(t, []string{"a", "b"}, List("TEST_LIST"))

	t.Setenv("TEST_INT", "many")
	_, err = Int("TEST_INT", 1)
	assert.Error(t, err)
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOTENV_A=from-file\nDOTENV_B=from-file\n"), 0o600))

	t.Setenv("DOTENV_A", "from-env")
	t.Setenv("DOTENV_B", "")
	require.NoError(t, os.Unsetenv("DOTENV_B"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	t.Cleanup(func() { _ = os.Unsetenv("DOTENV_B") })

	assert.Equal(t, "from-env", String("DOTENV_A", ""))
	assert.Equal(t, "from-file", String("DOTENV_B", ""))
}
