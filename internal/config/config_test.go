package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadWithEnvFile("", nil)
	require.NoError(t, err)

	assert.Equal(t, "paroliere", cfg.Name)
	assert.Equal(t, "localhost:8080", cfg.Address())
	assert.Equal(t, 3*time.Minute, cfg.RoundDuration)
	assert.Equal(t, time.Minute, cfg.BreakDuration)
	assert.Equal(t, 32, cfg.MaxClients)
	assert.False(t, cfg.SeedSet)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("PAROLIERE_PORT", "9000")
	t.Setenv("PAROLIERE_ROUND_DURATION", "30s")
	t.Setenv("PAROLIERE_SEED", "42")
	t.Setenv("PAROLIERE_MESSAGE_RATE", "2.5")

	cfg, err := LoadWithEnvFile("", nil)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.RoundDuration)
	assert.True(t, cfg.SeedSet)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 2.5, cfg.MessageRate)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("PAROLIERE_PORT", "9000")

	cfg, err := LoadWithEnvFile("", []string{"-port", "9100", "-grids", "grids.txt", "-disconnect-after", "10s"})
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "grids.txt", cfg.GridPath)
	assert.Equal(t, 10*time.Second, cfg.InactivityTimeout)
}

func TestEnvFileSitsBelowEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAROLIERE_NAME=fromfile\nPAROLIERE_BREAK_DURATION=5s\n"), 0o644))
	t.Setenv("PAROLIERE_BREAK_DURATION", "7s")
	t.Cleanup(func() { os.Unsetenv("PAROLIERE_NAME") })

	cfg, err := LoadWithEnvFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.Name)
	assert.Equal(t, 7*time.Second, cfg.BreakDuration)
}

func TestMissingEnvFileIsIgnored(t *testing.T) {
	_, err := LoadWithEnvFile(filepath.Join(t.TempDir(), "missing.env"), nil)
	assert.NoError(t, err)
}

func TestPositionalNameAndPort(t *testing.T) {
	cfg, err := LoadWithEnvFile("", []string{"-seed", "7", "lobby", "9001"})
	require.NoError(t, err)
	assert.Equal(t, "lobby", cfg.Name)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, int64(7), cfg.Seed)

	_, err = LoadWithEnvFile("", []string{"lobby", "port"})
	assert.Error(t, err)

	_, err = LoadWithEnvFile("", []string{"a", "9001", "extra"})
	assert.Error(t, err)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	_, err := LoadWithEnvFile("", []string{"-port", "80", "-round", "0s"})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "port 80")
	assert.Contains(t, err.Error(), "round duration")
}

func TestInvalidEnvValue(t *testing.T) {
	t.Setenv("PAROLIERE_MAX_CLIENTS", "many")
	_, err := LoadWithEnvFile("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAROLIERE_MAX_CLIENTS")
}

func TestVersionSkipsValidation(t *testing.T) {
	cfg, err := LoadWithEnvFile("", []string{"-version", "-port", "1"})
	require.NoError(t, err)
	assert.True(t, cfg.ShowVersion)
}

func TestHelpFlag(t *testing.T) {
	_, err := LoadWithEnvFile("", []string{"-help"})
	assert.ErrorIs(t, err, flag.ErrHelp)
}
