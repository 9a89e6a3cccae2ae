package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, uint32(250), cfg.FeeRateBps)

	// Reloading the generated file round-trips.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, again.RPCAddress)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \"127.0.0.1:8645\"\nLegacyField = true\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \"127.0.0.1:8645\"\nAdminAddress = \"nothex\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x" + "11" + "22334455667788990011223344556677889900")
	require.NoError(t, err)
	require.Equal(t, byte(0x11), addr[0])

	_, err = ParseAddress("1122")
	require.Error(t, err)
	_, err = ParseAddress("zz22334455667788990011223344556677889900")
	require.Error(t, err)
}
