package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration loaded from TOML. Addresses are
// hex-encoded 20-byte identities.
type Config struct {
	RPCAddress     string   `toml:"RPCAddress"`
	DataDir        string   `toml:"DataDir"`
	StorageBackend string   `toml:"StorageBackend"`
	Env            string   `toml:"Env"`
	AdminAddress   string   `toml:"AdminAddress"`
	CustodyAddress string   `toml:"CustodyAddress"`
	FeeRecipient   string   `toml:"FeeRecipient"`
	FeeRateBps     uint32   `toml:"FeeRateBps"`
	AssetBackends  []string `toml:"AssetBackends"`
	ValueBackends  []string `toml:"ValueBackends"`
	LogFile        string   `toml:"LogFile"`
	LogMaxSizeMB   int      `toml:"LogMaxSizeMB"`
	LogMaxBackups  int      `toml:"LogMaxBackups"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown keys: %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:     "127.0.0.1:8645",
		DataDir:        "./marketd-data",
		StorageBackend: "bolt",
		Env:            "dev",
		FeeRateBps:     250,
		AssetBackends:  []string{"collectibles"},
		ValueBackends:  []string{},
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that must parse before the daemon can start.
// Identity fields may stay empty in dev configs; the daemon falls back to
// built-in dev identities for those.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	switch strings.ToLower(strings.TrimSpace(c.StorageBackend)) {
	case "", "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("config: unknown StorageBackend %q", c.StorageBackend)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"AdminAddress", c.AdminAddress},
		{"CustodyAddress", c.CustodyAddress},
		{"FeeRecipient", c.FeeRecipient},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		if _, err := ParseAddress(field.value); err != nil {
			return fmt.Errorf("config: %s: %w", field.name, err)
		}
	}
	return nil
}

// ParseAddress decodes a hex-encoded 20-byte identity, accepting an optional
// 0x prefix.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", value, err)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("invalid address %q: want 20 bytes, got %d", value, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}
