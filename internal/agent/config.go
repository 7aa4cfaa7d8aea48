package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the knockd configuration file. Paths default to files inside
// DataDir when left empty.
type Config struct {
	DataDir   string      `toml:"dataDir"`
	AdminAddr string      `toml:"adminAddr"`
	Relay     RelayConfig `toml:"relay"`
}

type RelayConfig struct {
	ID      string `toml:"id"`
	Address string `toml:"address"`
}

func DefaultConfig() Config {
	return Config{
		DataDir:   "./knockd-data",
		AdminAddr: "127.0.0.1:7030",
		Relay: RelayConfig{
			ID:      "default",
			Address: "127.0.0.1:7031",
		},
	}
}

// LoadConfig reads a TOML config, falling back to defaults for a missing
// file. Unset fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (c Config) IdentityPath() string {
	return filepath.Join(c.DataDir, "identity.toml")
}

func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "knock.db")
}

func (c Config) ConversationsPath() string {
	return filepath.Join(c.DataDir, "conversations.toml")
}

func (c Config) PinsPath() string {
	return filepath.Join(c.DataDir, "relays.toml")
}
