package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Database DatabaseConfig `toml:"database"`
	Library  LibraryConfig  `toml:"library"`
	Audio    AudioConfig    `toml:"audio"`
}

// SpotifyConfig contains the public-client credentials for the Spotify Web API.
//
// No client secret: authorization uses the code flow with PKCE.
type SpotifyConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
	DeviceName  string `toml:"device_name"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LibraryConfig controls where ingested audio files and auth artifacts live.
type LibraryConfig struct {
	Dir string `toml:"dir"`
}

// AudioConfig contains local playback engine settings.
type AudioConfig struct {
	SampleRate    int     `toml:"sample_rate"`
	BufferMS      int     `toml:"buffer_ms"`
	DefaultVolume float64 `toml:"default_volume"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	config.expand()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.expand()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expand resolves "~" prefixes in path-valued fields against $HOME.
func (c *Config) expand() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	if len(c.Database.Path) > 1 && c.Database.Path[0] == '~' {
		c.Database.Path = filepath.Join(home, c.Database.Path[2:])
	}
	if len(c.Library.Dir) > 1 && c.Library.Dir[0] == '~' {
		c.Library.Dir = filepath.Join(home, c.Library.Dir[2:])
	}
}
