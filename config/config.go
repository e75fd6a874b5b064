package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// OutputConfig defines the playback MIDI output
type OutputConfig struct {
	PortName string `json:"portName,omitempty"`
}

// SynthConfig defines the offline renderer
type SynthConfig struct {
	SoundFont string `json:"soundFont,omitempty"`
}

// PlaybackConfig stores playback preferences
type PlaybackConfig struct {
	StartOffsetMs int      `json:"startOffsetMs,omitempty"`
	RecentFiles   []string `json:"recentFiles,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Output   OutputConfig   `json:"output,omitempty"`
	Synth    SynthConfig    `json:"synth,omitempty"`
	Playback PlaybackConfig `json:"playback,omitempty"`
	Theme    string         `json:"theme,omitempty"` // optional .gpl palette path
	Debug    []string       `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Synth: SynthConfig{
			SoundFont: "/usr/share/sounds/sf2/FluidR3_GM.sf2",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-midifile"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// StartOffsetMicros converts the configured start offset for the player
func (c *Config) StartOffsetMicros() uint32 {
	if c.Playback.StartOffsetMs <= 0 {
		return 0
	}
	return uint32(c.Playback.StartOffsetMs) * 1000
}

// AddRecentFile puts path at the front of the recent list, keeping at
// most ten entries
func (c *Config) AddRecentFile(path string) {
	recent := []string{path}
	for _, p := range c.Playback.RecentFiles {
		if p != path {
			recent = append(recent, p)
		}
	}
	if len(recent) > 10 {
		recent = recent[:10]
	}
	c.Playback.RecentFiles = recent
}
