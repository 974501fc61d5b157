package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	OBS       OBSConfig       `yaml:"obs"`
	Keyframes KeyframesConfig `yaml:"keyframes"`
	Cutter    CutterConfig    `yaml:"cutter"`
	YouTube   YouTubeConfig   `yaml:"youtube"`
	Server    ServerConfig    `yaml:"server"`
}

// PathsConfig contains directory paths for media processing
type PathsConfig struct {
	WorkingDirectory string `yaml:"working_directory"` // keyframe sidecars; empty stores them next to the source
	OutputDirectory  string `yaml:"output_directory"`
}

// OBSConfig contains vision mixer connection settings
type OBSConfig struct {
	Address           string        `yaml:"address"`
	Password          string        `yaml:"password"`
	Protocol          string        `yaml:"protocol"` // v4 or v5
	ConnectAttempts   int           `yaml:"connect_attempts"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	InitialDelay      time.Duration `yaml:"initial_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ReplayTimeout     time.Duration `yaml:"replay_timeout"`
}

// KeyframesConfig contains keyframe scanning settings
type KeyframesConfig struct {
	FFprobePath string `yaml:"ffprobe_path"`
}

// CutterConfig contains lossless cutting settings
type CutterConfig struct {
	Tool         string `yaml:"tool"` // ffmpeg or mkvmerge
	FFmpegPath   string `yaml:"ffmpeg_path"`
	MKVMergePath string `yaml:"mkvmerge_path"`
	Concurrency  int    `yaml:"concurrency"`
}

// YouTubeConfig contains YouTube API settings
type YouTubeConfig struct {
	CredentialsFile string   `yaml:"credentials_file"`
	TokenFile       string   `yaml:"token_file"`
	Privacy         string   `yaml:"privacy"`
	CategoryID      string   `yaml:"category_id"`
	Tags            []string `yaml:"tags"`
}

// ServerConfig contains live operation API settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Defaults returns a configuration with every default filled in
func Defaults() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with their defaults
func (c *Config) ApplyDefaults() {
	setString(&c.Paths.OutputDirectory, "clips")

	setString(&c.OBS.Address, "ws://127.0.0.1:4455")
	setString(&c.OBS.Protocol, "v5")
	setInt(&c.OBS.ConnectAttempts, 10)
	setInt(&c.OBS.ReconnectAttempts, 1)
	setDuration(&c.OBS.InitialDelay, time.Second)
	setDuration(&c.OBS.MaxDelay, 30*time.Second)
	setDuration(&c.OBS.RequestTimeout, 10*time.Second)
	setDuration(&c.OBS.ReplayTimeout, 10*time.Second)

	setString(&c.Keyframes.FFprobePath, "ffprobe")

	setString(&c.Cutter.Tool, "ffmpeg")
	setString(&c.Cutter.FFmpegPath, "ffmpeg")
	setString(&c.Cutter.MKVMergePath, "mkvmerge")
	setInt(&c.Cutter.Concurrency, 2)

	setString(&c.YouTube.CredentialsFile, filepath.Join("config", "client_secret.json"))
	setString(&c.YouTube.TokenFile, filepath.Join("config", "youtube_token.json"))
	setString(&c.YouTube.Privacy, "private")

	setString(&c.Server.Addr, "127.0.0.1:8090")
}

// Validate checks values that defaults cannot repair
func (c *Config) Validate() error {
	switch c.OBS.Protocol {
	case "v4", "v5":
	default:
		return fmt.Errorf("obs.protocol must be v4 or v5, got %q", c.OBS.Protocol)
	}
	switch c.Cutter.Tool {
	case "ffmpeg", "mkvmerge":
	default:
		return fmt.Errorf("cutter.tool must be ffmpeg or mkvmerge, got %q", c.Cutter.Tool)
	}
	switch c.YouTube.Privacy {
	case "private", "unlisted", "public":
	default:
		return fmt.Errorf("youtube.privacy must be private, unlisted or public, got %q", c.YouTube.Privacy)
	}
	if c.OBS.MaxDelay < c.OBS.InitialDelay {
		return fmt.Errorf("obs.max_delay (%s) must not be less than obs.initial_delay (%s)", c.OBS.MaxDelay, c.OBS.InitialDelay)
	}
	return nil
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}

// Load reads and parses the configuration from the specified YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to the specified YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// the file holds the OBS password
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
