package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed sample_config.toml
var sampleConfig string

type Recorder struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Device  string   `toml:"device"`
}

type Player struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

type Config struct {
	CSVDir         string   `toml:"csv_dir"`
	RecordingsRoot string   `toml:"recordings_root"`
	FolderSuffix   string   `toml:"folder_suffix"`
	Extension      string   `toml:"extension"`
	Columns        []string `toml:"columns"`
	DBPath         string   `toml:"db_path"`
	LogPath        string   `toml:"log_path"`
	LogLevel       string   `toml:"log_level"`
	LogFormat      string   `toml:"log_format"`
	LockDirs       bool     `toml:"lock_dirs"`
	Recorder       Recorder `toml:"recorder"`
	Player         Player   `toml:"player"`
}

// DefaultPath is where Load looks when no explicit path is given.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "readaloud", "config.toml"), nil
}

func Default(home string) *Config {
	return &Config{
		CSVDir:         "csvs",
		RecordingsRoot: "audio_recordings",
		Extension:      "wav",
		Columns:        []string{"transcriptions", "transcription"},
		DBPath:         filepath.Join(home, ".config", "readaloud", "readaloud.db"),
		LogPath:        filepath.Join(home, ".config", "readaloud", "readaloud.log"),
		LogLevel:       "info",
		LogFormat:      "text",
		LockDirs:       true,
		Recorder: Recorder{
			Command: "arecord",
			Args:    []string{"-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "wav", "-"},
		},
		Player: Player{
			Command: "aplay",
			Args:    []string{"-q"},
		},
	}
}

// Load returns the defaults overlaid with the TOML file at path. An empty
// path means DefaultPath; a missing file is not an error.
func Load(path string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := Default(home)

	if path == "" {
		path = filepath.Join(home, ".config", "readaloud", "config.toml")
	}
	path = expandHome(path, home)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// expand ~ in paths
	cfg.CSVDir = expandHome(cfg.CSVDir, home)
	cfg.RecordingsRoot = expandHome(cfg.RecordingsRoot, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.LogPath = expandHome(cfg.LogPath, home)
	cfg.Extension = strings.TrimPrefix(strings.TrimSpace(cfg.Extension), ".")
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.CSVDir) == "" {
		return fmt.Errorf("csv_dir must not be empty")
	}
	if strings.TrimSpace(c.RecordingsRoot) == "" {
		return fmt.Errorf("recordings_root must not be empty")
	}
	if c.Extension == "" {
		return fmt.Errorf("extension must not be empty")
	}
	if strings.ContainsAny(c.FolderSuffix, `/\`) {
		return fmt.Errorf("folder_suffix %q must be a single path segment", c.FolderSuffix)
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("columns must list at least one header name")
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format %q must be text or json", c.LogFormat)
	}
	if strings.TrimSpace(c.Recorder.Command) == "" {
		return fmt.Errorf("recorder.command must not be empty")
	}
	return nil
}

// SampleConfig returns the commented sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to path, refusing to
// overwrite an existing file unless force is set.
func WriteSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
