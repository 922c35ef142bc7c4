package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Schedule      string `toml:"schedule"`
	DialTimeout   string `toml:"dial_timeout"`
	ReadTimeout   string `toml:"read_timeout"`
	StopTimeout   string `toml:"stop_timeout"`
	ActionTimeout string `toml:"action_timeout"`
	Workers       int    `toml:"workers"`
	QueueSize     int    `toml:"queue_size"`
	RequestPlan   *bool  `toml:"request_plan"`
	Monitor       *bool  `toml:"monitor"`
	Verbose       *bool  `toml:"verbose"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.gorocrail/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".gorocrail", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setInt("port", fc.Port, &cfg.Port)
	s.setString("schedule", fc.Schedule, &cfg.Schedule)

	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("read-timeout", fc.ReadTimeout, &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("stop-timeout", fc.StopTimeout, &cfg.StopTimeout); err != nil {
		return err
	}
	if err := s.setDuration("action-timeout", fc.ActionTimeout, &cfg.ActionTimeout); err != nil {
		return err
	}

	s.setInt("workers", fc.Workers, &cfg.Workers)
	s.setInt("queue-size", fc.QueueSize, &cfg.QueueSize)

	s.setBool("request-plan", fc.RequestPlan, &cfg.RequestPlan)
	s.setBool("monitor", fc.Monitor, &cfg.Monitor)
	s.setBool("verbose", fc.Verbose, &cfg.Verbose)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
