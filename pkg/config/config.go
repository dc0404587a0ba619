// pkg/config/config.go - configuration settings for msikit.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PolicyRegistryPath is the HKLM key holding policy-managed settings.
const PolicyRegistryPath = `SOFTWARE\Policies\msikit`

// ErrNoPolicy is returned when no registry policy values are available.
var ErrNoPolicy = errors.New("no policy configuration found")

// Configuration holds the configurable options for msikit in YAML format.
type Configuration struct {
	LogLevel string `yaml:"LogLevel"`
	LogDir   string `yaml:"LogDir"`
	// DownloadDir is where URL sources land when no output path is given. Empty means the temp dir.
	DownloadDir string `yaml:"DownloadDir"`
	MsiexecPath string `yaml:"MsiexecPath"`
	DisplayMode string `yaml:"DisplayMode"`
	LogOptions  string `yaml:"LogOptions"`
	UserAgent   string `yaml:"UserAgent"`

	DownloadTimeoutSeconds int  `yaml:"DownloadTimeoutSeconds"` // 0 => no timeout
	ReleaseTimeoutMs       int  `yaml:"ReleaseTimeoutMs"`
	ReleaseIntervalMs      int  `yaml:"ReleaseIntervalMs"`
	ForceGC                bool `yaml:"ForceGC"`

	// Install sessions are recorded under LogDir\sessions when LogDir is set.
	SessionRetentionDays  int `yaml:"SessionRetentionDays"`
	SessionRetentionHours int `yaml:"SessionRetentionHours"`
}

// DefaultConfigPath returns %ProgramData%\msikit\Config.yaml.
func DefaultConfigPath() string {
	programData := os.Getenv("ProgramData")
	if programData == "" {
		programData = `C:\ProgramData`
	}
	return filepath.Join(programData, "msikit", "Config.yaml")
}

// GetDefaultConfig provides default configuration values.
func GetDefaultConfig() *Configuration {
	windir := os.Getenv("WINDIR")
	if windir == "" {
		windir = `C:\Windows`
	}
	return &Configuration{
		LogLevel:          "WARN",
		MsiexecPath:       filepath.Join(windir, "System32", "msiexec.exe"),
		DisplayMode:       "Quiet",
		LogOptions:        "*vx!",
		UserAgent:         "msikit/1.0",
		ReleaseTimeoutMs:  100,
		ReleaseIntervalMs: 10,
		ForceGC:           true,

		SessionRetentionDays:  30,
		SessionRetentionHours: 24,
	}
}

// LoadConfig loads the configuration from a YAML file.
// If the file doesn't exist, it falls back to registry policy settings, then defaults.
func LoadConfig(path string) (*Configuration, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := GetDefaultConfig()
		if perr := loadPolicy(cfg); perr != nil && !errors.Is(perr, ErrNoPolicy) {
			return nil, fmt.Errorf("configuration file %s does not exist and policy fallback failed: %w", path, perr)
		}
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults.
func Parse(data []byte) (*Configuration, error) {
	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the tools cannot act on.
func (c *Configuration) Validate() error {
	switch strings.ToLower(c.DisplayMode) {
	case "", "quiet", "passive", "full":
	default:
		return fmt.Errorf("invalid DisplayMode %q: want Quiet, Passive or Full", c.DisplayMode)
	}
	if c.DownloadTimeoutSeconds < 0 {
		return fmt.Errorf("invalid DownloadTimeoutSeconds %d", c.DownloadTimeoutSeconds)
	}
	if c.ReleaseTimeoutMs < 0 || c.ReleaseIntervalMs < 0 {
		return fmt.Errorf("invalid release timing %dms/%dms", c.ReleaseTimeoutMs, c.ReleaseIntervalMs)
	}
	if c.SessionRetentionDays < 0 || c.SessionRetentionHours < 0 {
		return fmt.Errorf("invalid session retention %dd/%dh", c.SessionRetentionDays, c.SessionRetentionHours)
	}
	return nil
}

// SessionDir is where msiinstall records its runs. Empty when LogDir is unset.
func (c *Configuration) SessionDir() string {
	if c.LogDir == "" {
		return ""
	}
	return filepath.Join(c.LogDir, "sessions")
}

// DownloadTimeout returns the HTTP timeout; zero means none.
func (c *Configuration) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}

// ReleaseTimeout is the cap on the post-close file lock poll.
func (c *Configuration) ReleaseTimeout() time.Duration {
	return time.Duration(c.ReleaseTimeoutMs) * time.Millisecond
}

// ReleaseInterval is the sleep between file lock probes.
func (c *Configuration) ReleaseInterval() time.Duration {
	return time.Duration(c.ReleaseIntervalMs) * time.Millisecond
}
