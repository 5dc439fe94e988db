// Package config holds the application configuration: logo placement
// defaults, image limits and network settings. A Config is built once at
// startup and passed to the components that need it.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/logomaster/go-logomark/position"
)

// ErrConfig is returned for unreadable or invalid configuration files.
var ErrConfig = errors.New("invalid configuration")

// Config is the full application configuration.
type Config struct {
	Logo    LogoConfig    `yaml:"logo"`
	Image   ImageConfig   `yaml:"image"`
	Network NetworkConfig `yaml:"network"`
}

// LogoConfig carries the default placement parameters.
type LogoConfig struct {
	// ScaleRatio is the fraction of the base width the logo occupies.
	ScaleRatio float64 `yaml:"scale_ratio"`
	// Opacity in [0, 1].
	Opacity float64 `yaml:"opacity"`
	// Margin from the canvas edges in pixels.
	Margin int `yaml:"margin"`
	// Anchor names the default position.
	Anchor position.Anchor `yaml:"anchor"`
}

// ImageConfig carries codec limits and encoder settings.
type ImageConfig struct {
	MaxFileBytes int64 `yaml:"max_file_bytes"`
	MaxWidth     int   `yaml:"max_width"`
	MaxHeight    int   `yaml:"max_height"`
	// JPEGQuality in [1, 100].
	JPEGQuality int `yaml:"jpeg_quality"`
	// PNGCompression maps to the png encoder levels 0, -1, -2, -3.
	PNGCompression int `yaml:"png_compression"`
}

// NetworkConfig carries download settings.
type NetworkConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxBytes       int64   `yaml:"max_bytes"`
	UserAgent      string  `yaml:"user_agent"`
	Workers        int     `yaml:"workers"`
	RequestsPerS   float64 `yaml:"requests_per_second"`
}

// Timeout returns the request timeout as a duration.
func (n NetworkConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// Default returns the built-in configuration: a 10% logo at 80% opacity in
// the bottom-right corner with a 20px margin.
func Default() Config {
	return Config{
		Logo: LogoConfig{
			ScaleRatio: 0.1,
			Opacity:    0.8,
			Margin:     20,
			Anchor:     position.BottomRight,
		},
		Image: ImageConfig{
			MaxFileBytes:   50 << 20,
			MaxWidth:       8192,
			MaxHeight:      8192,
			JPEGQuality:    95,
			PNGCompression: 0,
		},
		Network: NetworkConfig{
			TimeoutSeconds: 30,
			MaxBytes:       100 << 20,
			UserAgent:      "LogoMark/2.0",
			Workers:        4,
			RequestsPerS:   0,
		},
	}
}

// Load reads a YAML file over the defaults; fields absent from the file
// keep their default values.
//
// Arguments:
//   - path: The YAML configuration file.
//
// Returns:
//   - Config: The merged configuration.
//   - error: ErrConfig when the file is unreadable, malformed or fails
//     validation.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(ErrConfig, "read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(ErrConfig, "parse %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants a usable configuration must hold.
func (c Config) Validate() error {
	if c.Logo.ScaleRatio <= 0 || c.Logo.ScaleRatio > 1 {
		return errors.Wrapf(ErrConfig, "scale_ratio %v outside (0, 1]", c.Logo.ScaleRatio)
	}
	if c.Logo.Margin < 0 {
		return errors.Wrapf(ErrConfig, "margin %d is negative", c.Logo.Margin)
	}
	if !c.Logo.Anchor.Valid() {
		return errors.Wrapf(ErrConfig, "unknown anchor %q", c.Logo.Anchor)
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return errors.Wrapf(ErrConfig, "jpeg_quality %d outside [1, 100]", c.Image.JPEGQuality)
	}
	if c.Network.TimeoutSeconds <= 0 {
		return errors.Wrapf(ErrConfig, "timeout must be positive")
	}
	return nil
}
