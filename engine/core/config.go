package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ApplicationSection struct {
	Name   string `toml:"name"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	PosX   uint32 `toml:"pos_x"`
	PosY   uint32 `toml:"pos_y"`
}

type LogSection struct {
	Level string `toml:"level"`
}

type RendererSection struct {
	Validation bool   `toml:"validation"`
	ShaderDir  string `toml:"shader_dir"`
	// FenceTimeoutMS bounds the per-frame fence wait. Zero waits forever.
	FenceTimeoutMS uint64 `toml:"fence_timeout_ms"`
	VSync          bool   `toml:"vsync"`
	CaptureDir     string `toml:"capture_dir"`
}

type AssetsSection struct {
	WatchShaders bool `toml:"watch_shaders"`
}

// Config is the content of engine.toml.
type Config struct {
	Application ApplicationSection `toml:"application"`
	Log         LogSection         `toml:"log"`
	Renderer    RendererSection    `toml:"renderer"`
	Assets      AssetsSection      `toml:"assets"`
}

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationSection{
			Name:   "Framecore",
			Width:  1700,
			Height: 900,
			PosX:   100,
			PosY:   100,
		},
		Log: LogSection{
			Level: "debug",
		},
		Renderer: RendererSection{
			Validation:     true,
			ShaderDir:      "shaders",
			FenceTimeoutMS: 1000,
			VSync:          true,
			CaptureDir:     "captures",
		},
		Assets: AssetsSection{
			WatchShaders: false,
		},
	}
}

// LoadConfig overlays the TOML file at path on top of DefaultConfig.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		LogWarn("config file %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply pushes the process wide settings, currently only the log level.
func (c *Config) Apply() error {
	level, err := ParseLogLevel(c.Log.Level)
	if err != nil {
		return err
	}
	SetLogLevel(level)
	return nil
}

func (c *Config) validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Application.Width, c.Application.Height)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return nil
}

// FenceTimeoutNS converts the configured timeout for vkWaitForFences. Timeouts too large to
// express in nanoseconds saturate to no timeout.
func (c *Config) FenceTimeoutNS() uint64 {
	const nsPerMS = 1_000_000
	ms := c.Renderer.FenceTimeoutMS
	if ms == 0 || ms > ^uint64(0)/nsPerMS {
		return ^uint64(0)
	}
	return ms * nsPerMS
}
