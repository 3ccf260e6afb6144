// Package config loads clipforge settings from a TOML file and CLIPFORGE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Render controls the export canvas.
type Render struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	FPS        int    `toml:"fps"`
	Background string `toml:"background"`
}

// Export controls the produced artifact.
type Export struct {
	Format  string `toml:"format"`
	OutDir  string `toml:"out_dir"`
	Style   string `toml:"style"`
	Sidecar bool   `toml:"sidecar"`
}

// FFmpeg locates the ffmpeg tool family.
type FFmpeg struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
	FFplay  string `toml:"ffplay"`
	Monitor bool   `toml:"monitor"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the complete clipforge configuration.
type Config struct {
	Render  Render  `toml:"render"`
	Export  Export  `toml:"export"`
	FFmpeg  FFmpeg  `toml:"ffmpeg"`
	Logging Logging `toml:"logging"`
}

func Default() Config {
	return Config{
		Render: Render{
			Width:      1080,
			Height:     1920,
			FPS:        30,
			Background: "#000000",
		},
		Export: Export{
			Format: "webm",
			OutDir: "out",
			Style:  "clean",
		},
		FFmpeg: FFmpeg{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
			FFplay:  "ffplay",
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "clipforge.toml"

// Load decodes the TOML file at path onto the defaults, applies CLIPFORGE_*
// environment overrides and validates the result. A missing file at the
// default path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"CLIPFORGE_FFMPEG":     &c.FFmpeg.FFmpeg,
		"CLIPFORGE_FFPROBE":    &c.FFmpeg.FFprobe,
		"CLIPFORGE_FFPLAY":     &c.FFmpeg.FFplay,
		"CLIPFORGE_FORMAT":     &c.Export.Format,
		"CLIPFORGE_STYLE":      &c.Export.Style,
		"CLIPFORGE_OUT_DIR":    &c.Export.OutDir,
		"CLIPFORGE_BACKGROUND": &c.Render.Background,
		"CLIPFORGE_LOG_LEVEL":  &c.Logging.Level,
		"CLIPFORGE_LOG_FORMAT": &c.Logging.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup("CLIPFORGE_FPS"); ok && strings.TrimSpace(v) != "" {
		fps, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("CLIPFORGE_FPS: %w", err)
		}
		c.Render.FPS = fps
	}
	if v, ok := lookup("CLIPFORGE_MONITOR"); ok && strings.TrimSpace(v) != "" {
		on, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("CLIPFORGE_MONITOR: %w", err)
		}
		c.FFmpeg.Monitor = on
	}
	return nil
}

func (c *Config) normalize() {
	c.Export.Format = strings.ToLower(strings.TrimSpace(c.Export.Format))
	c.Export.Style = strings.ToLower(strings.TrimSpace(c.Export.Style))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Export.OutDir != "" {
		c.Export.OutDir = filepath.Clean(c.Export.OutDir)
	}
}

// Encode renders c as TOML, used by `clipforge config`.
func (c Config) Encode() (string, error) {
	b, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(b), nil
}
