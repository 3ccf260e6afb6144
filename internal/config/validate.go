package config

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/forPelevin/clipforge/internal/domain/overlay"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRender() error {
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render size must be positive, got %dx%d", c.Render.Width, c.Render.Height)
	}
	if c.Render.Width%2 != 0 || c.Render.Height%2 != 0 {
		return fmt.Errorf("render size must be even for yuv420p, got %dx%d", c.Render.Width, c.Render.Height)
	}
	if c.Render.FPS <= 0 || c.Render.FPS > 120 {
		return fmt.Errorf("render.fps must be in 1..120, got %d", c.Render.FPS)
	}
	if _, err := c.BackgroundColor(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateExport() error {
	switch c.Export.Format {
	case "webm", "mp4":
	default:
		return fmt.Errorf("export.format must be webm or mp4, got %q", c.Export.Format)
	}
	if strings.TrimSpace(c.Export.OutDir) == "" {
		return errors.New("export.out_dir must be set")
	}
	if _, err := overlay.Lookup(c.Export.Style); err != nil {
		return fmt.Errorf("export.style: %w", err)
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if strings.TrimSpace(c.FFmpeg.FFmpeg) == "" || strings.TrimSpace(c.FFmpeg.FFprobe) == "" {
		return errors.New("ffmpeg.ffmpeg and ffmpeg.ffprobe must be set")
	}
	if c.FFmpeg.Monitor && strings.TrimSpace(c.FFmpeg.FFplay) == "" {
		return errors.New("ffmpeg.ffplay must be set when ffmpeg.monitor is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// BackgroundColor parses render.background as #rrggbb.
func (c *Config) BackgroundColor() (color.NRGBA, error) {
	s := strings.TrimPrefix(strings.TrimSpace(c.Render.Background), "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("render.background must be #rrggbb, got %q", c.Render.Background)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("render.background must be #rrggbb, got %q", c.Render.Background)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
