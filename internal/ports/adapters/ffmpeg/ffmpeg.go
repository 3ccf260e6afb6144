package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/forPelevin/clipforge/internal/logging"
	"github.com/forPelevin/clipforge/internal/ports"
)

type Options struct {
	FFmpeg  string
	FFprobe string
	FFplay  string
	// Monitor plays the export audio window through ffplay while rendering.
	Monitor bool
	Logger  *slog.Logger
}

// Adapter drives the ffmpeg tool family. It implements ports.Host.
type Adapter struct {
	ffmpeg  string
	ffprobe string
	ffplay  string
	monitor bool
	logger  *slog.Logger

	encodersOnce sync.Once
	encoders     map[string]bool
	encodersErr  error
}

var _ ports.Host = (*Adapter)(nil)

func New(opts Options) *Adapter {
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	if opts.FFprobe == "" {
		opts.FFprobe = "ffprobe"
	}
	if opts.FFplay == "" {
		opts.FFplay = "ffplay"
	}
	return &Adapter{
		ffmpeg:  opts.FFmpeg,
		ffprobe: opts.FFprobe,
		ffplay:  opts.FFplay,
		monitor: opts.Monitor,
		logger:  logging.WithComponent(opts.Logger, "ffmpeg"),
	}
}

// CheckTools verifies that ffmpeg and ffprobe can be executed.
func (a *Adapter) CheckTools(ctx context.Context) error {
	for _, bin := range []string{a.ffmpeg, a.ffprobe} {
		b, err := exec.CommandContext(ctx, bin, "-version").CombinedOutput()
		if err != nil {
			return fmt.Errorf("%s -version: %w\n%s", bin, err, string(b))
		}
	}
	return nil
}

// Encoders lists the encoder names the local ffmpeg build supports. The
// result is cached for the adapter's lifetime.
func (a *Adapter) Encoders(ctx context.Context) (map[string]bool, error) {
	a.encodersOnce.Do(func() {
		cmd := exec.CommandContext(ctx, a.ffmpeg, "-hide_banner", "-encoders")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			a.encodersErr = fmt.Errorf("ffmpeg encoders: %w\n%s", err, stderr.String())
			return
		}
		a.encoders = parseEncoders(string(out))
	})
	return a.encoders, a.encodersErr
}

// parseEncoders reads the table printed by `ffmpeg -encoders`, where each
// entry is a flags column followed by the encoder name.
func parseEncoders(out string) map[string]bool {
	encs := map[string]bool{}
	started := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !started {
			if strings.HasPrefix(line, "------") {
				started = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		encs[fields[1]] = true
	}
	return encs
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
