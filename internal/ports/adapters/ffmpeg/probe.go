package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/forPelevin/clipforge/internal/ports"
)

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads dimensions, duration and audio presence of a media file.
func (a *Adapter) Probe(ctx context.Context, path string) (ports.Metadata, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return ports.Metadata{}, fmt.Errorf("ffprobe %s: %w\n%s", path, err, string(b))
	}
	return parseProbe(b)
}

func parseProbe(b []byte) (ports.Metadata, error) {
	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return ports.Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	var meta ports.Metadata
	videoDur := 0.0
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if meta.Width == 0 {
				meta.Width, meta.Height = s.Width, s.Height
				videoDur, _ = strconv.ParseFloat(s.Duration, 64)
			}
		case "audio":
			meta.HasAudio = true
		}
	}
	if meta.Width == 0 || meta.Height == 0 {
		return ports.Metadata{}, fmt.Errorf("no video stream")
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		meta.Duration = d
	} else {
		meta.Duration = videoDur
	}
	return meta, nil
}
