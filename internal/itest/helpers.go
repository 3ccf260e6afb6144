//go:build integration

package itest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
)

func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd, nil
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			break
		}
		wd = parent
	}
	return "", errors.New("could not locate go.mod")
}

type probedFile struct {
	Duration   float64
	VideoCodec string
	Width      int
	Height     int
	HasAudio   bool
}

func probeFile(path string) (probedFile, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return probedFile{}, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	var doc struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return probedFile{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	var out probedFile
	for _, s := range doc.Streams {
		switch s.CodecType {
		case "video":
			out.VideoCodec, out.Width, out.Height = s.CodecName, s.Width, s.Height
		case "audio":
			out.HasAudio = true
		}
	}
	if doc.Format.Duration != "" {
		out.Duration, err = strconv.ParseFloat(doc.Format.Duration, 64)
		if err != nil {
			return probedFile{}, fmt.Errorf("parse duration %q: %w", doc.Format.Duration, err)
		}
	}
	return out, nil
}

// makeFixture writes a short test-pattern recording with a sine tone.
func makeFixture(t *testing.T, dir string, seconds int) string {
	t.Helper()
	in := filepath.Join(dir, "input.mp4")
	ff := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=size=640x360:rate=25:duration=%d", seconds),
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=440:duration=%d", seconds),
		"-shortest",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		in,
	)
	if b, err := ff.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
	return in
}

const fixtureClips = `{
  "input": "input.mp4",
  "clips": [
    {
      "id": "1",
      "title": "Opening Hook",
      "startTime": 1,
      "endTime": 3,
      "captions": [
        {"text": "Did you know", "start": 0, "end": 1},
        {"text": "this works", "start": 1, "end": 2}
      ]
    },
    {
      "id": "2",
      "title": "Second Beat",
      "startTime": 4,
      "endTime": 5.5,
      "captions": [{"text": "and again", "start": 0, "end": 3}]
    }
  ]
}`

func writeClips(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "clips.json")
	if err := os.WriteFile(path, []byte(fixtureClips), 0o644); err != nil {
		t.Fatalf("write clips: %v", err)
	}
	return path
}
