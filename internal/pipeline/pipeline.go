package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/flock"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/domain/overlay"
	"github.com/forPelevin/clipforge/internal/export"
	"github.com/forPelevin/clipforge/internal/logging"
	"github.com/forPelevin/clipforge/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/clipforge/internal/ports/adapters/raster"
	"github.com/forPelevin/clipforge/internal/session"
	"github.com/forPelevin/clipforge/internal/types"
	"github.com/forPelevin/clipforge/internal/usecase"
)

var ErrOutDirLocked = errors.New("output directory is locked by another export")

const lockFileName = ".clipforge.lock"

type Config struct {
	Input     string
	ClipsFile string
	// ClipIDs limits the export to these clips. Empty exports the first clip,
	// or every clip when All is set.
	ClipIDs []string
	All     bool
	// Style and OutDir override Settings.Export when set.
	Style   string
	OutDir  string
	Sidecar bool

	Settings config.Config
	Gate     session.Gate
	Logger   *slog.Logger
	OnEvent  func(export.Event)
}

func (c Config) Validate() error {
	if c.Input == "" {
		return errors.New("input is empty")
	}
	if _, err := os.Stat(c.Input); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if c.ClipsFile == "" {
		return errors.New("clips file is empty")
	}
	if _, err := os.Stat(c.ClipsFile); err != nil {
		return fmt.Errorf("stat clips file: %w", err)
	}
	if c.Style != "" {
		if _, err := overlay.Lookup(c.Style); err != nil {
			return err
		}
	}
	return c.Settings.Validate()
}

type Result struct {
	RunDir       string
	ManifestPath string
	Manifest     types.Manifest
}

// Run exports the selected clips of Input into a fresh run directory under
// the output root and writes manifest.json next to the artifacts.
func Run(ctx context.Context, cfg Config) (Result, error) {
	logger := logging.WithComponent(cfg.Logger, "pipeline")

	set, warns, err := LoadClips(cfg.ClipsFile)
	if err != nil {
		return Result{}, err
	}
	for _, w := range warns {
		logger.Warn("caption outside clip", "clip_id", w.ClipID, "caption", w.Index, "detail", w.Message)
	}

	outDir := firstNonEmpty(cfg.OutDir, cfg.Settings.Export.OutDir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, err
	}
	unlock, err := lockOutDir(outDir)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	uc, err := newUsecase(ctx, cfg.Input, cfg.Settings, cfg.Gate, cfg.Logger)
	if err != nil {
		return Result{}, err
	}

	runOutDir := buildRunOutDir(outDir, cfg.Input, time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return Result{}, err
	}
	defer func() {
		_ = os.Remove(runOutDir) // only succeeds when nothing was written
	}()
	logger.Info("output run dir", "path", runOutDir, "clips", len(set.Clips))

	render, err := renderSettings(cfg.Settings)
	if err != nil {
		return Result{}, err
	}
	res, runErr := uc.Export(ctx, usecase.ExportInput{
		Clips:   set.Clips,
		ClipIDs: cfg.ClipIDs,
		All:     cfg.All,
		Style:   firstNonEmpty(cfg.Style, cfg.Settings.Export.Style),
		Format:  cfg.Settings.Export.Format,
		Render:  render,
		OutDir:  runOutDir,
		Sidecar: cfg.Sidecar || cfg.Settings.Export.Sidecar,
		OnEvent: cfg.OnEvent,
	})
	out := Result{RunDir: runOutDir, Manifest: res.Manifest}
	if runErr != nil && len(res.Manifest.Clips) == 0 {
		return out, runErr
	}
	if res.Manifest.Input == "" {
		res.Manifest.Input = filepath.Base(cfg.Input)
	}

	b, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return out, fmt.Errorf("marshal manifest: %w", err)
	}
	out.ManifestPath = filepath.Join(runOutDir, "manifest.json")
	if err := os.WriteFile(out.ManifestPath, b, 0o644); err != nil {
		return out, err
	}
	logger.Info("manifest written", "clips", len(res.Manifest.Clips), "path", out.ManifestPath)
	return out, runErr
}

type PreviewConfig struct {
	Input     string
	ClipsFile string
	ClipID    string
	Style     string
	// At is seconds into the clip.
	At       float64
	Out      string
	Settings config.Config
	Logger   *slog.Logger
}

// Preview writes one composited frame of a clip as a PNG file.
func Preview(ctx context.Context, cfg PreviewConfig) (usecase.SnapshotResult, error) {
	if cfg.Out == "" {
		return usecase.SnapshotResult{}, errors.New("output path is empty")
	}
	set, _, err := LoadClips(cfg.ClipsFile)
	if err != nil {
		return usecase.SnapshotResult{}, err
	}
	uc, err := newUsecase(ctx, cfg.Input, cfg.Settings, nil, cfg.Logger)
	if err != nil {
		return usecase.SnapshotResult{}, err
	}
	render, err := renderSettings(cfg.Settings)
	if err != nil {
		return usecase.SnapshotResult{}, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Out), 0o755); err != nil {
		return usecase.SnapshotResult{}, err
	}
	f, err := os.Create(cfg.Out)
	if err != nil {
		return usecase.SnapshotResult{}, err
	}
	res, err := uc.Snapshot(ctx, usecase.SnapshotInput{
		Clips:  set.Clips,
		ClipID: cfg.ClipID,
		Style:  firstNonEmpty(cfg.Style, cfg.Settings.Export.Style),
		At:     cfg.At,
		Render: render,
		Out:    f,
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(cfg.Out)
		return usecase.SnapshotResult{}, err
	}
	return res, nil
}

func newUsecase(ctx context.Context, input string, settings config.Config, gate session.Gate, logger *slog.Logger) (usecase.Usecase, error) {
	v := ffmpeg.New(ffmpeg.Options{
		FFmpeg:  settings.FFmpeg.FFmpeg,
		FFprobe: settings.FFmpeg.FFprobe,
		FFplay:  settings.FFmpeg.FFplay,
		Monitor: settings.FFmpeg.Monitor,
		Logger:  logger,
	})
	if err := v.CheckTools(ctx); err != nil {
		return usecase.Usecase{}, err
	}
	return usecase.New(usecase.Deps{
		Media: v.Media(input, settings.Render.FPS),
		Host:  v,
		NewCanvas: func(w, h int) usecase.Canvas {
			return raster.New(w, h)
		},
		Gate:   gate,
		Logger: logger,
	}), nil
}

func renderSettings(s config.Config) (usecase.Render, error) {
	bg, err := s.BackgroundColor()
	if err != nil {
		return usecase.Render{}, err
	}
	return usecase.Render{
		Width:      s.Render.Width,
		Height:     s.Render.Height,
		FPS:        s.Render.FPS,
		Background: bg,
	}, nil
}

// lockOutDir holds the output root for the whole export so two runs never
// write into it at once. The lock file stays behind between runs.
func lockOutDir(dir string) (func(), error) {
	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutDirLocked, dir)
	}
	return func() { _ = lock.Unlock() }, nil
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
