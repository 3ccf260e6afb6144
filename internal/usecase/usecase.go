package usecase

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forPelevin/clipforge/internal/domain/compose"
	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/export"
	"github.com/forPelevin/clipforge/internal/logging"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/session"
	"github.com/forPelevin/clipforge/internal/types"
)

var ErrUnknownClip = errors.New("unknown clip")

// Canvas is a surface that can be saved as an image.
type Canvas interface {
	ports.Surface
	WritePNG(w io.Writer) error
}

type Deps struct {
	Media     ports.Media
	Host      ports.Host
	NewCanvas func(width, height int) Canvas
	Gate      session.Gate
	Logger    *slog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

// Render is the output canvas geometry.
type Render struct {
	Width      int
	Height     int
	FPS        int
	Background color.Color
}

type ExportInput struct {
	Clips []types.Clip
	// ClipIDs selects the clips to export. Empty exports the first clip of
	// the set, the one a session selects on open, unless All is set.
	ClipIDs []string
	All     bool
	Style   string
	Format  string
	Render  Render
	OutDir  string
	Sidecar bool
	OnEvent func(export.Event)
}

type ExportResult struct {
	Manifest types.Manifest
}

// Export renders the selected clips one after another, in timeline order,
// and writes each artifact into OutDir. It stops at the first clip that does
// not finish; artifacts already written are kept and listed in the manifest.
func (u Usecase) Export(ctx context.Context, in ExportInput) (ExportResult, error) {
	selected, err := selectClips(in.Clips, in.ClipIDs, in.All)
	if err != nil {
		return ExportResult{}, err
	}
	s := u.session(in.Clips, in.Render, in.Format, in.OnEvent)
	if err := s.Open(ctx); err != nil {
		return ExportResult{}, err
	}
	defer s.Close()
	if in.Style != "" {
		if err := s.SelectStyle(in.Style); err != nil {
			return ExportResult{}, err
		}
	}
	style := s.Style()
	logger := logging.WithComponent(u.d.Logger, "usecase")

	m := types.Manifest{Input: u.d.Media.Name(), Style: string(style.ID)}
	used := map[string]bool{}
	for _, clip := range selected {
		s.SelectClip(clip.ID)
		exp, err := s.StartExport(ctx)
		if err != nil {
			return ExportResult{Manifest: m}, fmt.Errorf("export clip %s: %w", clip.ID, err)
		}
		<-exp.Done()
		res, _ := exp.Wait(context.Background())
		if res.State != export.StateDone {
			return ExportResult{Manifest: m}, fmt.Errorf("export clip %s: %w", clip.ID, res.Err)
		}

		name := uniqueName(res.Filename, clip.ID, used)
		if err := writeFile(filepath.Join(in.OutDir, name), res.Bytes); err != nil {
			return ExportResult{Manifest: m}, err
		}
		entry := types.ManifestClip{
			ID:       clip.ID,
			Title:    clip.Title,
			StartSec: clip.StartTime,
			EndSec:   clip.EndTime,
			File:     name,
			Bytes:    len(res.Bytes),
			ExportID: res.ExportID,
		}
		if in.Sidecar {
			subs := strings.TrimSuffix(name, filepath.Ext(name)) + ".ass"
			ass := subtitles.RenderASS(clip, style, in.Render.Width, in.Render.Height)
			if err := writeFile(filepath.Join(in.OutDir, subs), []byte(ass)); err != nil {
				return ExportResult{Manifest: m}, err
			}
			entry.Subtitles = subs
		}
		m.Clips = append(m.Clips, entry)
		logger.Info("clip exported", "clip_id", clip.ID, "file", name, "bytes", len(res.Bytes))
	}
	return ExportResult{Manifest: m}, nil
}

type SnapshotInput struct {
	Clips []types.Clip
	// ClipID defaults to the first clip.
	ClipID string
	Style  string
	// At is seconds into the clip.
	At     float64
	Render Render
	Out    io.Writer
}

type SnapshotResult struct {
	ClipID string
	Frame  compose.Frame
}

// Snapshot composites a single preview frame and writes it as PNG to Out.
func (u Usecase) Snapshot(ctx context.Context, in SnapshotInput) (SnapshotResult, error) {
	if u.d.NewCanvas == nil {
		return SnapshotResult{}, errors.New("no canvas factory")
	}
	s := u.session(in.Clips, in.Render, "", nil)
	if err := s.Open(ctx); err != nil {
		return SnapshotResult{}, err
	}
	defer s.Close()
	if in.ClipID != "" && !s.SelectClip(in.ClipID) {
		return SnapshotResult{}, fmt.Errorf("%w %q", ErrUnknownClip, in.ClipID)
	}
	clip, ok := s.Clip()
	if !ok {
		return SnapshotResult{}, fmt.Errorf("%w: no clips", ErrUnknownClip)
	}
	if in.Style != "" {
		if err := s.SelectStyle(in.Style); err != nil {
			return SnapshotResult{}, err
		}
	}
	if err := s.Seek(snapshotOffset(clip, in.At, in.Render.FPS)); err != nil {
		return SnapshotResult{}, err
	}
	if err := s.SetPlaying(ctx, true); err != nil {
		return SnapshotResult{}, err
	}
	_, err := s.Step(ctx)
	_ = s.SetPlaying(ctx, false)
	if err != nil {
		return SnapshotResult{}, fmt.Errorf("decode frame: %w", err)
	}

	w, h := canvasSize(in.Render)
	canvas := u.d.NewCanvas(w, h)
	if c, ok := canvas.(io.Closer); ok {
		defer c.Close()
	}
	frame, ok := s.Render(canvas)
	if !ok {
		return SnapshotResult{}, fmt.Errorf("no frame at %.2fs of clip %s", in.At, clip.ID)
	}
	if err := canvas.WritePNG(in.Out); err != nil {
		return SnapshotResult{}, fmt.Errorf("write png: %w", err)
	}
	return SnapshotResult{ClipID: clip.ID, Frame: frame}, nil
}

func (u Usecase) session(clips []types.Clip, r Render, format string, onEvent func(export.Event)) *session.Session {
	w, h := canvasSize(r)
	return session.New(session.Options{
		Clips:      clips,
		Media:      u.d.Media,
		Host:       u.d.Host,
		Compositor: compose.Compositor{Background: r.Background},
		Width:      w,
		Height:     h,
		FPS:        r.FPS,
		Format:     format,
		Gate:       u.d.Gate,
		Logger:     u.d.Logger,
		OnExport:   onEvent,
	})
}

// snapshotOffset keeps at within the clip and at least one frame before its
// end, where the preview would loop back to the start.
func snapshotOffset(clip types.Clip, at float64, fps int) float64 {
	if fps <= 0 {
		fps = export.DefaultFPS
	}
	last := clip.Duration() - 1/float64(fps)
	if at > last {
		at = last
	}
	if at < 0 {
		at = 0
	}
	return at
}

func canvasSize(r Render) (int, int) {
	if r.Width <= 0 || r.Height <= 0 {
		return compose.DefaultWidth, compose.DefaultHeight
	}
	return r.Width, r.Height
}

func selectClips(clips []types.Clip, ids []string, all bool) ([]types.Clip, error) {
	var out []types.Clip
	switch {
	case len(ids) == 0 && all:
		out = append(out, clips...)
	case len(ids) == 0 && len(clips) > 0:
		out = append(out, clips[0])
	default:
		for _, id := range ids {
			c, ok := types.FindClip(clips, id)
			if !ok {
				return nil, fmt.Errorf("%w %q", ErrUnknownClip, id)
			}
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no clips", ErrUnknownClip)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

// uniqueName keeps artifact names distinct when clip titles collide.
func uniqueName(name, clipID string, used map[string]bool) string {
	if used[name] {
		ext := filepath.Ext(name)
		name = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(name, ext), clipID, ext)
	}
	used[name] = true
	return name
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
