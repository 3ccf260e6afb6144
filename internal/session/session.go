// Package session is the controller behind an editing session: it owns the
// preview decoder, the clip and style selection, and the running export.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/forPelevin/clipforge/internal/domain/captions"
	"github.com/forPelevin/clipforge/internal/domain/compose"
	"github.com/forPelevin/clipforge/internal/domain/overlay"
	"github.com/forPelevin/clipforge/internal/domain/timeline"
	"github.com/forPelevin/clipforge/internal/export"
	"github.com/forPelevin/clipforge/internal/logging"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

// ErrExportRunning is returned when starting a second active export.
var ErrExportRunning = errors.New("export already running")

// Gate is a caller-owned capability checked before an export starts and
// notified after one completes.
type Gate interface {
	Allow() error
	Record()
}

type Options struct {
	Clips      []types.Clip
	Media      ports.Media
	Host       ports.Host
	Compositor compose.Compositor
	Width      int
	Height     int
	FPS        int
	Format     string
	Gate       Gate
	Logger     *slog.Logger
	// OnCaption fires when the active preview caption changes.
	OnCaption func(text string)
	// OnExport receives every event of every export started by the session.
	OnExport func(export.Event)
}

// Snapshot is the preview state after one tick.
type Snapshot struct {
	ClipID   string
	Time     float64
	Relative float64
	Progress float64
	Caption  string
	Playing  bool
	Looped   bool
}

type Session struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	preview ports.DecodeSource
	ticker  ports.Ticker
	clip    *types.Clip
	style   overlay.Style
	playing bool
	caption string
	last    Snapshot
	export  *export.Export
	// starting holds the export slot while StartExport builds the next run.
	starting bool
}

func New(opts Options) *Session {
	return &Session{
		opts:   opts,
		logger: logging.WithComponent(opts.Logger, "session"),
		style:  overlay.Default(),
	}
}

// Open builds the preview decoder, waits for its metadata and selects the
// first clip.
func (s *Session) Open(ctx context.Context) error {
	if s.opts.Media == nil {
		return fmt.Errorf("%w: no source media", export.ErrPrecondition)
	}
	src, err := s.opts.Media.NewDecoder(ctx)
	if err != nil {
		return fmt.Errorf("preview decoder: %w", err)
	}
	if _, err := src.Metadata(ctx); err != nil {
		_ = src.Close()
		return fmt.Errorf("preview metadata: %w", err)
	}
	s.mu.Lock()
	s.preview = src
	s.mu.Unlock()
	if len(s.opts.Clips) > 0 {
		s.SelectClip(s.opts.Clips[0].ID)
	}
	return nil
}

// Close releases the preview decoder and cancels any running export.
func (s *Session) Close() error {
	s.mu.Lock()
	src := s.preview
	exp := s.export
	s.preview = nil
	s.ticker = nil
	s.mu.Unlock()
	if exp != nil {
		exp.Cancel()
	}
	if src != nil {
		return src.Close()
	}
	return nil
}

func (s *Session) Clips() []types.Clip { return s.opts.Clips }

// Clip returns the selected clip.
func (s *Session) Clip() (types.Clip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return types.Clip{}, false
	}
	return *s.clip, true
}

func (s *Session) Style() overlay.Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

// SelectClip switches the preview to clip id, rewinding the media clock to
// its start. An unknown id clears the selection and reports false.
func (s *Session) SelectClip(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	clip, ok := types.FindClip(s.opts.Clips, id)
	s.caption = ""
	s.last = Snapshot{}
	if !ok {
		s.clip = nil
		s.logger.Warn("clip not found", "clip_id", id)
		return false
	}
	s.clip = &clip
	if warns, err := captions.Validate(clip); err != nil {
		s.logger.Warn("invalid clip", "clip_id", id, "error", err)
	} else {
		for _, w := range warns {
			s.logger.Warn("caption outside clip window", "clip_id", id, "caption", w.Index, "detail", w.Message)
		}
	}
	if s.preview != nil {
		if _, err := timeline.Reset(s.preview, clip.StartTime); err != nil {
			s.logger.Warn("rewind preview", "clip_id", id, "error", err)
		}
	}
	s.last = Snapshot{ClipID: clip.ID, Time: clip.StartTime, Playing: s.playing}
	return true
}

// SelectStyle changes the overlay style used by preview and future exports.
func (s *Session) SelectStyle(id string) error {
	st, err := overlay.Lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.style = st
	s.mu.Unlock()
	return nil
}

// SetPlaying starts or pauses preview playback. A rejected play leaves the
// session paused.
func (s *Session) SetPlaying(ctx context.Context, playing bool) error {
	s.mu.Lock()
	src := s.preview
	s.mu.Unlock()
	if src == nil {
		return nil
	}
	if !playing {
		src.Pause()
		s.mu.Lock()
		s.playing = false
		s.mu.Unlock()
		return nil
	}
	if err := src.Play(ctx); err != nil {
		s.logger.Warn("preview play failed", "error", err)
		return fmt.Errorf("preview play: %w", err)
	}
	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()
	return nil
}

func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Seek moves the preview to rel seconds into the selected clip, clamped to
// the clip window.
func (s *Session) Seek(rel float64) error {
	s.mu.Lock()
	src, clip := s.preview, s.clip
	s.mu.Unlock()
	if src == nil || clip == nil {
		return nil
	}
	if rel < 0 {
		rel = 0
	}
	if d := clip.Duration(); rel > d {
		rel = d
	}
	if err := src.Seek(clip.StartTime + rel); err != nil {
		return fmt.Errorf("preview seek: %w", err)
	}
	return nil
}

// Tick runs one step of the preview sync loop: read the clock, loop at the
// clip end, resolve the caption. Without a selected clip it returns an
// empty snapshot.
func (s *Session) Tick() Snapshot {
	s.mu.Lock()
	src, clip := s.preview, s.clip
	if src == nil || clip == nil {
		s.mu.Unlock()
		return Snapshot{}
	}
	now, looped, err := timeline.Loop(src, *clip)
	if err != nil {
		s.logger.Warn("preview loop", "clip_id", clip.ID, "error", err)
	}
	snap := Snapshot{
		ClipID:   clip.ID,
		Time:     now,
		Relative: timeline.Relative(*clip, now),
		Progress: timeline.Progress(*clip, now),
		Caption:  captions.Text(*clip, timeline.Relative(*clip, now)),
		Playing:  s.playing,
		Looped:   looped,
	}
	changed := snap.Caption != s.caption
	s.caption = snap.Caption
	s.last = snap
	s.mu.Unlock()

	if changed && s.opts.OnCaption != nil {
		s.opts.OnCaption(snap.Caption)
	}
	return snap
}

// Last returns the snapshot from the latest Tick.
func (s *Session) Last() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Step waits for the next frame opportunity on the preview decoder and
// runs one Tick against it.
func (s *Session) Step(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	src := s.preview
	if src != nil && s.ticker == nil && s.opts.Host != nil {
		s.ticker = s.opts.Host.Ticker(src)
	}
	ticker := s.ticker
	s.mu.Unlock()
	if ticker == nil {
		return Snapshot{}, fmt.Errorf("%w: session not open", export.ErrPrecondition)
	}
	if err := ticker.Next(ctx); err != nil {
		return Snapshot{}, err
	}
	return s.Tick(), nil
}

// Preview runs the sync loop until playback stops, the media ends or ctx
// ends. The clip loops while it plays.
func (s *Session) Preview(ctx context.Context) error {
	for s.Playing() {
		if _, err := s.Step(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		if s.preview == nil || s.preview.Paused() || s.preview.Ended() {
			s.playing = false
		}
		s.mu.Unlock()
	}
	return nil
}

// Render composites the current preview frame onto dst. It reports false
// when there is no clip or frame to show.
func (s *Session) Render(dst ports.Surface) (compose.Frame, bool) {
	s.mu.Lock()
	src, clip, style := s.preview, s.clip, s.style
	s.mu.Unlock()
	if src == nil || clip == nil {
		return compose.Frame{}, false
	}
	frame := src.Frame()
	if frame == nil {
		return compose.Frame{}, false
	}
	return s.opts.Compositor.Compose(dst, frame, *clip, style, src.CurrentTime()), true
}

// StartExport stops the preview and launches an export of the selected clip
// with the current style. The export runs until it finishes, is cancelled,
// or ctx ends.
func (s *Session) StartExport(ctx context.Context) (*export.Export, error) {
	s.mu.Lock()
	if s.starting || (s.export != nil && !s.export.State().Terminal()) {
		s.mu.Unlock()
		return nil, ErrExportRunning
	}
	s.starting = true
	clip, style := s.clip, s.style
	s.mu.Unlock()

	exp, err := s.newExport(ctx, clip, style)
	s.mu.Lock()
	s.starting = false
	if err == nil {
		s.export = exp
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	go func() {
		res := exp.Run(ctx)
		if res.State == export.StateDone && s.opts.Gate != nil {
			s.opts.Gate.Record()
		}
	}()
	return exp, nil
}

func (s *Session) newExport(ctx context.Context, clip *types.Clip, style overlay.Style) (*export.Export, error) {
	if clip == nil {
		return nil, fmt.Errorf("%w: no clip selected", export.ErrPrecondition)
	}
	if s.opts.Gate != nil {
		if err := s.opts.Gate.Allow(); err != nil {
			return nil, err
		}
	}
	exp, err := export.New(export.Request{
		Clip:       *clip,
		Style:      style,
		Media:      s.opts.Media,
		Host:       s.opts.Host,
		Compositor: s.opts.Compositor,
		Width:      s.opts.Width,
		Height:     s.opts.Height,
		FPS:        s.opts.FPS,
		Format:     s.opts.Format,
		Logger:     s.opts.Logger,
		OnEvent:    s.opts.OnExport,
	})
	if err != nil {
		return nil, err
	}
	if err := s.SetPlaying(ctx, false); err != nil {
		return nil, err
	}
	return exp, nil
}

// CancelExport cancels exp if it is the session's running export.
func (s *Session) CancelExport(exp *export.Export) bool {
	s.mu.Lock()
	current := s.export
	s.mu.Unlock()
	if exp == nil || exp != current {
		return false
	}
	return exp.Cancel()
}
