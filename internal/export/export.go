// Package export renders a clip frame by frame into an encoded video while
// bridging the source audio into the capture stream.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/forPelevin/clipforge/internal/domain/compose"
	"github.com/forPelevin/clipforge/internal/domain/overlay"
	"github.com/forPelevin/clipforge/internal/domain/timeline"
	"github.com/forPelevin/clipforge/internal/logging"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

type State string

const (
	StateIdle       State = "idle"
	StatePreparing  State = "preparing"
	StateRendering  State = "rendering"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateError      State = "error"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError || s == StateCancelled
}

type EventType string

const (
	EventState    EventType = "state"
	EventProgress EventType = "progress"
	EventDone     EventType = "done"
	EventError    EventType = "error"
	EventCanceled EventType = "cancelled"
)

type Event struct {
	ExportID string
	Type     EventType
	State    State
	Progress float64
	Result   *Result
}

// Result is the terminal outcome of one export run. Bytes is only set for
// StateDone.
type Result struct {
	ExportID string
	State    State
	Bytes    []byte
	Filename string
	Err      error
}

const (
	DefaultFPS    = 30
	DefaultFormat = "webm"
)

// Request configures one export. Style is copied when the export is created
// so later selection changes do not affect a running export.
type Request struct {
	Clip       types.Clip
	Style      overlay.Style
	Media      ports.Media
	Host       ports.Host
	Compositor compose.Compositor
	Width      int
	Height     int
	FPS        int
	Format     string
	Logger     *slog.Logger
	OnEvent    func(Event)
}

// Export is a single export run and the handle callers use to observe or
// cancel it.
type Export struct {
	id     string
	req    Request
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	progress float64

	cancelRequested atomic.Bool
	started         atomic.Bool

	src     ports.DecodeSource
	graph   ports.AudioGraph
	capture ports.Capture
	enc     ports.Encoder
	ticker  ports.Ticker
	tickErr error

	chunkMu sync.Mutex
	chunks  bytes.Buffer

	releaseOnce sync.Once
	settleOnce  sync.Once
	result      Result
	done        chan struct{}
}

// New validates preconditions and returns an idle export. A missing clip or
// media handle is reported as ErrPrecondition without creating any state.
func New(req Request) (*Export, error) {
	if req.Clip.ID == "" {
		return nil, fmt.Errorf("%w: no clip selected", ErrPrecondition)
	}
	if req.Media == nil {
		return nil, fmt.Errorf("%w: no source media", ErrPrecondition)
	}
	if req.Host == nil {
		return nil, fmt.Errorf("%w: no host", ErrPrecondition)
	}
	if !(req.Clip.EndTime > req.Clip.StartTime) {
		return nil, fmt.Errorf("%w: clip %s has an empty window", ErrPrecondition, req.Clip.ID)
	}
	if req.Width <= 0 || req.Height <= 0 {
		req.Width, req.Height = compose.DefaultWidth, compose.DefaultHeight
	}
	if req.FPS <= 0 {
		req.FPS = DefaultFPS
	}
	if req.Format == "" {
		req.Format = DefaultFormat
	}
	if req.Style.ID == "" {
		req.Style = overlay.Default()
	}
	id := uuid.NewString()
	logger := logging.WithExportID(logging.WithComponent(req.Logger, "export"), id)
	return &Export{
		id:     id,
		req:    req,
		logger: logging.WithClipID(logger, req.Clip.ID),
		state:  StateIdle,
		done:   make(chan struct{}),
	}, nil
}

func (e *Export) ID() string { return e.id }

func (e *Export) Clip() types.Clip { return e.req.Clip }

func (e *Export) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Export) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Done is closed once the export reached a terminal state.
func (e *Export) Done() <-chan struct{} { return e.done }

// Wait blocks until the export finishes or ctx ends.
func (e *Export) Wait(ctx context.Context) (Result, error) {
	select {
	case <-e.done:
		return e.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Cancel asks a running export to stop. It is observed at the next frame
// opportunity. It reports false once the export is finalizing or finished.
func (e *Export) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateIdle, StatePreparing, StateRendering:
		e.cancelRequested.Store(true)
		return true
	}
	return false
}

func (e *Export) stopRequested(ctx context.Context) bool {
	return e.cancelRequested.Load() || ctx.Err() != nil
}

// Run drives the export to a terminal state and returns its result. Run may
// only be called once.
func (e *Export) Run(ctx context.Context) Result {
	if !e.started.CompareAndSwap(false, true) {
		return Result{ExportID: e.id, State: StateError, Err: errors.New("export already started")}
	}
	if err := e.prepare(ctx); err != nil {
		return e.failOrCancel(ctx, err)
	}
	if err := e.begin(ctx); err != nil {
		return e.failOrCancel(ctx, err)
	}
	for {
		if e.stopRequested(ctx) {
			return e.cancel()
		}
		if err := e.ticker.Next(ctx); err != nil {
			if ctx.Err() != nil {
				return e.cancel()
			}
			return e.fail(newError(ErrMediaLoad, StateRendering, err))
		}
		if !e.Tick() {
			break
		}
	}
	// An interrupt can break the encoder pipe before it is observed here, so
	// cancellation wins over a capture failure.
	switch {
	case e.stopRequested(ctx):
		return e.cancel()
	case e.tickErr != nil:
		return e.fail(newError(ErrCaptureFailed, StateRendering, e.tickErr))
	}
	return e.finish(ctx)
}

func (e *Export) prepare(ctx context.Context) error {
	e.setState(StatePreparing)
	clip := e.req.Clip

	src, err := e.req.Media.NewDecoder(ctx)
	if err != nil {
		return newError(ErrMediaLoad, StatePreparing, err)
	}
	e.src = src
	meta, err := src.Metadata(ctx)
	if err != nil {
		return newError(ErrMediaLoad, StatePreparing, err)
	}
	if meta.Duration > 0 && clip.StartTime >= meta.Duration {
		return newError(ErrMediaLoad, StatePreparing, fmt.Errorf("clip starts at %.2fs, media is %.2fs long", clip.StartTime, meta.Duration))
	}
	if err := src.Seek(clip.StartTime); err != nil {
		return newError(ErrMediaLoad, StatePreparing, fmt.Errorf("seek: %w", err))
	}

	window := ports.Window{Start: clip.StartTime, End: clip.EndTime}
	graph, err := e.req.Host.TapAudio(ctx, src, window)
	if err != nil {
		return newError(ErrMediaLoad, StatePreparing, fmt.Errorf("audio graph: %w", err))
	}
	e.graph = graph

	capture, err := e.req.Host.NewCapture(e.req.Width, e.req.Height, e.req.FPS)
	if err != nil {
		return newError(ErrCaptureFailed, StatePreparing, err)
	}
	e.capture = capture

	enc, err := e.req.Host.NewEncoder(ctx, capture, graph, ports.EncoderOptions{
		Format: e.req.Format,
		FPS:    e.req.FPS,
		Window: window,
	})
	if err != nil {
		return newError(ErrEncoderUnavailable, StatePreparing, err)
	}
	e.enc = enc
	e.ticker = e.req.Host.Ticker(src)
	e.logger.Info("export prepared",
		"source", e.req.Media.Name(),
		"source_width", meta.Width,
		"source_height", meta.Height,
		"format", e.req.Format,
		"style", e.req.Style.ID,
	)
	return nil
}

func (e *Export) begin(ctx context.Context) error {
	e.setState(StateRendering)
	if err := e.enc.Start(ctx, e.collect); err != nil {
		return newError(ErrEncoderUnavailable, StateRendering, err)
	}
	if err := e.src.Play(ctx); err != nil {
		return newError(ErrPlaybackRejected, StateRendering, err)
	}
	return nil
}

func (e *Export) collect(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	e.chunkMu.Lock()
	e.chunks.Write(chunk)
	e.chunkMu.Unlock()
}

// Tick runs one render step against the current decode position. It
// returns false once rendering should stop: on cancellation, when playback
// paused or ended, when the clip end is reached, or on a capture failure.
func (e *Export) Tick() bool {
	if e.cancelRequested.Load() || e.src == nil {
		return false
	}
	clip := e.req.Clip
	now := e.src.CurrentTime()
	if e.src.Paused() || e.src.Ended() || now >= clip.EndTime {
		return false
	}
	e.setProgress(timeline.Progress(clip, now))

	frame := e.src.Frame()
	if frame == nil {
		return true
	}
	e.req.Compositor.Compose(e.capture.Surface(), frame, clip, e.req.Style, now)
	if err := e.capture.Emit(); err != nil {
		e.tickErr = err
		return false
	}
	return true
}

func (e *Export) finish(ctx context.Context) Result {
	e.setState(StateFinalizing)
	if e.stopRequested(ctx) {
		return e.cancel()
	}
	e.src.Pause()
	if err := e.enc.Stop(); err != nil {
		e.enc = nil
		if ctx.Err() != nil {
			return e.cancel()
		}
		return e.fail(newError(ErrEncoderUnavailable, StateFinalizing, err))
	}
	e.enc = nil

	e.chunkMu.Lock()
	payload := append([]byte(nil), e.chunks.Bytes()...)
	e.chunks.Reset()
	e.chunkMu.Unlock()

	e.release()
	e.setProgress(100)
	return e.settle(Result{
		ExportID: e.id,
		State:    StateDone,
		Bytes:    payload,
		Filename: SuggestedFilename(e.req.Clip.Title, e.req.Format),
	})
}

func (e *Export) cancel() Result {
	if e.src != nil {
		e.src.Pause()
	}
	e.abort()
	e.release()
	return e.settle(Result{ExportID: e.id, State: StateCancelled, Err: ErrCancelled})
}

func (e *Export) fail(err error) Result {
	e.logger.Error("export failed", "state", e.State(), "error", err)
	if e.src != nil {
		e.src.Pause()
	}
	e.abort()
	e.release()
	return e.settle(Result{ExportID: e.id, State: StateError, Err: err})
}

func (e *Export) failOrCancel(ctx context.Context, err error) Result {
	if ctx.Err() != nil {
		return e.cancel()
	}
	return e.fail(err)
}

func (e *Export) abort() {
	if e.enc != nil {
		e.enc.Abort()
		e.enc = nil
	}
	e.chunkMu.Lock()
	e.chunks.Reset()
	e.chunkMu.Unlock()
}

// release closes every acquired resource exactly once.
func (e *Export) release() {
	e.releaseOnce.Do(func() {
		if e.capture != nil {
			if err := e.capture.Close(); err != nil {
				e.logger.Warn("close capture", "error", err)
			}
		}
		if e.graph != nil {
			if err := e.graph.Close(); err != nil {
				e.logger.Warn("close audio graph", "error", err)
			}
		}
		if e.src != nil {
			if err := e.src.Close(); err != nil {
				e.logger.Warn("close decode source", "error", err)
			}
		}
	})
}

func (e *Export) settle(res Result) Result {
	e.settleOnce.Do(func() {
		e.result = res
		e.setState(res.State)
		e.logger.Info("export finished", "state", res.State, "bytes", len(res.Bytes))
		ev := Event{ExportID: e.id, State: res.State, Progress: e.Progress(), Result: &e.result}
		switch res.State {
		case StateDone:
			ev.Type = EventDone
		case StateCancelled:
			ev.Type = EventCanceled
		default:
			ev.Type = EventError
		}
		e.emit(ev)
		close(e.done)
	})
	return e.result
}

func (e *Export) setState(s State) {
	e.mu.Lock()
	if e.state == s {
		e.mu.Unlock()
		return
	}
	e.state = s
	p := e.progress
	e.mu.Unlock()
	e.logger.Debug("export state", "state", s)
	if !s.Terminal() {
		e.emit(Event{ExportID: e.id, Type: EventState, State: s, Progress: p})
	}
}

// setProgress only ever raises the reported progress.
func (e *Export) setProgress(p float64) {
	e.mu.Lock()
	if p <= e.progress {
		e.mu.Unlock()
		return
	}
	e.progress = p
	s := e.state
	e.mu.Unlock()
	e.emit(Event{ExportID: e.id, Type: EventProgress, State: s, Progress: p})
}

func (e *Export) emit(ev Event) {
	if e.req.OnEvent != nil {
		e.req.OnEvent(ev)
	}
}
