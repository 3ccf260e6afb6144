package testsupport

import (
	"context"
	"fmt"
	"sync"

	"github.com/forPelevin/clipforge/internal/ports"
)

// Capture records emitted frames and forwards one chunk per frame to a
// started encoder.
type Capture struct {
	Surf    *Surface
	Frames  int
	EmitErr error
	Closed  int

	enc *Encoder
}

func (c *Capture) Surface() ports.Surface { return c.Surf }

func (c *Capture) Emit() error {
	if c.EmitErr != nil {
		return c.EmitErr
	}
	c.Frames++
	if c.enc != nil {
		c.enc.deliver([]byte{byte(c.Frames)})
	}
	return nil
}

func (c *Capture) Close() error {
	c.Closed++
	return nil
}

type AudioGraph struct {
	Window ports.Window
	Closed int
}

func (g *AudioGraph) Close() error {
	g.Closed++
	return nil
}

// Encoder appends a trailer chunk on Stop.
type Encoder struct {
	Opts     ports.EncoderOptions
	StartErr error
	StopErr  error
	Trailer  []byte

	mu      sync.Mutex
	onChunk func([]byte)
	Started int
	Stopped int
	Aborted int
}

func (e *Encoder) deliver(b []byte) {
	e.mu.Lock()
	cb := e.onChunk
	e.mu.Unlock()
	if cb != nil {
		cb(b)
	}
}

func (e *Encoder) Start(ctx context.Context, onChunk func([]byte)) error {
	if e.StartErr != nil {
		return e.StartErr
	}
	e.mu.Lock()
	e.onChunk = onChunk
	e.Started++
	e.mu.Unlock()
	return nil
}

func (e *Encoder) Stop() error {
	e.Stopped++
	if e.StopErr != nil {
		return e.StopErr
	}
	if len(e.Trailer) > 0 {
		e.deliver(e.Trailer)
	}
	e.mu.Lock()
	e.onChunk = nil
	e.mu.Unlock()
	return nil
}

func (e *Encoder) Abort() {
	e.mu.Lock()
	e.onChunk = nil
	e.Aborted++
	e.mu.Unlock()
}

// Host builds fakes and keeps them for inspection.
type Host struct {
	CaptureErr error
	TapErr     error
	EncoderErr error
	// Step is the clock advance per tick; 1/30s when zero.
	Step   float64
	OnTick func(n int)

	Capture *Capture
	Graph   *AudioGraph
	Encoder *Encoder
	Tick    *Ticker
}

func (h *Host) NewCapture(width, height, fps int) (ports.Capture, error) {
	if h.CaptureErr != nil {
		return nil, h.CaptureErr
	}
	h.Capture = &Capture{Surf: NewSurface(width, height)}
	return h.Capture, nil
}

func (h *Host) TapAudio(ctx context.Context, src ports.DecodeSource, window ports.Window) (ports.AudioGraph, error) {
	if h.TapErr != nil {
		return nil, h.TapErr
	}
	meta, err := src.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	if !meta.HasAudio {
		return nil, ports.ErrNoAudioTrack
	}
	h.Graph = &AudioGraph{Window: window}
	return h.Graph, nil
}

func (h *Host) NewEncoder(ctx context.Context, capture ports.Capture, audio ports.AudioGraph, opts ports.EncoderOptions) (ports.Encoder, error) {
	if h.EncoderErr != nil {
		return nil, h.EncoderErr
	}
	if opts.Format != "webm" && opts.Format != "mp4" {
		return nil, fmt.Errorf("%w: %s", ports.ErrUnsupportedFormat, opts.Format)
	}
	h.Encoder = &Encoder{Opts: opts, Trailer: []byte("end")}
	if c, ok := capture.(*Capture); ok {
		c.enc = h.Encoder
	}
	return h.Encoder, nil
}

func (h *Host) Ticker(src ports.DecodeSource) ports.Ticker {
	step := h.Step
	if step == 0 {
		step = 1.0 / 30
	}
	d, _ := src.(*Decoder)
	h.Tick = &Ticker{Src: d, Step: step, OnTick: h.OnTick}
	return h.Tick
}

var _ ports.Host = (*Host)(nil)
