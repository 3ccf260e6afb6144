package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/ports/adapters/raster"
)

// Capture is a raster canvas whose frames are piped into an encoder.
type Capture struct {
	canvas *raster.Canvas
	fps    int

	mu   sync.Mutex
	sink io.Writer
}

func (a *Adapter) NewCapture(width, height, fps int) (ports.Capture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("capture size %dx%d", width, height)
	}
	return &Capture{canvas: raster.New(width, height), fps: fps}, nil
}

func (c *Capture) Surface() ports.Surface { return c.canvas }

// Emit writes the canvas pixels as one raw frame.
func (c *Capture) Emit() error {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink == nil {
		return errors.New("capture not connected to an encoder")
	}
	if _, err := sink.Write(c.canvas.Image().Pix); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *Capture) connect(w io.Writer) {
	c.mu.Lock()
	c.sink = w
	c.mu.Unlock()
}

func (c *Capture) Close() error {
	c.connect(nil)
	return c.canvas.Close()
}

// audioTap is the audio side of an export: the source window to mux and an
// optional ffplay monitor.
type audioTap struct {
	path   string
	window ports.Window

	monitor *exec.Cmd
	cancel  context.CancelFunc
	once    sync.Once
}

func (a *Adapter) TapAudio(ctx context.Context, src ports.DecodeSource, window ports.Window) (ports.AudioGraph, error) {
	meta, err := src.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	if !meta.HasAudio {
		return nil, ports.ErrNoAudioTrack
	}
	dec, ok := src.(*Decoder)
	if !ok {
		return nil, fmt.Errorf("audio tap needs an ffmpeg decoder, got %T", src)
	}
	tap := &audioTap{path: dec.media.path, window: window}
	if a.monitor {
		mctx, cancel := context.WithCancel(context.Background())
		cmd := exec.CommandContext(mctx, a.ffplay,
			"-nodisp",
			"-autoexit",
			"-loglevel", "error",
			"-ss", fmtSeconds(window.Start),
			"-t", fmtSeconds(window.End-window.Start),
			tap.path,
		)
		if err := cmd.Start(); err != nil {
			cancel()
			a.logger.Warn("audio monitor unavailable", "error", err)
		} else {
			tap.monitor, tap.cancel = cmd, cancel
		}
	}
	return tap, nil
}

func (t *audioTap) Close() error {
	t.once.Do(func() {
		if t.monitor != nil {
			t.cancel()
			_ = t.monitor.Wait()
		}
	})
	return nil
}

type codecs struct {
	video, audio string
	args         []string
}

var formats = map[string]codecs{
	"webm": {
		video: "libvpx-vp9",
		audio: "libopus",
		args: []string{
			"-c:v", "libvpx-vp9", "-b:v", "4M", "-deadline", "realtime", "-cpu-used", "8",
			"-c:a", "libopus", "-b:a", "128k",
			"-f", "webm",
		},
	},
	"mp4": {
		video: "libx264",
		audio: "aac",
		args: []string{
			"-c:v", "libx264", "-preset", "veryfast", "-crf", "18",
			"-c:a", "aac", "-b:a", "192k",
			"-movflags", "frag_keyframe+empty_moov",
			"-f", "mp4",
		},
	},
}

// Encoder muxes raw frames from a Capture with the source audio window and
// streams the container bytes back in chunks.
type Encoder struct {
	a       *Adapter
	capture *Capture
	audio   *audioTap
	opts    ports.EncoderOptions
	codecs  codecs

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  bytes.Buffer
	cancel  context.CancelFunc
	drained chan struct{}
}

func (a *Adapter) NewEncoder(ctx context.Context, capture ports.Capture, audio ports.AudioGraph, opts ports.EncoderOptions) (ports.Encoder, error) {
	cc, ok := formats[opts.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrUnsupportedFormat, opts.Format)
	}
	encs, err := a.Encoders(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{cc.video, cc.audio} {
		if !encs[name] {
			return nil, fmt.Errorf("%w: %s needs encoder %s", ports.ErrUnsupportedFormat, opts.Format, name)
		}
	}
	c, ok := capture.(*Capture)
	if !ok {
		return nil, fmt.Errorf("encoder needs an ffmpeg capture, got %T", capture)
	}
	tap, _ := audio.(*audioTap)
	if opts.FPS <= 0 {
		opts.FPS = c.fps
	}
	return &Encoder{a: a, capture: c, audio: tap, opts: opts, codecs: cc}, nil
}

func (e *Encoder) args() []string {
	w, h := e.capture.canvas.Size()
	return encodeArgs(w, h, e.opts, e.audio, e.codecs)
}

func encodeArgs(width, height int, opts ports.EncoderOptions, audio *audioTap, cc codecs) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(opts.FPS),
		"-i", "pipe:0",
	}
	if audio != nil {
		args = append(args,
			"-ss", fmtSeconds(opts.Window.Start),
			"-t", fmtSeconds(opts.Window.End-opts.Window.Start),
			"-i", audio.path,
			"-map", "0:v",
			"-map", "1:a",
		)
	} else {
		args = append(args, "-map", "0:v")
	}
	args = append(args, "-pix_fmt", "yuv420p")
	args = append(args, cc.args...)
	if audio != nil {
		args = append(args, "-shortest")
	}
	return append(args, "pipe:1")
}

// Start launches ffmpeg. The process outlives ctx: the export decides
// between Stop and Abort, so an interrupt never kills it mid-frame.
func (e *Encoder) Start(ctx context.Context, onChunk func([]byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(cctx, e.a.ffmpeg, e.args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg encode stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg encode stdout: %w", err)
	}
	cmd.Stderr = &e.stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("ffmpeg encode start: %w", err)
	}
	e.cmd, e.stdin, e.cancel = cmd, stdin, cancel
	e.drained = make(chan struct{})
	go func() {
		defer close(e.drained)
		buf := make([]byte, 64<<10)
		for {
			n, err := stdout.Read(buf)
			if n > 0 && onChunk != nil {
				onChunk(append([]byte(nil), buf[:n]...))
			}
			if err != nil {
				return
			}
		}
	}()
	e.capture.connect(stdin)
	e.a.logger.Debug("encoder started", "format", e.opts.Format, "fps", e.opts.FPS)
	return nil
}

// Stop closes the frame stream and waits for ffmpeg to flush the container.
func (e *Encoder) Stop() error {
	if e.cmd == nil {
		return errors.New("encoder not started")
	}
	e.capture.connect(nil)
	_ = e.stdin.Close()
	select {
	case <-e.drained:
	case <-time.After(2 * time.Minute):
		e.cancel()
		<-e.drained
	}
	err := e.cmd.Wait()
	e.cancel()
	if err != nil {
		return fmt.Errorf("ffmpeg encode: %w\n%s", err, e.stderr.String())
	}
	return nil
}

// Abort kills ffmpeg and discards whatever it produced.
func (e *Encoder) Abort() {
	if e.cmd == nil {
		return
	}
	e.capture.connect(nil)
	e.cancel()
	_ = e.stdin.Close()
	<-e.drained
	_ = e.cmd.Wait()
}

// Ticker returns the decoder itself for ffmpeg sources, which yields frames
// as fast as they decode. Other sources are paced in real time.
func (a *Adapter) Ticker(src ports.DecodeSource) ports.Ticker {
	if dec, ok := src.(*Decoder); ok {
		return dec
	}
	return &wallTicker{interval: time.Second / 30}
}

type wallTicker struct {
	interval time.Duration
	last     time.Time
}

func (t *wallTicker) Next(ctx context.Context) error {
	wait := time.Until(t.last.Add(t.interval))
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	t.last = time.Now()
	return nil
}
