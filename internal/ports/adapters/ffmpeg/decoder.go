package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/forPelevin/clipforge/internal/ports"
)

// Media is a source file on disk. Each decoder runs its own ffmpeg process.
type Media struct {
	a    *Adapter
	path string
	fps  int

	once sync.Once
	meta ports.Metadata
	err  error
}

var _ ports.Media = (*Media)(nil)

// Media opens path as a source decoded at fps frames per second.
func (a *Adapter) Media(path string, fps int) *Media {
	if fps <= 0 {
		fps = 30
	}
	return &Media{a: a, path: path, fps: fps}
}

func (m *Media) Name() string { return filepath.Base(m.path) }

func (m *Media) Path() string { return m.path }

func (m *Media) metadata(ctx context.Context) (ports.Metadata, error) {
	m.once.Do(func() {
		m.meta, m.err = m.a.Probe(ctx, m.path)
	})
	return m.meta, m.err
}

func (m *Media) NewDecoder(ctx context.Context) (ports.DecodeSource, error) {
	if _, err := m.metadata(ctx); err != nil {
		return nil, err
	}
	return &Decoder{media: m}, nil
}

// Decoder streams raw RGBA frames from an ffmpeg process. Its clock is the
// seek origin plus the number of frames read, so it only advances as frames
// are consumed through Next.
type Decoder struct {
	media *Media

	mu      sync.Mutex
	origin  float64
	read    int
	playing bool
	ended   bool
	closed  bool
	frame   *image.RGBA
	proc    *decodeProc
}

var (
	_ ports.DecodeSource = (*Decoder)(nil)
	_ ports.Ticker       = (*Decoder)(nil)
)

type decodeProc struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	cancel context.CancelFunc
}

func (p *decodeProc) stop() {
	p.cancel()
	_ = p.stdout.Close()
	_ = p.cmd.Wait()
}

func (d *Decoder) Metadata(ctx context.Context) (ports.Metadata, error) {
	return d.media.metadata(ctx)
}

func (d *Decoder) CurrentTime() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now()
}

func (d *Decoder) now() float64 {
	if d.read == 0 {
		return d.origin
	}
	return d.origin + float64(d.read-1)/float64(d.media.fps)
}

// Seek drops the running process. Decoding resumes from t on the next
// frame request.
func (d *Decoder) Seek(t float64) error {
	if t < 0 {
		return fmt.Errorf("negative seek %.3f", t)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("decoder closed")
	}
	d.stopLocked()
	d.origin = t
	d.read = 0
	d.ended = false
	d.frame = nil
	return nil
}

func (d *Decoder) Play(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("%w: decoder closed", ports.ErrPlaybackRejected)
	}
	if d.proc == nil {
		if err := d.startLocked(); err != nil {
			return fmt.Errorf("%w: %v", ports.ErrPlaybackRejected, err)
		}
	}
	d.playing = true
	return nil
}

func (d *Decoder) Pause() {
	d.mu.Lock()
	d.playing = false
	d.mu.Unlock()
}

func (d *Decoder) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.playing
}

func (d *Decoder) Ended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ended
}

// Frame returns the last decoded frame. It is overwritten by the next call
// to Next.
func (d *Decoder) Frame() image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frame == nil {
		return nil
	}
	return d.frame
}

func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.closed = true
	d.playing = false
	return nil
}

// Next decodes the next frame while playing. End of stream marks the
// decoder ended and paused.
func (d *Decoder) Next(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	if !d.playing || d.ended {
		d.mu.Unlock()
		return nil
	}
	if d.proc == nil {
		if err := d.startLocked(); err != nil {
			d.mu.Unlock()
			return err
		}
	}
	proc := d.proc
	meta := d.media.meta
	buf := d.frame
	d.mu.Unlock()

	if buf == nil {
		buf = image.NewRGBA(image.Rect(0, 0, meta.Width, meta.Height))
	}
	_, err := io.ReadFull(proc.stdout, buf.Pix)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.proc != proc {
		// Seek or Close replaced the process mid-read.
		return nil
	}
	switch {
	case err == nil:
		d.frame = buf
		d.read++
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		d.ended = true
		d.playing = false
		d.stopLocked()
		return nil
	}
	d.stopLocked()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("ffmpeg decode %s: %w\n%s", d.media.Name(), err, proc.stderr.String())
}

func (d *Decoder) startLocked() error {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, d.media.a.ffmpeg, decodeArgs(d.media.path, d.origin, d.media.fps, d.media.meta.Width, d.media.meta.Height)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg decode pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("ffmpeg decode start: %w", err)
	}
	d.proc = &decodeProc{cmd: cmd, stdout: stdout, stderr: &stderr, cancel: cancel}
	return nil
}

func (d *Decoder) stopLocked() {
	if d.proc != nil {
		d.proc.stop()
		d.proc = nil
	}
}

func decodeArgs(path string, start float64, fps, width, height int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmtSeconds(start),
		"-i", path,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-r", strconv.Itoa(fps),
		"pipe:1",
	}
}
