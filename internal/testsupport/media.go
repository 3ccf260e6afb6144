package testsupport

import (
	"context"
	"image"
	"sync"

	"github.com/forPelevin/clipforge/internal/ports"
)

// Clock is a bare media clock.
type Clock struct {
	T       float64
	Seeks   int
	SeekErr error
}

func (c *Clock) CurrentTime() float64 { return c.T }

func (c *Clock) Seek(t float64) error {
	if c.SeekErr != nil {
		return c.SeekErr
	}
	c.T = t
	c.Seeks++
	return nil
}

// Decoder is a scripted decode source. Its clock only moves through Seek
// and Advance.
type Decoder struct {
	mu sync.Mutex

	T       float64
	Seeks   int
	Meta    ports.Metadata
	MetaErr error
	PlayErr error
	Img     image.Image

	Plays   int
	Pauses  int
	Closed  int
	playing bool
	ended   bool
}

// NewDecoder returns a 1920x1080 decoder over two minutes of media with audio.
func NewDecoder() *Decoder {
	return &Decoder{
		Meta: ports.Metadata{Width: 1920, Height: 1080, Duration: 120, HasAudio: true},
		Img:  image.NewRGBA(image.Rect(0, 0, 1920, 1080)),
	}
}

func (d *Decoder) CurrentTime() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.T
}

func (d *Decoder) Seek(t float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.T = t
	d.Seeks++
	d.ended = false
	return nil
}

func (d *Decoder) Metadata(ctx context.Context) (ports.Metadata, error) {
	if d.MetaErr != nil {
		return ports.Metadata{}, d.MetaErr
	}
	return d.Meta, ctx.Err()
}

func (d *Decoder) Play(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Plays++
	if d.PlayErr != nil {
		return d.PlayErr
	}
	d.playing = true
	return nil
}

func (d *Decoder) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Pauses++
	d.playing = false
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

func (d *Decoder) Frame() image.Image { return d.Img }

func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed++
	d.playing = false
	return nil
}

// Advance moves a playing clock forward by dt, ending at the media duration.
func (d *Decoder) Advance(dt float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.playing {
		return
	}
	d.T += dt
	if d.Meta.Duration > 0 && d.T >= d.Meta.Duration {
		d.T = d.Meta.Duration
		d.ended = true
		d.playing = false
	}
}

// Media hands out a fresh Decoder per call.
type Media struct {
	Err     error
	Factory func() *Decoder

	mu   sync.Mutex
	Made []*Decoder
}

func (m *Media) Name() string { return "fake.mp4" }

func (m *Media) NewDecoder(ctx context.Context) (ports.DecodeSource, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	factory := m.Factory
	if factory == nil {
		factory = NewDecoder
	}
	d := factory()
	m.mu.Lock()
	m.Made = append(m.Made, d)
	m.mu.Unlock()
	return d, nil
}

// Last returns the most recently created decoder.
func (m *Media) Last() *Decoder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Made) == 0 {
		return nil
	}
	return m.Made[len(m.Made)-1]
}

// Ticker advances the decoder by Step on every frame opportunity. OnTick runs
// before the clock moves and sees the 1-based tick number.
type Ticker struct {
	Src    *Decoder
	Step   float64
	OnTick func(n int)
	Err    error

	N int
}

func (t *Ticker) Next(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.Err != nil {
		return t.Err
	}
	t.N++
	if t.OnTick != nil {
		t.OnTick(t.N)
	}
	if t.Src != nil {
		t.Src.Advance(t.Step)
	}
	return nil
}

var (
	_ ports.DecodeSource = (*Decoder)(nil)
	_ ports.Media        = (*Media)(nil)
	_ ports.Ticker       = (*Ticker)(nil)
)
