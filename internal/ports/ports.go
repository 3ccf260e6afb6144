package ports

import (
	"context"
	"errors"
	"image"
	"image/color"
)

var (
	// ErrPlaybackRejected is returned by DecodeSource.Play when the host
	// declines to start playback.
	ErrPlaybackRejected = errors.New("playback rejected")
	// ErrNoAudioTrack is returned by Host.TapAudio when the media has no audio.
	ErrNoAudioTrack = errors.New("media has no audio track")
	// ErrUnsupportedFormat is returned by Host.NewEncoder for unknown or
	// unavailable container/codec combinations.
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// Rect is a floating point rectangle in surface coordinates.
type Rect struct {
	X, Y, W, H float64
}

// FontFamily is a coarse font class; surfaces map it to a concrete face.
type FontFamily string

const (
	FontSans  FontFamily = "sans"
	FontSerif FontFamily = "serif"
	FontMono  FontFamily = "mono"
)

type Font struct {
	Family FontFamily
	Weight int
	Italic bool
	Size   float64
}

// TextMetrics describes the extent of a string around its middle baseline.
type TextMetrics struct {
	Width   float64
	Ascent  float64
	Descent float64
}

// Height is the full vertical extent of the measured text.
func (m TextMetrics) Height() float64 { return m.Ascent + m.Descent }

// Shadow applies to every fill or stroke until cleared. The zero value
// disables shadows.
type Shadow struct {
	Color   color.Color
	Blur    float64
	OffsetX float64
	OffsetY float64
}

// Enabled reports whether drawing with s produces a visible shadow.
func (s Shadow) Enabled() bool {
	if s.Color == nil {
		return false
	}
	_, _, _, a := s.Color.RGBA()
	return a > 0 && (s.Blur > 0 || s.OffsetX != 0 || s.OffsetY != 0)
}

// Surface is a 2-D drawing target. Text is drawn centered horizontally on x
// with its middle on y.
type Surface interface {
	Size() (width, height int)
	FillRect(r Rect, c color.Color)
	DrawImage(img image.Image, dst Rect)
	SetFont(f Font)
	MeasureText(text string) TextMetrics
	FillText(text string, x, y float64, c color.Color)
	StrokeText(text string, x, y float64, c color.Color, lineWidth float64)
	SetShadow(s Shadow)
	Save()
	Restore()
	Translate(x, y float64)
	Rotate(radians float64)
}

// MediaClock is the authoritative playback position, in seconds.
type MediaClock interface {
	CurrentTime() float64
	Seek(t float64) error
}

// Metadata describes a decoded source.
type Metadata struct {
	Width    int
	Height   int
	Duration float64
	HasAudio bool
}

// DecodeSource is an independently seekable decoder over the source media.
type DecodeSource interface {
	MediaClock
	// Metadata blocks until the source metadata is known.
	Metadata(ctx context.Context) (Metadata, error)
	// Play resolves once playback has started. It returns an error wrapping
	// ErrPlaybackRejected when the host refuses.
	Play(ctx context.Context) error
	Pause()
	Paused() bool
	Ended() bool
	// Frame is the most recently decoded frame, nil before the first one.
	Frame() image.Image
	Close() error
}

// Media is a handle to the source recording, used to build decoders.
type Media interface {
	Name() string
	NewDecoder(ctx context.Context) (DecodeSource, error)
}

// Ticker delivers frame opportunities. Next blocks until the host can
// accept a new frame.
type Ticker interface {
	Next(ctx context.Context) error
}

// Window is an absolute span of the source media in seconds.
type Window struct {
	Start float64
	End   float64
}

// AudioGraph taps a decode source's audio and fans it out to a live
// monitor and to a capture sink.
type AudioGraph interface {
	Close() error
}

// Capture is a drawing surface bridged to a video stream. Emit pushes the
// current surface contents as one frame.
type Capture interface {
	Surface() Surface
	Emit() error
	Close() error
}

type EncoderOptions struct {
	Format string
	FPS    int
	Window Window
}

// Encoder consumes a capture stream plus audio and emits encoded chunks.
// Stop returns after the final chunk has been delivered.
type Encoder interface {
	Start(ctx context.Context, onChunk func([]byte)) error
	Stop() error
	Abort()
}

// Host bundles the platform surfaces the export pipeline drives.
type Host interface {
	NewCapture(width, height, fps int) (Capture, error)
	TapAudio(ctx context.Context, src DecodeSource, window Window) (AudioGraph, error)
	NewEncoder(ctx context.Context, capture Capture, audio AudioGraph, opts EncoderOptions) (Encoder, error)
	Ticker(src DecodeSource) Ticker
}
