// Package timeline maps an absolute media clock onto a clip window.
package timeline

import (
	"fmt"

	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

// Relative returns seconds elapsed since the clip start for clock reading t.
func Relative(clip types.Clip, t float64) float64 {
	return t - clip.StartTime
}

// Progress returns the playback percentage of t within the clip, in [0,100].
func Progress(clip types.Clip, t float64) float64 {
	dur := clip.Duration()
	if dur <= 0 {
		return 0
	}
	return clamp(Relative(clip, t)/dur*100, 0, 100)
}

// Reset moves clock to t unless it is already there. It reports whether a
// seek was issued.
func Reset(clock ports.MediaClock, t float64) (bool, error) {
	if clock.CurrentTime() == t {
		return false, nil
	}
	if err := clock.Seek(t); err != nil {
		return false, fmt.Errorf("seek to %.3f: %w", t, err)
	}
	return true, nil
}

// Loop reads the clock and, once it reaches the clip end, rewinds it to the
// clip start. The returned reading is the one every consumer of this tick
// must use.
func Loop(clock ports.MediaClock, clip types.Clip) (now float64, looped bool, err error) {
	now = clock.CurrentTime()
	if now < clip.EndTime {
		return now, false, nil
	}
	if _, err := Reset(clock, clip.StartTime); err != nil {
		return now, false, err
	}
	return clip.StartTime, true, nil
}

// FormatClock renders seconds as m:ss.
func FormatClock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(sec)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
