package captions

import (
	"fmt"

	"github.com/forPelevin/clipforge/internal/types"
)

// Active returns the caption shown at rel seconds into the clip. When
// captions overlap the earliest-starting one wins, and among equal starts
// the first in sequence order. Display is clamped to the clip window.
func Active(clip types.Clip, rel float64) (types.Caption, bool) {
	dur := clip.Duration()
	if rel < 0 || rel > dur {
		return types.Caption{}, false
	}
	best := -1
	for i, c := range clip.Captions {
		end := c.End
		if end > dur {
			end = dur
		}
		if rel < c.Start || rel > end {
			continue
		}
		if best < 0 || c.Start < clip.Captions[best].Start {
			best = i
		}
	}
	if best < 0 {
		return types.Caption{}, false
	}
	return clip.Captions[best], true
}

// Text is Active reduced to the caption string, "" when none is active.
func Text(clip types.Clip, rel float64) string {
	c, ok := Active(clip, rel)
	if !ok {
		return ""
	}
	return c.Text
}

// Warning flags a caption that is valid but will not render as authored.
type Warning struct {
	ClipID  string
	Index   int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("clip %s caption %d: %s", w.ClipID, w.Index, w.Message)
}

// Validate checks clip and caption invariants. Hard violations are returned
// as an error; captions extending past the clip end only produce warnings.
func Validate(clip types.Clip) ([]Warning, error) {
	if clip.ID == "" {
		return nil, fmt.Errorf("clip id is empty")
	}
	if !(clip.EndTime > clip.StartTime) {
		return nil, fmt.Errorf("clip %s: endTime %.3f must be > startTime %.3f", clip.ID, clip.EndTime, clip.StartTime)
	}
	if clip.StartTime < 0 {
		return nil, fmt.Errorf("clip %s: startTime must be >= 0", clip.ID)
	}
	dur := clip.Duration()
	var warns []Warning
	for i, c := range clip.Captions {
		if c.Start < 0 || c.Start > c.End {
			return nil, fmt.Errorf("clip %s caption %d: want 0 <= start <= end, got [%.3f, %.3f]", clip.ID, i, c.Start, c.End)
		}
		switch {
		case c.Start > dur:
			warns = append(warns, Warning{ClipID: clip.ID, Index: i, Message: fmt.Sprintf("starts at %.2fs, after clip end %.2fs; never shown", c.Start, dur)})
		case c.End > dur:
			warns = append(warns, Warning{ClipID: clip.ID, Index: i, Message: fmt.Sprintf("ends at %.2fs, past clip end %.2fs; clamped", c.End, dur)})
		}
	}
	return warns, nil
}
