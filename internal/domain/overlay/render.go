package overlay

import (
	"math"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/forPelevin/clipforge/internal/ports"
)

// Render draws text onto s using style st. An empty text draws nothing.
// The surface transform and shadow state are restored before returning.
func Render(s ports.Surface, st Style, text string) {
	if text == "" {
		return
	}
	if st.Uppercase {
		text = cases.Upper(language.Und).String(text)
	}

	w, h := s.Size()
	s.Save()
	defer s.Restore()

	s.Translate(st.AnchorX*float64(w), st.AnchorY*float64(h))
	if st.Rotation != 0 {
		s.Rotate(st.Rotation * math.Pi / 180)
	}
	s.SetFont(st.Font)
	// Panels are sized from the metrics, so measuring comes first.
	m := s.MeasureText(text)

	if p := st.Panel; p != nil {
		s.SetShadow(p.Shadow)
		s.FillRect(PanelRect(m, *p), p.Color)
		s.SetShadow(ports.Shadow{})
	}
	if st.Stroke != nil && st.Stroke.Under {
		s.StrokeText(text, 0, 0, st.Stroke.Color, st.Stroke.Width)
	}
	s.SetShadow(st.Shadow)
	s.FillText(text, 0, 0, st.Fill)
	s.SetShadow(ports.Shadow{})
	if st.Stroke != nil && !st.Stroke.Under {
		s.StrokeText(text, 0, 0, st.Stroke.Color, st.Stroke.Width)
	}
}

// PanelRect is the panel box around text measured as m and drawn at the
// anchor origin, grown by the panel padding on every side.
func PanelRect(m ports.TextMetrics, p Panel) ports.Rect {
	return ports.Rect{
		X: -m.Width/2 - p.PadX,
		Y: -m.Ascent - p.PadY,
		W: m.Width + 2*p.PadX,
		H: m.Height() + 2*p.PadY,
	}
}
