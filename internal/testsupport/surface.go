package testsupport

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/forPelevin/clipforge/internal/ports"
)

// Op is one recorded drawing call.
type Op struct {
	Name  string
	Text  string
	Rect  ports.Rect
	X, Y  float64
	Color color.Color
	Font  ports.Font
	Width float64
	// Tx, Ty and Angle are the accumulated transform at call time.
	Tx, Ty, Angle float64
	Shadow        ports.Shadow
}

func (o Op) String() string {
	if o.Text != "" {
		return fmt.Sprintf("%s(%q)", o.Name, o.Text)
	}
	return o.Name
}

type transform struct {
	tx, ty, angle float64
	shadow        ports.Shadow
	font          ports.Font
}

// Surface records every call made against it. Text is measured with a fixed
// advance per rune so layout assertions are deterministic.
type Surface struct {
	W, H  int
	Ops   []Op
	state transform
	stack []transform
}

func NewSurface(w, h int) *Surface { return &Surface{W: w, H: h} }

// CharWidth is the advance of one rune as a fraction of the font size.
const CharWidth = 0.5

func (s *Surface) Size() (int, int) { return s.W, s.H }

func (s *Surface) record(op Op) {
	op.Tx, op.Ty, op.Angle = s.state.tx, s.state.ty, s.state.angle
	op.Shadow = s.state.shadow
	op.Font = s.state.font
	s.Ops = append(s.Ops, op)
}

func (s *Surface) FillRect(r ports.Rect, c color.Color) {
	s.record(Op{Name: "fillRect", Rect: r, Color: c})
}

func (s *Surface) DrawImage(img image.Image, dst ports.Rect) {
	s.record(Op{Name: "drawImage", Rect: dst})
}

func (s *Surface) SetFont(f ports.Font) {
	s.state.font = f
	s.record(Op{Name: "setFont"})
}

func (s *Surface) MeasureText(text string) ports.TextMetrics {
	s.record(Op{Name: "measureText", Text: text})
	size := s.state.font.Size
	return ports.TextMetrics{
		Width:   float64(len([]rune(text))) * size * CharWidth,
		Ascent:  size * 0.4,
		Descent: size * 0.4,
	}
}

func (s *Surface) FillText(text string, x, y float64, c color.Color) {
	s.record(Op{Name: "fillText", Text: text, X: x, Y: y, Color: c})
}

func (s *Surface) StrokeText(text string, x, y float64, c color.Color, lineWidth float64) {
	s.record(Op{Name: "strokeText", Text: text, X: x, Y: y, Color: c, Width: lineWidth})
}

func (s *Surface) SetShadow(sh ports.Shadow) { s.state.shadow = sh }

func (s *Surface) Save() {
	s.stack = append(s.stack, s.state)
	s.record(Op{Name: "save"})
}

func (s *Surface) Restore() {
	if len(s.stack) == 0 {
		return
	}
	s.state = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.record(Op{Name: "restore"})
}

func (s *Surface) Translate(x, y float64) {
	s.state.tx += x
	s.state.ty += y
	s.record(Op{Name: "translate", X: x, Y: y})
}

func (s *Surface) Rotate(radians float64) {
	s.state.angle += radians
	s.record(Op{Name: "rotate", Width: radians})
}

// Depth is the number of unmatched Save calls.
func (s *Surface) Depth() int { return len(s.stack) }

// Names returns the recorded operation names joined by spaces.
func (s *Surface) Names() string {
	names := make([]string, len(s.Ops))
	for i, op := range s.Ops {
		names[i] = op.Name
	}
	return strings.Join(names, " ")
}

// Find returns the recorded ops with the given name.
func (s *Surface) Find(name string) []Op {
	var out []Op
	for _, op := range s.Ops {
		if op.Name == name {
			out = append(out, op)
		}
	}
	return out
}

// Reset drops recorded ops and transform state.
func (s *Surface) Reset() {
	s.Ops = nil
	s.stack = nil
	s.state = transform{}
}

var _ ports.Surface = (*Surface)(nil)
