package overlay

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"strings"

	"github.com/forPelevin/clipforge/internal/ports"
)

// ErrUnknownStyle is returned by Lookup for ids that match no style or alias.
var ErrUnknownStyle = errors.New("unknown style")

type StyleID string

const (
	StyleClean   StyleID = "clean"
	StyleNeon    StyleID = "neon"
	StyleImpact  StyleID = "impact"
	StyleMinimal StyleID = "minimal"
	StyleGame    StyleID = "game"
)

// Panel is a solid box behind the text, sized from the measured text.
type Panel struct {
	Color  color.NRGBA
	PadX   float64
	PadY   float64
	Shadow ports.Shadow
}

type Stroke struct {
	Color color.NRGBA
	Width float64
	// Under draws the outline before the fill so the fill covers its inner half.
	Under bool
}

// Style is a pure parameter record consumed by Render.
type Style struct {
	ID      StyleID
	Name    string
	AnchorX float64
	AnchorY float64
	Font    ports.Font
	Fill    color.NRGBA
	// Shadow is applied to the text fill.
	Shadow    ports.Shadow
	Panel     *Panel
	Stroke    *Stroke
	Uppercase bool
	// Rotation in degrees about the anchor, negative is counter-clockwise.
	Rotation float64
}

var styles = []Style{
	{
		ID:      StyleClean,
		Name:    "Modern Clean",
		AnchorX: 0.5, AnchorY: 0.75,
		Font:   ports.Font{Family: ports.FontSans, Weight: 700, Size: 60},
		Fill:   color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Shadow: ports.Shadow{Color: color.NRGBA{A: 0x80}, Blur: 10},
		Panel:  &Panel{Color: color.NRGBA{A: 0x99}, PadX: 30, PadY: 20},
	},
	{
		ID:      StyleNeon,
		Name:    "Neon Vibes",
		AnchorX: 0.5, AnchorY: 0.7,
		Font:      ports.Font{Family: ports.FontSans, Weight: 900, Italic: true, Size: 70},
		Fill:      color.NRGBA{R: 0xfd, G: 0xe0, B: 0x47, A: 0xff},
		Shadow:    ports.Shadow{Color: color.NRGBA{R: 0xd9, G: 0x46, B: 0xef, A: 0xff}, Blur: 30},
		Stroke:    &Stroke{Color: color.NRGBA{R: 0xa2, G: 0x1c, B: 0xaf, A: 0xff}, Width: 2},
		Uppercase: true,
	},
	{
		ID:      StyleImpact,
		Name:    "Bold Impact",
		AnchorX: 0.5, AnchorY: 0.3,
		Font: ports.Font{Family: ports.FontSerif, Weight: 900, Size: 80},
		Fill: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Panel: &Panel{
			Color:  color.NRGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff},
			PadX:   30,
			PadY:   20,
			Shadow: ports.Shadow{Color: color.NRGBA{A: 0x80}, Blur: 20},
		},
		Uppercase: true,
		Rotation:  -2,
	},
	{
		ID:      StyleMinimal,
		Name:    "Subtle",
		AnchorX: 0.5, AnchorY: 0.85,
		Font:  ports.Font{Family: ports.FontMono, Weight: 500, Size: 45},
		Fill:  color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xf2},
		Panel: &Panel{Color: color.NRGBA{A: 0x66}, PadX: 20, PadY: 16},
	},
	{
		ID:      StyleGame,
		Name:    "Gamer",
		AnchorX: 0.5, AnchorY: 0.8,
		Font:   ports.Font{Family: ports.FontSans, Weight: 900, Size: 70},
		Fill:   color.NRGBA{R: 0x4a, G: 0xde, B: 0x80, A: 0xff},
		Shadow: ports.Shadow{Color: color.NRGBA{A: 0xff}, OffsetX: 4, OffsetY: 4},
		Stroke: &Stroke{Color: color.NRGBA{A: 0xff}, Width: 8, Under: true},
	},
}

var aliases = map[string]StyleID{
	"modern":        StyleClean,
	"high-contrast": StyleNeon,
	"bold":          StyleImpact,
	"subtle":        StyleMinimal,
	"gamer":         StyleGame,
}

// Default is the style a new session starts with.
func Default() Style { return styles[0] }

// Styles returns every supported style in display order.
func Styles() []Style {
	out := make([]Style, len(styles))
	copy(out, styles)
	return out
}

// Lookup resolves a style id or one of its aliases, case-insensitively.
func Lookup(id string) (Style, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if alias, ok := aliases[key]; ok {
		key = string(alias)
	}
	for _, s := range styles {
		if string(s.ID) == key {
			return s, nil
		}
	}
	return Style{}, fmt.Errorf("%w %q", ErrUnknownStyle, id)
}

// Aliases lists the alternate names Lookup accepts for id.
func Aliases(id StyleID) []string {
	var out []string
	for name, target := range aliases {
		if target == id {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
