// Package subtitles writes a clip's captions as an ASS subtitle sidecar
// styled after an overlay style, for players and editors that do not see
// the burned-in captions.
package subtitles

import (
	"fmt"
	"image/color"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/forPelevin/clipforge/internal/domain/overlay"
	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/types"
)

// RenderASS renders clip captions in style st for a width x height canvas.
// Event times are clip-relative. Captions starting at or after the clip end
// are dropped and the rest are clamped to the clip duration.
func RenderASS(clip types.Clip, st overlay.Style, width, height int) string {
	var b strings.Builder
	b.WriteString(assHeader(st, width, height))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	total := clip.Duration()
	upper := cases.Upper(language.Und)
	for _, c := range clip.Captions {
		if c.Start >= total {
			continue
		}
		end := math.Min(c.End, total)
		text := sanitizeASS(c.Text)
		if text == "" {
			continue
		}
		if st.Uppercase {
			text = upper.String(text)
		}
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(dur(c.Start)))
		b.WriteString(",")
		b.WriteString(assTime(dur(end)))
		b.WriteString(",")
		b.WriteString(styleName(st))
		b.WriteString(",,0,0,0,,")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

func styleName(st overlay.Style) string {
	return strings.ReplaceAll(st.Name, " ", "")
}

var fontNames = map[ports.FontFamily]string{
	ports.FontSans:  "Arial",
	ports.FontSerif: "Georgia",
	ports.FontMono:  "Courier New",
}

func assHeader(st overlay.Style, width, height int) string {
	outline, shadow, outlineColour := 0.0, 0.0, color.NRGBA{A: 0xff}
	borderStyle := 1
	back := color.NRGBA{}
	if st.Stroke != nil {
		outline = st.Stroke.Width
		outlineColour = st.Stroke.Color
	}
	if st.Panel != nil {
		// Opaque box: the outline colour fills the box, padded by the outline width.
		borderStyle = 3
		outline = st.Panel.PadY
		outlineColour = st.Panel.Color
		back = st.Panel.Color
	}
	if st.Shadow.Enabled() {
		shadow = math.Max(math.Max(math.Abs(st.Shadow.OffsetX), math.Abs(st.Shadow.OffsetY)), 2)
		back = nrgba(st.Shadow.Color)
	}
	marginV := int(math.Round((1 - st.AnchorY) * float64(height)))

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", width)
	fmt.Fprintf(&b, "PlayResY: %d\n", height)
	b.WriteString("ScaledBorderAndShadow: yes\n\n")
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: %s,%s,%d,%s,%s,%s,%s,%d,%d,0,0,100,100,0,%s,%d,%s,%s,2,80,80,%d,1\n",
		styleName(st),
		fontNames[st.Font.Family],
		int(math.Round(st.Font.Size)),
		assColour(st.Fill),
		assColour(st.Fill),
		assColour(outlineColour),
		assColour(back),
		assBool(st.Font.Weight >= 600),
		assBool(st.Font.Italic),
		assFloat(-st.Rotation),
		borderStyle,
		assFloat(outline),
		assFloat(shadow),
		marginV,
	)
	return b.String()
}

// assColour encodes c as &HAABBGGRR where alpha 00 is opaque.
func assColour(c color.NRGBA) string {
	return fmt.Sprintf("&H%02X%02X%02X%02X", 0xff-c.A, c.B, c.G, c.R)
}

func nrgba(c color.Color) color.NRGBA {
	if c == nil {
		return color.NRGBA{}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

func assBool(v bool) int {
	if v {
		return -1
	}
	return 0
}

func assFloat(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.1f", v)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", "\\N")
	return strings.TrimSpace(s)
}

func dur(sec float64) time.Duration { return time.Duration(math.Round(sec * float64(time.Second))) }
