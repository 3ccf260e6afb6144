package overlay

import (
	"errors"
	"math"
	"testing"

	"github.com/forPelevin/clipforge/internal/ports"
	"github.com/forPelevin/clipforge/internal/testsupport"
)

func TestRender_EmptyTextDrawsNothing(t *testing.T) {
	s := testsupport.NewSurface(1080, 1920)
	for _, st := range Styles() {
		Render(s, st, "")
	}
	if len(s.Ops) != 0 {
		t.Fatalf("expected no ops, got %s", s.Names())
	}
}

func TestRender_Sequences(t *testing.T) {
	tests := []struct {
		id   StyleID
		want string
	}{
		{StyleClean, "save translate setFont measureText fillRect fillText restore"},
		{StyleNeon, "save translate setFont measureText fillText strokeText restore"},
		{StyleImpact, "save translate rotate setFont measureText fillRect fillText restore"},
		{StyleMinimal, "save translate setFont measureText fillRect fillText restore"},
		{StyleGame, "save translate setFont measureText strokeText fillText restore"},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			st, err := Lookup(string(tt.id))
			if err != nil {
				t.Fatal(err)
			}
			s := testsupport.NewSurface(1080, 1920)
			Render(s, st, "Hello there")
			if got := s.Names(); got != tt.want {
				t.Fatalf("ops = %q, want %q", got, tt.want)
			}
			if s.Depth() != 0 {
				t.Fatalf("unbalanced save/restore")
			}
		})
	}
}

func TestRender_Deterministic(t *testing.T) {
	for _, st := range Styles() {
		a := testsupport.NewSurface(1080, 1920)
		b := testsupport.NewSurface(1080, 1920)
		Render(a, st, "same input")
		Render(b, st, "same input")
		if a.Names() != b.Names() || len(a.Ops) != len(b.Ops) {
			t.Fatalf("%s: op sequences differ", st.ID)
		}
		for i := range a.Ops {
			if a.Ops[i].Rect != b.Ops[i].Rect || a.Ops[i].Text != b.Ops[i].Text {
				t.Fatalf("%s: op %d differs", st.ID, i)
			}
		}
	}
}

func TestRender_AnchorAndCase(t *testing.T) {
	s := testsupport.NewSurface(1080, 1920)
	st, _ := Lookup("impact")
	Render(s, st, "Mind blown")

	fills := s.Find("fillText")
	if len(fills) != 1 {
		t.Fatalf("expected one fillText, got %d", len(fills))
	}
	f := fills[0]
	if f.Text != "MIND BLOWN" {
		t.Fatalf("expected uppercase text, got %q", f.Text)
	}
	if math.Abs(f.Tx-540) > 1e-9 || math.Abs(f.Ty-576) > 1e-9 {
		t.Fatalf("anchor = (%v, %v), want (540, 576)", f.Tx, f.Ty)
	}
	if math.Abs(f.Angle-(-2*math.Pi/180)) > 1e-9 {
		t.Fatalf("rotation = %v", f.Angle)
	}
	if f.Font.Family != ports.FontSerif {
		t.Fatalf("font family = %s", f.Font.Family)
	}
}

func TestRender_PanelContainsText(t *testing.T) {
	for _, st := range Styles() {
		if st.Panel == nil {
			continue
		}
		s := testsupport.NewSurface(1080, 1920)
		text := "A considerably longer caption line"
		Render(s, st, text)

		rects := s.Find("fillRect")
		if len(rects) != 1 {
			t.Fatalf("%s: expected one panel", st.ID)
		}
		r := rects[0].Rect
		size := st.Font.Size
		textW := float64(len([]rune(text))) * size * testsupport.CharWidth
		if r.W < textW+2*st.Panel.PadX || r.X > -textW/2-st.Panel.PadX {
			t.Fatalf("%s: panel %+v does not contain text width %v", st.ID, r, textW)
		}
		if r.Y > -size*0.4 || r.Y+r.H < size*0.4 {
			t.Fatalf("%s: panel %+v does not contain text height", st.ID, r)
		}
		if rects[0].Shadow != st.Panel.Shadow {
			t.Fatalf("%s: panel drawn with wrong shadow", st.ID)
		}
	}
}

func TestRender_ShadowScopedToFill(t *testing.T) {
	s := testsupport.NewSurface(1080, 1920)
	st, _ := Lookup("neon")
	Render(s, st, "glow")

	fill := s.Find("fillText")[0]
	stroke := s.Find("strokeText")[0]
	if !fill.Shadow.Enabled() {
		t.Fatalf("expected glow shadow on fill")
	}
	if stroke.Shadow.Enabled() {
		t.Fatalf("stroke after fill must not carry the shadow")
	}
}

func TestLookup(t *testing.T) {
	tests := map[string]StyleID{
		"clean":         StyleClean,
		" MODERN ":      StyleClean,
		"high-contrast": StyleNeon,
		"bold":          StyleImpact,
		"minimal":       StyleMinimal,
		"Game":          StyleGame,
	}
	for in, want := range tests {
		st, err := Lookup(in)
		if err != nil || st.ID != want {
			t.Fatalf("Lookup(%q) = %s, %v; want %s", in, st.ID, err, want)
		}
	}
	if _, err := Lookup("comic-sans"); !errors.Is(err, ErrUnknownStyle) {
		t.Fatalf("expected unknown style error")
	}
	if len(Styles()) < 5 {
		t.Fatalf("expected at least five styles")
	}
}

func TestAliases(t *testing.T) {
	if got := Aliases(StyleImpact); len(got) != 1 || got[0] != "bold" {
		t.Fatalf("Aliases(impact) = %v", got)
	}
	for _, st := range Styles() {
		for _, a := range Aliases(st.ID) {
			if resolved, err := Lookup(a); err != nil || resolved.ID != st.ID {
				t.Fatalf("alias %q resolves to %s, %v", a, resolved.ID, err)
			}
		}
	}
}
