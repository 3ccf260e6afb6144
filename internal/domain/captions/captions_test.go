package captions

import (
	"strings"
	"testing"

	"github.com/forPelevin/clipforge/internal/types"
)

func TestActive_Table(t *testing.T) {
	clip := types.Clip{
		ID:        "1",
		StartTime: 15,
		EndTime:   30,
		Captions: []types.Caption{
			{Text: "Did you know?", Start: 0, End: 2},
			{Text: "Space is completely silent.", Start: 2, End: 5},
			{Text: "gap after", Start: 9, End: 12},
		},
	}
	tests := []struct {
		name string
		rel  float64
		want string
	}{
		{"first instant", 0, "Did you know?"},
		{"inside first", 1, "Did you know?"},
		{"shared boundary picks earlier start", 2, "Did you know?"},
		{"inside second", 3.5, "Space is completely silent."},
		{"gap", 6, ""},
		{"inclusive end", 12, "gap after"},
		{"negative", -0.1, ""},
		{"past clip", 16, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(clip, tt.rel); got != tt.want {
				t.Fatalf("Text(%v) = %q, want %q", tt.rel, got, tt.want)
			}
		})
	}
}

func TestActive_OverlapPicksEarliestStart(t *testing.T) {
	clip := types.Clip{ID: "x", StartTime: 0, EndTime: 10, Captions: []types.Caption{
		{Text: "first", Start: 0, End: 5},
		{Text: "second", Start: 2, End: 6},
	}}
	c, ok := Active(clip, 3)
	if !ok || c.Text != "first" {
		t.Fatalf("Active(3) = %q, %v; want first", c.Text, ok)
	}

	// Sequence order must not matter.
	clip.Captions[0], clip.Captions[1] = clip.Captions[1], clip.Captions[0]
	c, ok = Active(clip, 3)
	if !ok || c.Text != "first" {
		t.Fatalf("reordered Active(3) = %q, %v; want first", c.Text, ok)
	}
}

func TestActive_ClampsToClipWindow(t *testing.T) {
	clip := types.Clip{ID: "x", StartTime: 10, EndTime: 14, Captions: []types.Caption{
		{Text: "long", Start: 3, End: 9},
	}}
	if got := Text(clip, 4); got != "long" {
		t.Fatalf("Text(4) = %q, want long", got)
	}
	if got := Text(clip, 5); got != "" {
		t.Fatalf("Text(5) = %q, want none past clip end", got)
	}
}

func TestValidate(t *testing.T) {
	clip := types.Clip{ID: "a", StartTime: 10, EndTime: 20, Captions: []types.Caption{
		{Text: "ok", Start: 0, End: 2},
		{Text: "spills", Start: 8, End: 12},
		{Text: "late", Start: 11, End: 13},
	}}
	warns, err := Validate(clip)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(warns) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %v", len(warns), warns)
	}
	if warns[0].Index != 1 || !strings.Contains(warns[0].Message, "clamped") {
		t.Fatalf("unexpected first warning: %s", warns[0])
	}
	if warns[1].Index != 2 || !strings.Contains(warns[1].Message, "never shown") {
		t.Fatalf("unexpected second warning: %s", warns[1])
	}
}

func TestValidate_CaptionStartingAtClipEnd(t *testing.T) {
	clip := types.Clip{ID: "a", StartTime: 10, EndTime: 20, Captions: []types.Caption{
		{Text: "edge", Start: 10, End: 12},
	}}
	if got := Text(clip, 10); got != "edge" {
		t.Fatalf("Text(10) = %q, want edge at the closing instant", got)
	}
	warns, err := Validate(clip)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(warns) != 1 || strings.Contains(warns[0].Message, "never shown") || !strings.Contains(warns[0].Message, "clamped") {
		t.Fatalf("a caption shown at the clip end must not be reported as hidden: %v", warns)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := map[string]types.Clip{
		"empty id":       {StartTime: 0, EndTime: 1},
		"empty window":   {ID: "a", StartTime: 5, EndTime: 5},
		"inverted":       {ID: "a", StartTime: 5, EndTime: 4},
		"caption order":  {ID: "a", StartTime: 0, EndTime: 5, Captions: []types.Caption{{Start: 2, End: 1}}},
		"negative start": {ID: "a", StartTime: 0, EndTime: 5, Captions: []types.Caption{{Start: -1, End: 1}}},
	}
	for name, clip := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Validate(clip); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
