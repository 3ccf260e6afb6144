package usecase

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/forPelevin/clipforge/internal/domain/overlay"
	"github.com/forPelevin/clipforge/internal/export"
	"github.com/forPelevin/clipforge/internal/testsupport"
	"github.com/forPelevin/clipforge/internal/types"
)

func testClips() []types.Clip {
	return []types.Clip{
		{
			ID:        "b",
			Title:     "Funny Mistake",
			StartTime: 45,
			EndTime:   46,
			Captions:  []types.Caption{{Text: "oops", Start: 0, End: 1}},
		},
		{
			ID:        "a",
			Title:     "Mind-Blowing Fact",
			StartTime: 15,
			EndTime:   16,
			Captions: []types.Caption{
				{Text: "Hi", Start: 0, End: 0.5},
				{Text: "There", Start: 0.5, End: 1},
			},
		},
	}
}

type fakeCanvas struct {
	*testsupport.Surface
	writeErr error
}

func (c fakeCanvas) WritePNG(w io.Writer) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	_, err := io.WriteString(w, "png:"+c.Names())
	return err
}

type fakeGate struct {
	mu       sync.Mutex
	denied   error
	allowed  int
	recorded int
}

func (g *fakeGate) Allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.allowed++
	return g.denied
}

func (g *fakeGate) Record() {
	g.mu.Lock()
	g.recorded++
	g.mu.Unlock()
}

func newUsecase(host *testsupport.Host, gate *fakeGate) Usecase {
	d := Deps{
		Media: &testsupport.Media{},
		Host:  host,
		NewCanvas: func(w, h int) Canvas {
			return fakeCanvas{Surface: testsupport.NewSurface(w, h)}
		},
	}
	if gate != nil {
		d.Gate = gate
	}
	return New(d)
}

func smallRender() Render {
	return Render{Width: 108, Height: 192, FPS: 10, Background: color.Black}
}

func TestExport_WritesArtifactsInTimelineOrder(t *testing.T) {
	t.Parallel()

	outDir := filepath.Join(t.TempDir(), "out")
	gate := &fakeGate{}
	uc := newUsecase(&testsupport.Host{Step: 0.1}, gate)

	var mu sync.Mutex
	var done int
	res, err := uc.Export(context.Background(), ExportInput{
		Clips:   testClips(),
		All:     true,
		Style:   "impact",
		Format:  "webm",
		Render:  smallRender(),
		OutDir:  outDir,
		Sidecar: true,
		OnEvent: func(ev export.Event) {
			if ev.Type == export.EventDone {
				mu.Lock()
				done++
				mu.Unlock()
			}
		},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	m := res.Manifest
	if m.Input != "fake.mp4" || m.Style != "impact" {
		t.Fatalf("manifest header = %+v", m)
	}
	if len(m.Clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(m.Clips))
	}
	if m.Clips[0].ID != "a" || m.Clips[1].ID != "b" {
		t.Fatalf("clips should follow the source timeline: %s, %s", m.Clips[0].ID, m.Clips[1].ID)
	}
	if m.Clips[0].File != "mind-blowing_fact.webm" {
		t.Fatalf("file = %q", m.Clips[0].File)
	}
	for _, c := range m.Clips {
		b, err := os.ReadFile(filepath.Join(outDir, c.File))
		if err != nil {
			t.Fatalf("read artifact: %v", err)
		}
		if len(b) != c.Bytes || !bytes.HasSuffix(b, []byte("end")) {
			t.Fatalf("artifact %s has %d bytes, manifest says %d", c.File, len(b), c.Bytes)
		}
		if c.ExportID == "" {
			t.Fatalf("missing export id for %s", c.ID)
		}
		ass, err := os.ReadFile(filepath.Join(outDir, c.Subtitles))
		if err != nil {
			t.Fatalf("read sidecar: %v", err)
		}
		if !strings.Contains(string(ass), "Style: BoldImpact") {
			t.Fatalf("sidecar should use the export style:\n%s", ass)
		}
	}
	if gate.allowed != 2 {
		t.Fatalf("gate consulted %d times, want 2", gate.allowed)
	}
	mu.Lock()
	defer mu.Unlock()
	if done != 2 {
		t.Fatalf("done events = %d", done)
	}
}

func TestExport_DefaultsToFirstClip(t *testing.T) {
	t.Parallel()

	gate := &fakeGate{}
	uc := newUsecase(&testsupport.Host{Step: 0.25}, gate)
	res, err := uc.Export(context.Background(), ExportInput{
		Clips:  testClips(),
		Format: "mp4",
		Render: smallRender(),
		OutDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(res.Manifest.Clips) != 1 || res.Manifest.Clips[0].ID != "b" {
		t.Fatalf("only the first clip should be exported, got %+v", res.Manifest.Clips)
	}
	if gate.allowed != 1 {
		t.Fatalf("gate consulted %d times, want 1", gate.allowed)
	}
}

func TestExport_SelectedClipsAndCollidingTitles(t *testing.T) {
	t.Parallel()

	clips := testClips()
	clips[0].Title = clips[1].Title
	outDir := t.TempDir()
	uc := newUsecase(&testsupport.Host{Step: 0.25}, nil)

	res, err := uc.Export(context.Background(), ExportInput{
		Clips:   clips,
		ClipIDs: []string{"b", "a"},
		Format:  "mp4",
		Render:  smallRender(),
		OutDir:  outDir,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := []string{res.Manifest.Clips[0].File, res.Manifest.Clips[1].File}; got[0] != "mind-blowing_fact.mp4" || got[1] != "mind-blowing_fact_b.mp4" {
		t.Fatalf("files = %v", got)
	}
	if res.Manifest.Clips[0].Subtitles != "" {
		t.Fatalf("no sidecar requested")
	}
	if _, err := os.Stat(filepath.Join(outDir, "mind-blowing_fact_b.mp4")); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestExport_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unknown clip", func(t *testing.T) {
		t.Parallel()
		uc := newUsecase(&testsupport.Host{}, nil)
		_, err := uc.Export(context.Background(), ExportInput{Clips: testClips(), ClipIDs: []string{"zzz"}, OutDir: t.TempDir()})
		if !errors.Is(err, ErrUnknownClip) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("unknown style", func(t *testing.T) {
		t.Parallel()
		uc := newUsecase(&testsupport.Host{}, nil)
		_, err := uc.Export(context.Background(), ExportInput{Clips: testClips(), Style: "comic", OutDir: t.TempDir()})
		if !errors.Is(err, overlay.ErrUnknownStyle) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("gate denied", func(t *testing.T) {
		t.Parallel()
		denied := errors.New("daily limit reached")
		uc := newUsecase(&testsupport.Host{}, &fakeGate{denied: denied})
		res, err := uc.Export(context.Background(), ExportInput{Clips: testClips(), OutDir: t.TempDir()})
		if !errors.Is(err, denied) {
			t.Fatalf("err = %v", err)
		}
		if len(res.Manifest.Clips) != 0 {
			t.Fatalf("nothing should be exported")
		}
	})

	t.Run("encoder unavailable", func(t *testing.T) {
		t.Parallel()
		uc := newUsecase(&testsupport.Host{}, nil)
		_, err := uc.Export(context.Background(), ExportInput{Clips: testClips(), Format: "avi", OutDir: t.TempDir()})
		if !errors.Is(err, export.ErrEncoderUnavailable) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestExport_CancelledKeepsNoArtifact(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host := &testsupport.Host{Step: 0.1, OnTick: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	outDir := t.TempDir()
	uc := newUsecase(host, nil)

	res, err := uc.Export(ctx, ExportInput{Clips: testClips(), Render: smallRender(), OutDir: outDir})
	if !errors.Is(err, export.ErrCancelled) {
		t.Fatalf("err = %v", err)
	}
	if len(res.Manifest.Clips) != 0 {
		t.Fatalf("cancelled clip must not be listed")
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("out dir should stay empty, found %d entries", len(entries))
	}
}

func TestSnapshot_RendersCaptionAtOffset(t *testing.T) {
	t.Parallel()

	uc := newUsecase(&testsupport.Host{Step: 0.1}, nil)
	var buf bytes.Buffer
	res, err := uc.Snapshot(context.Background(), SnapshotInput{
		Clips:  testClips(),
		ClipID: "a",
		Style:  "clean",
		At:     0.6,
		Render: smallRender(),
		Out:    &buf,
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.ClipID != "a" || res.Frame.Caption != "There" {
		t.Fatalf("result = %+v", res)
	}
	if !strings.HasPrefix(buf.String(), "png:") || !strings.Contains(buf.String(), "fillText") {
		t.Fatalf("png output = %q", buf.String())
	}
}

func TestSnapshot_DefaultsToFirstClip(t *testing.T) {
	t.Parallel()

	uc := newUsecase(&testsupport.Host{}, nil)
	var buf bytes.Buffer
	res, err := uc.Snapshot(context.Background(), SnapshotInput{Clips: testClips(), Render: smallRender(), Out: &buf})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.ClipID != "b" || res.Frame.Caption != "oops" {
		t.Fatalf("result = %+v", res)
	}
}

func TestSnapshot_Errors(t *testing.T) {
	t.Parallel()

	uc := newUsecase(&testsupport.Host{}, nil)
	_, err := uc.Snapshot(context.Background(), SnapshotInput{Clips: testClips(), ClipID: "zzz", Out: io.Discard})
	if !errors.Is(err, ErrUnknownClip) {
		t.Fatalf("unknown clip err = %v", err)
	}

	writeErr := errors.New("disk full")
	uc.d.NewCanvas = func(w, h int) Canvas {
		return fakeCanvas{Surface: testsupport.NewSurface(w, h), writeErr: writeErr}
	}
	_, err = uc.Snapshot(context.Background(), SnapshotInput{Clips: testClips(), Out: io.Discard})
	if !errors.Is(err, writeErr) {
		t.Fatalf("write err = %v", err)
	}
}

func TestSnapshot_AtClipEndStaysOnLastFrame(t *testing.T) {
	t.Parallel()

	uc := newUsecase(&testsupport.Host{Step: 0.01}, nil)
	res, err := uc.Snapshot(context.Background(), SnapshotInput{
		Clips:  testClips(),
		ClipID: "a",
		At:     1,
		Render: smallRender(),
		Out:    io.Discard,
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.Frame.Caption != "There" || res.Frame.Relative < 0.85 {
		t.Fatalf("snapshot at the clip end looped back: %+v", res.Frame)
	}
}

func TestSnapshotOffset(t *testing.T) {
	clip := types.Clip{ID: "x", StartTime: 10, EndTime: 12}
	tests := []struct {
		at   float64
		fps  int
		want float64
	}{
		{at: 1, fps: 10, want: 1},
		{at: 2, fps: 10, want: 1.9},
		{at: 5, fps: 4, want: 1.75},
		{at: -1, fps: 10, want: 0},
		{at: 2, fps: 0, want: 2 - 1.0/export.DefaultFPS},
	}
	for _, tt := range tests {
		if got := snapshotOffset(clip, tt.at, tt.fps); got < tt.want-1e-9 || got > tt.want+1e-9 {
			t.Fatalf("snapshotOffset(%v, %d) = %v, want %v", tt.at, tt.fps, got, tt.want)
		}
	}
}
