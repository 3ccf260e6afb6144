package types

// ClipSet is the document produced by the content-analysis step: the source
// it was derived from and the clips found in it.
type ClipSet struct {
	Input string `json:"input,omitempty"`
	Clips []Clip `json:"clips"`
}

// Clip is a window into the source media. StartTime and EndTime are absolute
// offsets in seconds.
type Clip struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartTime   float64   `json:"startTime"`
	EndTime     float64   `json:"endTime"`
	ViralScore  float64   `json:"viralScore,omitempty"`
	Captions    []Caption `json:"captions"`
}

// Duration returns the clip window length in seconds.
func (c Clip) Duration() float64 { return c.EndTime - c.StartTime }

// Caption offsets are relative to the owning clip's StartTime.
type Caption struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// FindClip returns the clip with the given id.
func FindClip(clips []Clip, id string) (Clip, bool) {
	for _, c := range clips {
		if c.ID == id {
			return c, true
		}
	}
	return Clip{}, false
}

// Manifest records the artifacts of one export run.
type Manifest struct {
	Input string         `json:"input"`
	Style string         `json:"style"`
	Clips []ManifestClip `json:"clips"`
}

type ManifestClip struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	StartSec  float64 `json:"start_sec"`
	EndSec    float64 `json:"end_sec"`
	File      string  `json:"file"`
	Subtitles string  `json:"subtitles,omitempty"`
	Bytes     int     `json:"bytes"`
	ExportID  string  `json:"export_id"`
}
