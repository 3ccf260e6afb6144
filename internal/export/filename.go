package export

import "strings"

var extensions = map[string]string{
	"webm": ".webm",
	"mp4":  ".mp4",
}

// SuggestedFilename derives the download name from a clip title: lowercased,
// runs of anything but [a-z0-9] collapsed to one underscore.
func SuggestedFilename(title, format string) string {
	ext, ok := extensions[format]
	if !ok {
		ext = ".webm"
	}
	name := slug(title)
	if name == "" {
		name = "clip"
	}
	return name + ext
}

func slug(s string) string {
	var b strings.Builder
	prevSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevSep = false
		default:
			if !prevSep {
				b.WriteByte('_')
				prevSep = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
