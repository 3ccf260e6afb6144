package raster

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/forPelevin/clipforge/internal/ports"
)

type faceKey struct {
	file string
	size float64
}

var (
	parsedMu sync.Mutex
	parsed   = map[string]*sfnt.Font{}
)

var fontFiles = map[string][]byte{
	"goregular":    goregular.TTF,
	"gomedium":     gomedium.TTF,
	"gobold":       gobold.TTF,
	"goitalic":     goitalic.TTF,
	"gobolditalic": gobolditalic.TTF,
	"gomono":       gomono.TTF,
	"gomonobold":   gomonobold.TTF,
	"gosmallcaps":  gosmallcaps.TTF,
}

func parseFont(file string) (*sfnt.Font, error) {
	parsedMu.Lock()
	defer parsedMu.Unlock()
	if f, ok := parsed[file]; ok {
		return f, nil
	}
	f, err := opentype.Parse(fontFiles[file])
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	parsed[file] = f
	return f, nil
}

// fileFor picks the closest Go font for a family, weight and slant.
func fileFor(f ports.Font) string {
	bold := f.Weight >= 600
	switch f.Family {
	case ports.FontMono:
		if bold {
			return "gomonobold"
		}
		return "gomono"
	case ports.FontSerif:
		return "gosmallcaps"
	}
	switch {
	case bold && f.Italic:
		return "gobolditalic"
	case bold:
		return "gobold"
	case f.Italic:
		return "goitalic"
	case f.Weight >= 500:
		return "gomedium"
	}
	return "goregular"
}

// faces caches sized faces for one canvas. Faces are not safe for
// concurrent use, so every canvas owns its own cache.
type faces map[faceKey]font.Face

func (fs faces) face(f ports.Font) (font.Face, error) {
	size := f.Size
	if size <= 0 {
		size = 16
	}
	key := faceKey{file: fileFor(f), size: size}
	if face, ok := fs[key]; ok {
		return face, nil
	}
	sf, err := parseFont(key.file)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(sf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("face %s %.0f: %w", key.file, size, err)
	}
	fs[key] = face
	return face, nil
}

func (fs faces) close() {
	for k, face := range fs {
		_ = face.Close()
		delete(fs, k)
	}
}
