package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/forPelevin/clipforge/internal/domain/captions"
	"github.com/forPelevin/clipforge/internal/types"
)

// LoadClips reads a clip set document and validates every clip. Captions
// that only partly fit their clip come back as warnings.
func LoadClips(path string) (types.ClipSet, []captions.Warning, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.ClipSet{}, nil, fmt.Errorf("read clips: %w", err)
	}
	return parseClips(b)
}

func parseClips(b []byte) (types.ClipSet, []captions.Warning, error) {
	var set types.ClipSet
	if err := json.Unmarshal(b, &set); err != nil {
		return types.ClipSet{}, nil, fmt.Errorf("parse clips: %w", err)
	}
	if len(set.Clips) == 0 {
		return types.ClipSet{}, nil, errors.New("clip set has no clips")
	}
	seen := make(map[string]bool, len(set.Clips))
	var warns []captions.Warning
	for _, c := range set.Clips {
		if seen[c.ID] {
			return types.ClipSet{}, nil, fmt.Errorf("duplicate clip id %q", c.ID)
		}
		seen[c.ID] = true
		w, err := captions.Validate(c)
		if err != nil {
			return types.ClipSet{}, nil, err
		}
		warns = append(warns, w...)
	}
	return set, warns, nil
}
