package experiment

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/despot/eval"
)

// ReturnTracker caches each episode's discounted return and writes it
// to a gob-encoded file on Save, recoverable later with LoadReturns.
type ReturnTracker struct {
	path string
	data []float64
}

// NewReturnTracker returns a ReturnTracker that will persist to path
// on Save.
func NewReturnTracker(path string) *ReturnTracker {
	return &ReturnTracker{path: path}
}

// Track appends result's discounted return.
func (r *ReturnTracker) Track(result eval.EpisodeResult) {
	r.data = append(r.data, result.DiscountedReturn)
}

// Save gob-encodes the tracked returns to the tracker's path.
func (r *ReturnTracker) Save() error {
	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("experiment: ReturnTracker: Save: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(r.data); err != nil {
		return fmt.Errorf("experiment: ReturnTracker: Save: %w", err)
	}
	return nil
}

// LoadReturns loads a []float64 saved by a ReturnTracker.
func LoadReturns(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("experiment: LoadReturns: %w", err)
	}
	defer f.Close()

	var data []float64
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("experiment: LoadReturns: %w", err)
	}
	return data, nil
}
