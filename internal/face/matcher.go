// Package face maps a face descriptor to a fighter identity.
package face

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/techvaseegrah/gymsaas-sub001/internal/roster"
)

var (
	// ErrNoMatch means no enrolled descriptor is close enough.
	ErrNoMatch = errors.New("face: no match")
	// ErrDimension means the query descriptor length differs from the gallery.
	ErrDimension = errors.New("face: descriptor dimension mismatch")
)

// Match is an identified fighter and the Euclidean distance to the closest sample.
type Match struct {
	FighterID string  `json:"fighter_id"`
	Distance  float64 `json:"distance"`
}

// Matcher identifies a fighter from a descriptor.
type Matcher interface {
	Match(ctx context.Context, descriptor []float64) (Match, error)
}

// Gallery lists enrolled descriptors.
type Gallery interface {
	Descriptors(ctx context.Context) ([]roster.Enrolled, error)
}

// LocalMatcher compares against the enrolled gallery in process. The threshold is a
// maximum Euclidean distance; 0.6 is the usual cut for 128-d face-api descriptors.
type LocalMatcher struct {
	gallery   Gallery
	threshold float64
	dim       int
}

// NewLocalMatcher creates a matcher over the gallery.
func NewLocalMatcher(gallery Gallery, threshold float64, dim int) *LocalMatcher {
	return &LocalMatcher{gallery: gallery, threshold: threshold, dim: dim}
}

func (m *LocalMatcher) Match(ctx context.Context, descriptor []float64) (Match, error) {
	if m.dim > 0 && len(descriptor) != m.dim {
		return Match{}, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(descriptor), m.dim)
	}
	enrolled, err := m.gallery.Descriptors(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("load gallery: %w", err)
	}

	best := Match{Distance: -1}
	for _, e := range enrolled {
		if len(e.Descriptor.Values) != len(descriptor) {
			continue
		}
		d := floats.Distance(descriptor, e.Descriptor.Values, 2)
		if best.Distance < 0 || d < best.Distance {
			best = Match{FighterID: e.FighterID, Distance: d}
		}
	}
	if best.Distance < 0 || best.Distance > m.threshold {
		return Match{}, ErrNoMatch
	}
	return best, nil
}
