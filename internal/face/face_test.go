package face

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techvaseegrah/gymsaas-sub001/internal/roster"
)

type staticGallery []roster.Enrolled

func (g staticGallery) Descriptors(context.Context) ([]roster.Enrolled, error) {
	return g, nil
}

func sample(id string, v ...float64) roster.Enrolled {
	return roster.Enrolled{FighterID: id, Descriptor: roster.Descriptor{Values: v}}
}

func TestLocalMatcherPicksClosest(t *testing.T) {
	g := staticGallery{
		sample("a", 0, 0, 0),
		sample("a", 0.1, 0, 0),
		sample("b", 1, 1, 1),
		sample("c", 0.9, 1, 1.05),
	}
	m := NewLocalMatcher(g, 0.5, 3)

	got, err := m.Match(context.Background(), []float64{0.95, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, "b", got.FighterID)
	assert.InDelta(t, 0.05, got.Distance, 1e-9)

	got, err = m.Match(context.Background(), []float64{0.08, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "a", got.FighterID)
}

func TestLocalMatcherRejects(t *testing.T) {
	m := NewLocalMatcher(staticGallery{sample("a", 0, 0, 0)}, 0.5, 3)

	_, err := m.Match(context.Background(), []float64{3, 3, 3})
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = m.Match(context.Background(), []float64{0, 0})
	assert.ErrorIs(t, err, ErrDimension)

	empty := NewLocalMatcher(staticGallery{}, 0.5, 3)
	_, err = empty.Match(context.Background(), []float64{0, 0, 0})
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestClientMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/match":
			var body struct {
				Descriptor []float64 `json:"descriptor"`
				Threshold  float64   `json:"threshold"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if len(body.Descriptor) > 0 && body.Descriptor[0] > 0.5 {
				_ = json.NewEncoder(w).Encode(map[string]any{"matched": true, "fighter_id": "f1", "distance": 0.31})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"matched": false})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0.5)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	got, err := c.Match(ctx, []float64{0.9, 0.1})
	require.NoError(t, err)
	assert.Equal(t, Match{FighterID: "f1", Distance: 0.31}, got)

	_, err = c.Match(ctx, []float64{0.1, 0.1})
	assert.ErrorIs(t, err, ErrNoMatch)
}
