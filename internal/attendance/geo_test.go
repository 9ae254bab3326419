package attendance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	a := Geo{Latitude: 11.0168, Longitude: 76.9558}
	assert.InDelta(t, 0, DistanceMeters(a, a), 1e-6)

	// One degree of latitude is about 111.2 km.
	b := Geo{Latitude: 12.0168, Longitude: 76.9558}
	assert.InDelta(t, 111195, DistanceMeters(a, b), 50)
}

func TestGeoValid(t *testing.T) {
	assert.True(t, Geo{Latitude: -90, Longitude: 180}.Valid())
	assert.False(t, Geo{Latitude: 91}.Valid())
	assert.False(t, Geo{Longitude: -181}.Valid())
	assert.False(t, Geo{Latitude: math.NaN()}.Valid())
}

func TestGeofenceWarning(t *testing.T) {
	gym := Geo{Latitude: 11.0168, Longitude: 76.9558}
	fence := Geofence{Center: gym, MaxMeters: 200}

	assert.Empty(t, fence.Warning(nil))
	assert.Empty(t, fence.Warning(&Geo{Latitude: 11.0170, Longitude: 76.9559}))
	assert.Contains(t, fence.Warning(&Geo{Latitude: 11.0268, Longitude: 76.9558}), "from the gym")

	assert.Empty(t, Geofence{}.Warning(&Geo{Latitude: 50, Longitude: 50}))
}
