package attendance

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// Valid reports whether the coordinates are within range.
func (g Geo) Valid() bool {
	return !math.IsNaN(g.Latitude) && !math.IsNaN(g.Longitude) &&
		g.Latitude >= -90 && g.Latitude <= 90 &&
		g.Longitude >= -180 && g.Longitude <= 180
}

// DistanceMeters is the great-circle (haversine) distance between two points.
func DistanceMeters(a, b Geo) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Geofence is an advisory radius around the gym. The zero value is disabled.
type Geofence struct {
	Center    Geo
	MaxMeters float64
}

// Warning returns a non-empty message when loc lies outside the radius. It never
// rejects: a missing location yields no warning.
func (f Geofence) Warning(loc *Geo) string {
	if f.MaxMeters <= 0 || loc == nil {
		return ""
	}
	d := DistanceMeters(f.Center, *loc)
	if d <= f.MaxMeters {
		return ""
	}
	return fmt.Sprintf("punch recorded %.0f m from the gym (limit %.0f m)", d, f.MaxMeters)
}
