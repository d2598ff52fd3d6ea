package domain

import "github.com/samirrijal/sirius/internal/pkg/geospatial"

// Coordinate is a game-world position in degrees (WGS 84).
type Coordinate struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// IsZero reports whether the coordinate is the (0,0) placeholder the game API
// sends for trains without a known position.
func (c Coordinate) IsZero() bool {
	return c.Lon == 0 && c.Lat == 0
}

// Distance returns the great-circle distance between a and b in kilometres.
func Distance(a, b Coordinate) float64 {
	return geospatial.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}
