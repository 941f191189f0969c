package entities

import "math"

// Coordinates is a raw position in decimal degrees. It is never sent on the wire.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is a finite position on the globe.
func (c Coordinates) Valid() bool {
	for _, v := range []float64{c.Lat, c.Lng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(c.Lat) <= 90 && math.Abs(c.Lng) <= 180
}
