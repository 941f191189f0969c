package entities

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinates_Valid(t *testing.T) {
	tests := []struct {
		name string
		c    Coordinates
		want bool
	}{
		{"rome", Coordinates{41.9028, 12.4964}, true},
		{"poles and antimeridian", Coordinates{-90, 180}, true},
		{"lat out of range", Coordinates{95.5, 12}, false},
		{"lng out of range", Coordinates{41, 200.25}, false},
		{"nan", Coordinates{math.NaN(), 0}, false},
		{"inf", Coordinates{0, math.Inf(-1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Valid())
		})
	}
}
