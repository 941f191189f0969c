// Package coordinates turns raw positions and clock readings into the
// human-readable strings carried by a fire alert.
package coordinates

import (
	"fmt"
	"math"

	"github.com/jonboulle/clockwork"

	"github.com/LeonardoBeccarini/firelinx/internal/model/entities"
)

// Axis selects the hemisphere letters used by FormatCoordinate.
type Axis int

const (
	Latitude Axis = iota
	Longitude
)

const (
	dateLayout = "02/01/2006" // en-GB
	timeLayout = "15:04:05"
)

// FormatCoordinate renders decimal degrees as degrees and decimal minutes,
// e.g. 22.5767 on the Latitude axis becomes 22°34.6020'N.
// Non-finite input is the caller's problem.
func FormatCoordinate(deg float64, axis Axis) string {
	abs := math.Abs(deg)
	whole := math.Floor(abs)
	minutes := (abs - whole) * 60
	return fmt.Sprintf("%d°%.4f'%s", int64(whole), minutes, hemisphere(deg, axis))
}

func hemisphere(deg float64, axis Axis) string {
	if axis == Latitude {
		if deg >= 0 {
			return "N"
		}
		return "S"
	}
	if deg >= 0 {
		return "E"
	}
	return "W"
}

// FormatDDM formats both components of c.
func FormatDDM(c entities.Coordinates) (lat, lng string) {
	return FormatCoordinate(c.Lat, Latitude), FormatCoordinate(c.Lng, Longitude)
}

// Timestamp is the date/time pair stamped on a report when it is created.
type Timestamp struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// CurrentTimestamp reads clock and formats it the en-GB way (dd/mm/yyyy, HH:MM:SS).
func CurrentTimestamp(clock clockwork.Clock) Timestamp {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	now := clock.Now().Local()
	return Timestamp{
		Date: now.Format(dateLayout),
		Time: now.Format(timeLayout),
	}
}
