package entities

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// FireType is the combustion class of a reported fire.
type FireType string

const (
	FireTypeA FireType = "A" // ordinary combustibles
	FireTypeB FireType = "B" // flammable liquids
	FireTypeC FireType = "C" // electrical
	FireTypeD FireType = "D" // metals
)

// FireIntensity is the severity tier, "1" (lowest) to "4".
type FireIntensity string

const (
	Intensity1 FireIntensity = "1"
	Intensity2 FireIntensity = "2"
	Intensity3 FireIntensity = "3"
	Intensity4 FireIntensity = "4"
)

// DefaultStation is the station id used when the operator has none ("Without Designation").
const DefaultStation = "W/D"

var (
	ErrInvalidFireType      = errors.New("invalid fire type")
	ErrInvalidFireIntensity = errors.New("invalid fire intensity")
	ErrInvalidText          = errors.New("invalid utf-8 text")
)

// Valid reports whether t is one of the four combustion classes.
func (t FireType) Valid() bool {
	switch t {
	case FireTypeA, FireTypeB, FireTypeC, FireTypeD:
		return true
	}
	return false
}

// Label returns the human name of the class.
func (t FireType) Label() string {
	switch t {
	case FireTypeA:
		return "Ordinary Combustibles"
	case FireTypeB:
		return "Flammable Liquids"
	case FireTypeC:
		return "Electrical Fires"
	case FireTypeD:
		return "Metal Fires"
	}
	return "Unknown"
}

func (i FireIntensity) Valid() bool {
	switch i {
	case Intensity1, Intensity2, Intensity3, Intensity4:
		return true
	}
	return false
}

// Level returns the tier as an int (0 if invalid).
func (i FireIntensity) Level() int {
	if !i.Valid() {
		return 0
	}
	return int(i[0] - '0')
}

// FireReport is what an operator submits. Latitude and Longitude are already
// formatted (DDM) when the report leaves the intake layer.
type FireReport struct {
	FireType      FireType      `json:"fireType"`
	FireIntensity FireIntensity `json:"fireIntensity"`
	Verified      bool          `json:"verified"`
	User          string        `json:"user"`
	UserID        string        `json:"userID"`
	StnID         string        `json:"stnID"`
	Latitude      string        `json:"latitude"`
	Longitude     string        `json:"longitude"`
	Date          string        `json:"date"`
	Time          string        `json:"time"`
}

// NewFireReport returns the form defaults stamped with date and time.
func NewFireReport(date, time string) FireReport {
	return FireReport{
		FireType:      FireTypeA,
		FireIntensity: Intensity1,
		Verified:      true,
		StnID:         DefaultStation,
		Date:          date,
		Time:          time,
	}
}

// Validate checks the enumerated fields and that every text field is valid
// UTF-8, since JSON encoding would silently rewrite invalid bytes.
func (r FireReport) Validate() error {
	if !r.FireType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFireType, r.FireType)
	}
	if !r.FireIntensity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFireIntensity, r.FireIntensity)
	}
	fields := []struct{ name, value string }{
		{"user", r.User}, {"userID", r.UserID}, {"stnID", r.StnID},
		{"latitude", r.Latitude}, {"longitude", r.Longitude},
		{"date", r.Date}, {"time", r.Time},
	}
	for _, f := range fields {
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("%w: %s", ErrInvalidText, f.name)
		}
	}
	return nil
}

// WithLocation returns a copy of r carrying the formatted coordinates.
func (r FireReport) WithLocation(latitude, longitude string) FireReport {
	r.Latitude = latitude
	r.Longitude = longitude
	return r
}
