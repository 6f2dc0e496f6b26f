// Package units converts user-facing distance and angle values into the
// internal base units: millimetres for lengths and radians for angles.
package units

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Distance units expressed in millimetres.
const (
	Nanometer  = 1e-6
	Micrometer = 1e-3
	Millimeter = 1.0
	Centimeter = 10.0
	Meter      = 1000.0
	Kilometer  = 1e6
)

// Angle units expressed in radians.
const (
	Radian      = 1.0
	Milliradian = 1e-3
	Degree      = math.Pi / 180.0
)

// ErrUnknownUnit is returned for unit names that are not recognised.
var ErrUnknownUnit = errors.New("unknown unit")

var distanceUnits = map[string]float64{
	"nm": Nanometer,
	"um": Micrometer,
	"µm": Micrometer,
	"mm": Millimeter,
	"cm": Centimeter,
	"m":  Meter,
	"km": Kilometer,
}

var angleUnits = map[string]float64{
	"rad":  Radian,
	"mrad": Milliradian,
	"deg":  Degree,
}

// Distance converts value expressed in unit to millimetres.
// An empty unit means millimetres.
func Distance(value float64, unit string) (float64, error) {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		return value, nil
	}
	f, ok := distanceUnits[u]
	if !ok {
		return 0, fmt.Errorf("%w: distance unit %q", ErrUnknownUnit, unit)
	}
	return value * f, nil
}

// Distance3 converts three values sharing one unit.
func Distance3(x, y, z float64, unit string) ([3]float64, error) {
	var out [3]float64
	for i, v := range [3]float64{x, y, z} {
		d, err := Distance(v, unit)
		if err != nil {
			return [3]float64{}, err
		}
		out[i] = d
	}
	return out, nil
}

// Angle converts value expressed in unit to radians.
// An empty unit means degrees, which is what phantom scripts use by default.
func Angle(value float64, unit string) (float64, error) {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		u = "deg"
	}
	f, ok := angleUnits[u]
	if !ok {
		return 0, fmt.Errorf("%w: angle unit %q", ErrUnknownUnit, unit)
	}
	return value * f, nil
}

// Degrees converts an angle in unit to degrees.
func Degrees(value float64, unit string) (float64, error) {
	if u := strings.ToLower(strings.TrimSpace(unit)); u == "" || u == "deg" {
		return value, nil
	}
	r, err := Angle(value, unit)
	if err != nil {
		return 0, err
	}
	return r / Degree, nil
}
