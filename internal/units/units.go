// Package units provides angle unit constants and lens / field-of-view conversions
package units

import "math"

// Unit constants
const (
	Degrees = "deg"
	Radians = "rad"
)

// ValidUnits contains all valid angle unit values
var ValidUnits = []string{Degrees, Radians}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "deg, rad"
}

// ConvertAngle converts an angle from radians to the target units.
// Unknown units leave the value in radians.
func ConvertAngle(rad float64, targetUnits string) float64 {
	switch targetUnits {
	case Degrees:
		return rad * 180 / math.Pi
	default:
		return rad
	}
}

// FieldOfView returns the full angle in radians subtended by a sensor of the
// given size behind a lens of the given focal length. Both arguments share
// units (usually mm).
func FieldOfView(lens, sensor float64) float64 {
	return 2 * math.Atan(sensor/(2*lens))
}

// LensForFieldOfView is the inverse of FieldOfView.
func LensForFieldOfView(fov, sensor float64) float64 {
	return sensor / (2 * math.Tan(fov/2))
}
