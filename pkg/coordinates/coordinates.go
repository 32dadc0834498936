package coordinates

import (
	"math"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// MetersPerNauticalMile is the international nautical mile
	MetersPerNauticalMile = 1852.0

	// NauticalMilesPerDegreeLat is the length of one degree of latitude
	NauticalMilesPerDegreeLat = 60.00721

	// NauticalMilesPerDegreeLon is the length of one degree of longitude at the equator
	NauticalMilesPerDegreeLon = 60.10793
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64
}

// Valid reports whether the position is finite and within WGS84 bounds.
func (g Geographic) Valid() bool {
	if math.IsNaN(g.Latitude) || math.IsNaN(g.Longitude) ||
		math.IsInf(g.Latitude, 0) || math.IsInf(g.Longitude, 0) {
		return false
	}
	return g.Latitude >= -90 && g.Latitude <= 90 &&
		g.Longitude >= -180 && g.Longitude <= 180
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// FlatEarthDistanceMeters approximates the distance between two points in meters.
//
// The Earth is treated as flat around the two points: latitude and longitude
// deltas are scaled to nautical miles, longitude by the mean cosine of both
// latitudes. Good for short to medium ranges, not near the poles or across the
// antimeridian. NaN or Inf inputs propagate to the result.
func FlatEarthDistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	yDistance := (lat2 - lat1) * NauticalMilesPerDegreeLat
	xDistance := (math.Cos(lat1*DegreesToRadians) + math.Cos(lat2*DegreesToRadians)) *
		(lon2 - lon1) * (NauticalMilesPerDegreeLon / 2)

	distance := math.Sqrt(yDistance*yDistance + xDistance*xDistance)

	return distance * MetersPerNauticalMile
}

// FlatEarthDistance is FlatEarthDistanceMeters for Geographic values.
func FlatEarthDistance(from, to Geographic) float64 {
	return FlatEarthDistanceMeters(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Uses spherical trigonometry to calculate the bearing along a great circle.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lon1 := from.Longitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	lon2 := to.Longitude * DegreesToRadians

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeAzimuth(math.Atan2(y, x) * RadiansToDegrees)
}

// CompassPoint returns the 16-wind compass abbreviation for a bearing.
func CompassPoint(bearing float64) string {
	points := [...]string{
		"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
		"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
	}
	idx := int(math.Floor(NormalizeAzimuth(bearing)/22.5+0.5)) % len(points)
	return points[idx]
}
