// Package aprsfi reads last known positions of APRS stations and objects from
// the aprs.fi API.
//
// Only the "loc" query is implemented. See https://aprs.fi/page/api for the
// upstream documentation. An API key is required for every request.
package aprsfi

import (
	"context"
	"time"
)

// Location is one reported position of a tracked station or object.
// Coordinates are WGS84 decimal degrees.
type Location struct {
	// Name is the station, object or item name (e.g., "N0CALL-9")
	Name string

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64

	// LatitudeText and LongitudeText are the coordinates exactly as aprs.fi
	// sent them (e.g., "42.36010"), empty when they arrived as JSON numbers
	LatitudeText  string
	LongitudeText string

	// Altitude in meters. Only meaningful when HasAltitude is true.
	Altitude float64

	// HasAltitude is false when aprs.fi did not report an altitude
	HasAltitude bool

	// Speed in km/h, 0 when stationary or unknown
	Speed float64

	// Course in degrees, only meaningful when Speed > 0
	Course float64

	// Time is when the position fix was first reported
	Time time.Time

	// LastTime is when the station last beaconed this position
	LastTime time.Time

	// Comment is the free text status or position comment
	Comment string

	// Symbol is the APRS symbol table and code (e.g., "/>")
	Symbol string

	// SourceCall is the originating callsign for objects and items
	SourceCall string

	// Path is the digipeater path the last packet took
	Path string

	// Class is "a" for APRS or "i" for AIS
	Class string

	// Type is "a" AIS, "l" APRS station, "i" item, "o" object, "w" weather
	Type string
}

// PositionAge returns how long the same fix has been re-beaconed, truncated
// to whole seconds.
func (l Location) PositionAge() time.Duration {
	return l.LastTime.Sub(l.Time).Truncate(time.Second)
}

// Moving reports whether the station reported a non-zero speed.
func (l Location) Moving() bool {
	return l.Speed > 0
}

// Source is implemented by anything that can look up last known positions.
type Source interface {
	// GetLocations returns the last known position for each of the given
	// names. Names that aprs.fi does not know are left out; an empty slice
	// with a nil error means nothing was found.
	GetLocations(ctx context.Context, names ...string) ([]Location, error)

	// Close releases any resources held by the source.
	Close() error
}
