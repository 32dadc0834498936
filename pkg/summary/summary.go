// Package summary turns a reported position into the human-readable title and
// message shown to the user.
package summary

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/unklstewy/aprs-notify/pkg/aprsfi"
	"github.com/unklstewy/aprs-notify/pkg/coordinates"
)

const (
	// TimestampLayout formats the fix time, e.g. "Mar 04 at 17:05"
	TimestampLayout = "Jan 02 at 15:04"

	// HomeRadiusMeters is the distance within which the station is "at home"
	HomeRadiusMeters = 100.0

	// KilometerThreshold is the distance above which kilometers are shown
	KilometerThreshold = 2.0

	// StaleAfter is the position age above which the beaconing clause is added
	StaleAfter = 30 * time.Second
)

// Options selects which clauses the message contains.
type Options struct {
	IncludeAltitude bool
	IncludeDistance bool

	// Location is the time zone for the fix timestamp (default: time.Local)
	Location *time.Location
}

// DefaultOptions includes every clause and uses local time.
func DefaultOptions() Options {
	return Options{
		IncludeAltitude: true,
		IncludeDistance: true,
		Location:        time.Local,
	}
}

// Summary is the rendered view of one location.
type Summary struct {
	Title   string
	Message string

	// DistanceMeters from home, computed even when not shown
	DistanceMeters float64

	// PositionAge is how long the same fix has been re-beaconed
	PositionAge time.Duration
}

// Summarize builds the title and message for loc relative to home.
func Summarize(loc aprsfi.Location, home coordinates.Geographic, opts Options) Summary {
	return Summary{
		Title:          Title(loc),
		Message:        Message(loc, home, opts),
		DistanceMeters: DistanceFromHome(loc, home),
		PositionAge:    loc.PositionAge(),
	}
}

// Title describes heading and speed for a moving station, or falls back to
// the comment.
func Title(loc aprsfi.Location) string {
	if loc.Moving() {
		return fmt.Sprintf("%s is heading %d degrees at %d km/h",
			loc.Name, int(loc.Course), int(loc.Speed))
	}
	return fmt.Sprintf("%s: %s", loc.Name, loc.Comment)
}

// Message describes where the station is, relative to home.
func Message(loc aprsfi.Location, home coordinates.Geographic, opts Options) string {
	tz := opts.Location
	if tz == nil {
		tz = time.Local
	}

	var b strings.Builder
	fmt.Fprintf(&b, "At %s %s as of %s. ",
		formatDegrees(loc.Latitude, loc.LatitudeText), formatDegrees(loc.Longitude, loc.LongitudeText),
		loc.Time.In(tz).Format(TimestampLayout))

	if opts.IncludeAltitude && loc.HasAltitude && loc.Altitude > 0 {
		fmt.Fprintf(&b, "Altitude is %d meters. ", int(loc.Altitude))
	}

	if opts.IncludeDistance {
		b.WriteString(distanceClause(DistanceFromHome(loc, home)))
	}

	if age := loc.PositionAge(); age > StaleAfter {
		fmt.Fprintf(&b, "Beaconing same position for %d seconds. ", int(age.Seconds()))
	}

	return b.String()
}

// DistanceFromHome returns the flat-earth distance from home in meters.
func DistanceFromHome(loc aprsfi.Location, home coordinates.Geographic) float64 {
	return coordinates.FlatEarthDistance(home, coordinates.Geographic{Latitude: loc.Latitude, Longitude: loc.Longitude})
}

func distanceClause(meters float64) string {
	km := meters / 1000
	switch {
	case km > KilometerThreshold:
		return fmt.Sprintf("Currently %d km from home. ", int(km))
	case meters > HomeRadiusMeters:
		return fmt.Sprintf("Currently %d meters from home. ", int(meters))
	default:
		return "Currently at home. "
	}
}

// formatDegrees prints a coordinate as aprs.fi sent it, or in its shortest
// decimal form when no text is known.
func formatDegrees(deg float64, text string) string {
	if text != "" {
		return text
	}
	return strconv.FormatFloat(deg, 'f', -1, 64)
}

// NotFound returns the title and message used when nothing is known about
// the monitored name.
func NotFound(name string) (title, message string) {
	return "Can't find " + name, "No results returned from aprs.fi"
}
