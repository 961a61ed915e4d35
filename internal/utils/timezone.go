package utils

import (
	"time"

	"github.com/bradfitz/latlong"
)

// ZoneNameFor resolves the IANA zone for a coordinate, or "" if unknown.
func ZoneNameFor(lat, lng float64) string {
	return latlong.LookupZoneName(lat, lng)
}

// LoadLocation loads tz, falling back to fallback and finally UTC.
func LoadLocation(tz, fallback string) *time.Location {
	for _, name := range []string{tz, fallback} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// DateOnlyInLocation returns the exact instant of local midnight
// for the calendar day that t falls in when viewed in loc.
func DateOnlyInLocation(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
