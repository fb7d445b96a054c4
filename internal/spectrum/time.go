package spectrum

import "time"

// ToCanonical interprets wall as a wall-clock reading in loc and returns the
// canonical UTC instant. This is the only wall-to-canonical conversion in the
// engine; the parser and the exporter both go through it so they cannot
// diverge.
func ToCanonical(wall time.Time, loc *time.Location) time.Time {
	return time.Date(
		wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(),
		loc,
	).UTC()
}

// Wall converts a canonical UTC instant back to a wall-clock reading in loc.
// The inverse of ToCanonical for any fixed-offset or unambiguous zone time.
func Wall(instant time.Time, loc *time.Location) time.Time {
	return instant.In(loc)
}
