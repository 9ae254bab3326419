package attendance

import "time"

// DateLayout is the wire format for operational dates.
const DateLayout = "2006-01-02"

// Calendar maps instants to the gym's operational day. Days are represented as
// midnight UTC of the calendar date so they compare and key cleanly.
type Calendar struct {
	Loc *time.Location
	// Cutoff shifts the start of the operational day, e.g. 4h makes 02:00 belong to
	// the previous date.
	Cutoff time.Duration
}

// Day returns the operational day of t.
func (c Calendar) Day(t time.Time) time.Time {
	loc := c.Loc
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc).Add(-c.Cutoff)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date normalizes a calendar date (wherever it came from) to the Day representation.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into the Day representation.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders a Day as YYYY-MM-DD.
func FormatDate(day time.Time) string {
	if day.IsZero() {
		return ""
	}
	return day.Format(DateLayout)
}
