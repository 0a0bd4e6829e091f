package plan

import (
	"fmt"
	"strings"
	"time"
)

// Layouts used for dates and wall-clock minutes.
const (
	DateLayout   = "2006-01-02"
	MinuteLayout = "2006-01-02 15:04"
)

// Zone is the planning time zone. Every wall-clock string without an offset
// is read in it.
var Zone = time.FixedZone("CST", 8*60*60)

var wallLayouts = []string{
	MinuteLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// ParseTime reads "YYYY-MM-DD HH:MM" (seconds and a T separator are
// tolerated) in Zone, or an RFC 3339 timestamp with its own offset.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(Zone), nil
	}
	for _, layout := range wallLayouts {
		if t, err := time.ParseInLocation(layout, s, Zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q, want %s", s, "YYYY-MM-DD HH:MM")
}

// FormatTime renders t as "YYYY-MM-DD HH:MM" in Zone.
func FormatTime(t time.Time) string {
	return t.In(Zone).Format(MinuteLayout)
}

// SameDay reports whether t falls on the calendar day of d in Zone.
func SameDay(t, d time.Time) bool {
	ty, tm, td := t.In(Zone).Date()
	dy, dm, dd := d.In(Zone).Date()
	return ty == dy && tm == dm && td == dd
}
