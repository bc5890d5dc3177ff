package calendar

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Layouts accepted by ParseEventTime in addition to RFC 3339. They carry no
// offset and are interpreted in the calendar's zone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006年1月2日 15:04",
	"2006年1月2日15:04",
	dateLayout,
	"2006/01/02",
	"2006年1月2日",
}

// ParseEventTime parses a start or end time written by the language model.
// Times without an offset are taken to be in loc; a nil loc means UTC.
func ParseEventTime(text string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(text)
	s = strings.TrimRight(s, "。.,，")

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", text)
}
