package assistant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teemow/calassist/internal/calendar"
)

// Intent is the calendar operation selected from the model's analysis.
type Intent string

const (
	IntentQuery  Intent = "query"
	IntentCreate Intent = "create"
	IntentMark   Intent = "mark_important"
	IntentNone   Intent = "none"
)

// Classify picks the intent whose marker occurs in the analysis.
//
// Markers are tested in the fixed order query, create, mark-important and
// the first hit wins, so an analysis mentioning several operations always
// resolves to the earliest one in that order.
func Classify(analysis string, markers Markers) Intent {
	switch {
	case containsFold(analysis, markers.Query):
		return IntentQuery
	case containsFold(analysis, markers.Create):
		return IntentCreate
	case containsFold(analysis, markers.Mark):
		return IntentMark
	default:
		return IntentNone
	}
}

// Fields are "label: value" pairs parsed from generated text, keyed by the
// lower-cased label.
type Fields map[string]string

// ParseFields splits every line on its first colon (ASCII ":" or full-width
// "：") into a label and a value. Lines without a colon are ignored, list
// bullets before the label are dropped, and a label that occurs more than
// once keeps its last value.
func ParseFields(text string) Fields {
	fields := make(Fields)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		idx, width := firstColon(line)
		if idx < 0 {
			continue
		}
		label := strings.TrimSpace(strings.TrimLeft(line[:idx], "-*•· \t"))
		if label == "" {
			continue
		}
		fields[strings.ToLower(label)] = strings.TrimSpace(line[idx+width:])
	}
	return fields
}

// Get returns the non-empty value for label.
func (f Fields) Get(label string) (string, bool) {
	if label == "" {
		return "", false
	}
	v, ok := f[strings.ToLower(label)]
	return v, ok && v != ""
}

func firstColon(s string) (int, int) {
	ascii := strings.Index(s, ":")
	wide := strings.Index(s, "：")
	switch {
	case ascii < 0 && wide < 0:
		return -1, 0
	case wide < 0 || (ascii >= 0 && ascii < wide):
		return ascii, 1
	default:
		return wide, len("：")
	}
}

var (
	// ErrMissingField matches a MissingFieldError.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidTime is returned when a start or end time cannot be parsed.
	ErrInvalidTime = errors.New("invalid time")
)

// MissingFieldError names the required field absent from the analysis.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

// Is makes errors.Is(err, ErrMissingField) true.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// BuildEventInput turns parsed fields into an event. Title, start and end
// are required; location and description are optional. Times without an
// offset are read in loc. important comes from the user's own text, not the
// model's.
func BuildEventInput(fields Fields, labels Labels, loc *time.Location, important bool) (calendar.EventInput, error) {
	title, ok := fields.Get(labels.Title)
	if !ok {
		return calendar.EventInput{}, &MissingFieldError{Field: labels.Title}
	}
	startText, ok := fields.Get(labels.Start)
	if !ok {
		return calendar.EventInput{}, &MissingFieldError{Field: labels.Start}
	}
	endText, ok := fields.Get(labels.End)
	if !ok {
		return calendar.EventInput{}, &MissingFieldError{Field: labels.End}
	}

	start, err := calendar.ParseEventTime(startText, loc)
	if err != nil {
		return calendar.EventInput{}, fmt.Errorf("%w: %s: %v", ErrInvalidTime, labels.Start, err)
	}
	end, err := calendar.ParseEventTime(endText, loc)
	if err != nil {
		return calendar.EventInput{}, fmt.Errorf("%w: %s: %v", ErrInvalidTime, labels.End, err)
	}
	if !end.After(start) {
		return calendar.EventInput{}, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidTime, endText, startText)
	}

	location, _ := fields.Get(labels.Location)
	description, _ := fields.Get(labels.Description)

	return calendar.EventInput{
		Title:       title,
		Start:       start,
		End:         end,
		Location:    location,
		Description: description,
		Important:   important,
	}, nil
}

// MatchEvent returns the first event whose title occurs in text, compared
// case-insensitively. Events are tried in the given (start time) order, so
// an earlier partial match beats a later exact one. Untitled events never
// match.
func MatchEvent(events []calendar.Event, text string) (calendar.Event, bool) {
	for _, ev := range events {
		if strings.TrimSpace(ev.Title) == "" {
			continue
		}
		if containsFold(text, ev.Title) {
			return ev, true
		}
	}
	return calendar.Event{}, false
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
