package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// ImportantColorID is the event color used as the importance marker ("Tomato").
const ImportantColorID = "11"

// Reminder offsets applied to every created event.
const (
	EmailReminderMinutes = 24 * 60
	PopupReminderMinutes = 30
)

// EventInput is the data needed to create an event.
type EventInput struct {
	Title       string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
	Important   bool
}

// Event is a calendar event as returned by the provider.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	// StartText is the provider's start value: the date-time, or the
	// date for all-day events.
	StartText string
	AllDay    bool
	ColorID   string
	HTMLLink  string
}

// Important reports whether the event carries the importance marker.
func (e Event) Important() bool {
	return e.ColorID == ImportantColorID
}

func toEvent(event *calendar.Event) Event {
	if event == nil {
		return Event{}
	}
	e := Event{
		ID:          event.Id,
		Title:       event.Summary,
		Description: event.Description,
		Location:    event.Location,
		ColorID:     event.ColorId,
		HTMLLink:    event.HtmlLink,
	}

	if event.Start != nil {
		if event.Start.DateTime != "" {
			e.StartText = event.Start.DateTime
			if t, err := time.Parse(time.RFC3339, event.Start.DateTime); err == nil {
				e.Start = t
			}
		} else if event.Start.Date != "" {
			e.StartText = event.Start.Date
			e.AllDay = true
			if t, err := time.Parse(dateLayout, event.Start.Date); err == nil {
				e.Start = t
			}
		}
	}

	if event.End != nil {
		if event.End.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, event.End.DateTime); err == nil {
				e.End = t
			}
		} else if event.End.Date != "" {
			if t, err := time.Parse(dateLayout, event.End.Date); err == nil {
				e.End = t
			}
		}
	}

	return e
}

func fixedReminders() *calendar.EventReminders {
	return &calendar.EventReminders{
		UseDefault: false,
		Overrides: []*calendar.EventReminder{
			{Method: "email", Minutes: EmailReminderMinutes},
			{Method: "popup", Minutes: PopupReminderMinutes},
		},
		// useDefault=false must be sent explicitly or the calendar's defaults apply
		ForceSendFields: []string{"UseDefault"},
	}
}
