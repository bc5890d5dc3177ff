package google

import calendar "google.golang.org/api/calendar/v3"

// CalendarScopes are the OAuth scopes requested for the connected account.
// Full calendar access is needed to create events and update their color.
var CalendarScopes = []string{
	calendar.CalendarScope,
}
