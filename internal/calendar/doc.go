// Package calendar is the gateway to the Google Calendar API used by the
// assistant.
//
// It supports three operations on the configured calendar: listing upcoming
// events, creating an event with a fixed reminder policy, and marking an
// event as important by setting its color. Each call obtains credentials
// from a google.TokenProvider and fails with ErrUnavailable when the account
// is not connected.
package calendar
