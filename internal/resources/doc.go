// Package resources provides read-only MCP resources for the connected
// calendar. Clients fetch them for context without invoking a tool:
//
//   - calendar://events/upcoming lists the next events as JSON
//   - calendar://auth/status reports whether credentials are stored
package resources
