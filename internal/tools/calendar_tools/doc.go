// Package calendar_tools exposes the calendar gateway and the chat
// assistant as MCP tools, so desktop AI clients can list, create and
// mark events on the connected calendar.
package calendar_tools
