// Package cmd implements the command-line interface for calassist.
//
// Commands:
//   - serve: start the web service (chat UI, OAuth flow, health probes)
//   - mcp: serve the calendar tools over MCP on stdio
//   - auth-status: report whether the token file holds usable credentials
//   - generate-docs: generate markdown documentation for the MCP tools
//   - version: display version information
//
// serve is the default command when no subcommand is given.
package cmd
