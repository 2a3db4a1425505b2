// Package cmd implements the command-line interface for agendacal.
//
// This package provides the following commands:
//   - serve: Run the agenda server (JSON API, scheduled refresh, metrics) or,
//     with --transport stdio, the MCP server
//   - agenda: Refresh once and print the window as text or JSON
//   - version: Display version information
package cmd
