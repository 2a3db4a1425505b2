// Package agenda_tools provides MCP tools over the rolling agenda.
//
// # Available Tools
//
//   - agenda_view: Show the committed agenda, or one day of it
//   - agenda_refresh: Run one aggregation pass and show the result
//   - agenda_set_window: Change the first day and the number of days
//   - agenda_list_calendars: List the user's calendars and which are visible
//   - agenda_set_visible_calendars: Choose the calendars that are aggregated
//
// Tools share the orchestrator of the running server, so a refresh started
// over MCP and one started by the scheduler never overlap.
package agenda_tools
