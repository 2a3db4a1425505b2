// Package agenda aggregates events from several calendars into a rolling
// multi-day index.
//
// An Orchestrator run validates the current session, fetches every visible
// calendar concurrently, expands each event into per-day entries, drops
// duplicates and commits a fresh DayIndex for the current Window in a single
// assignment. Failed attempts are retried with exponential backoff; the final
// failure is classified as a session or load error.
//
// Without a session the Orchestrator commits a deterministic placeholder
// dataset so the agenda always has something to show.
package agenda
