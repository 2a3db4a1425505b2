// Package calendar fetches calendar lists and events from the Google Calendar
// API on behalf of the agenda engine.
//
// A Client is bound to one bearer token. Event queries always ask the API to
// expand recurring events into single instances and to order them by start
// time. Non-2xx responses surface as *HTTPError so that callers can inspect
// the status code.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, accessToken, calendar.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	events, err := client.ListEvents(ctx, "primary", from, to)
package calendar
