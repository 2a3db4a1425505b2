package calendar

import (
	"fmt"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/agendacal/internal/model"
)

// HTTPError is returned for any non-2xx response from the Calendar API.
type HTTPError struct {
	Status  int
	Message string
}

// Error implements error.
func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("calendar API returned %d: %s", e.Status, msg)
}

// StatusCode returns the HTTP status of the failed response.
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// toRawEvent converts a Google Calendar event to a model.RawEvent.
// Unparseable start or end values are left unset for the expander to reject.
func toRawEvent(event *calendar.Event) model.RawEvent {
	if event == nil {
		return model.RawEvent{}
	}
	return model.RawEvent{
		ID:      event.Id,
		Summary: event.Summary,
		Start:   toEventTime(event.Start),
		End:     toEventTime(event.End),
	}
}

func toEventTime(dt *calendar.EventDateTime) model.EventTime {
	if dt == nil {
		return model.EventTime{}
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return model.EventTime{}
		}
		return model.Timed(t)
	}
	if dt.Date != "" {
		d, err := model.ParseDate(dt.Date)
		if err != nil {
			return model.EventTime{}
		}
		return model.AllDay(d)
	}
	return model.EventTime{}
}

// toCalendarInfo converts a Google Calendar list entry to model.CalendarInfo
func toCalendarInfo(entry *calendar.CalendarListEntry) model.CalendarInfo {
	if entry == nil {
		return model.CalendarInfo{}
	}
	summary := entry.Summary
	if entry.SummaryOverride != "" {
		summary = entry.SummaryOverride
	}
	return model.CalendarInfo{
		ID:         entry.Id,
		Summary:    summary,
		TimeZone:   entry.TimeZone,
		Primary:    entry.Primary,
		AccessRole: entry.AccessRole,
		Color:      entry.BackgroundColor,
	}
}
