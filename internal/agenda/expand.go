package agenda

import (
	"errors"
	"fmt"
	"time"

	"github.com/teemow/agendacal/internal/model"
)

// ErrMalformedEvent is returned for events that cannot be placed on days.
var ErrMalformedEvent = errors.New("malformed event")

const (
	// DefaultMaxSpanDays bounds how many days a single event may expand to.
	DefaultMaxSpanDays = 366

	clockLayout  = "15:04"
	allDayStart  = "00:00"
	allDayFinish = "23:59"
)

// DayEntry is one day's slice of an expanded event.
type DayEntry struct {
	Key   string
	Date  model.Date
	Event model.DayEvent
}

// Expander splits raw events into per-day entries.
type Expander struct {
	// Location is used to read timed instants. Nil keeps each instant's own
	// offset.
	Location *time.Location

	// MaxSpanDays caps the number of entries per event. Zero means
	// DefaultMaxSpanDays.
	MaxSpanDays int
}

// Expand returns one entry per calendar day covered by ev, in date order.
// All-day events carry an exclusive end date which is normalized before
// iterating.
func (x Expander) Expand(calendarID string, ev model.RawEvent) ([]DayEntry, error) {
	if ev.Start.IsZero() || ev.End.IsZero() {
		return nil, fmt.Errorf("%w %q: missing start or end", ErrMalformedEvent, ev.ID)
	}
	if ev.Start.IsAllDay() != ev.End.IsAllDay() {
		return nil, fmt.Errorf("%w %q: start and end mix timed and all-day values", ErrMalformedEvent, ev.ID)
	}

	allDay := ev.Start.IsAllDay()

	var (
		startDate, endDate model.Date
		startTime, endTime string
	)
	if allDay {
		startDate, _ = ev.Start.Date()
		endDate, _ = ev.End.Date()
		if endDate.Before(startDate) {
			return nil, fmt.Errorf("%w %q: end %s before start %s", ErrMalformedEvent, ev.ID, endDate, startDate)
		}
		if endDate.After(startDate) {
			endDate = endDate.AddDays(-1)
		}
		startTime, endTime = allDayStart, allDayFinish
	} else {
		start, _ := ev.Start.Instant()
		end, _ := ev.End.Instant()
		if end.Before(start) {
			return nil, fmt.Errorf("%w %q: end %s before start %s", ErrMalformedEvent, ev.ID, end.Format(time.RFC3339), start.Format(time.RFC3339))
		}
		if x.Location != nil {
			start, end = start.In(x.Location), end.In(x.Location)
		}
		startDate, endDate = model.DateOf(start), model.DateOf(end)
		startTime, endTime = start.Format(clockLayout), end.Format(clockLayout)
	}

	span := startDate.DaysUntil(endDate) + 1
	if span > x.maxSpan() {
		return nil, fmt.Errorf("%w %q: spans %d days", ErrMalformedEvent, ev.ID, span)
	}

	multiDay := startDate != endDate
	entries := make([]DayEntry, 0, span)
	for d := startDate; !d.After(endDate); d = d.AddDays(1) {
		entries = append(entries, DayEntry{
			Key:  d.String(),
			Date: d,
			Event: model.DayEvent{
				ID:         ev.ID,
				CalendarID: calendarID,
				Summary:    ev.Summary,
				AllDay:     allDay,
				StartTime:  startTime,
				EndTime:    endTime,
				IsMultiDay: multiDay,
			},
		})
	}
	return entries, nil
}

func (x Expander) maxSpan() int {
	if x.MaxSpanDays > 0 {
		return x.MaxSpanDays
	}
	return DefaultMaxSpanDays
}
