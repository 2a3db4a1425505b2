package agenda

import (
	"time"

	"github.com/teemow/agendacal/internal/model"
)

// PlaceholderCalendarID is the calendar id carried by placeholder events.
const PlaceholderCalendarID = "sample"

// PlaceholderEvents returns the sample events shown while signed out. They
// are laid out relative to the first day of the window so every window gets
// the same shape: timed, all-day, multi-day and overnight entries.
func PlaceholderEvents(first model.Date, loc *time.Location) []model.RawEvent {
	if loc == nil {
		loc = time.UTC
	}
	at := func(day, hour, minute int) model.EventTime {
		d := first.AddDays(day)
		return model.Timed(time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc))
	}
	on := func(day int) model.EventTime {
		return model.AllDay(first.AddDays(day))
	}

	return []model.RawEvent{
		{ID: "sample-standup", Summary: "Team standup", Start: at(0, 9, 0), End: at(0, 9, 30)},
		{ID: "sample-lunch", Summary: "Lunch with Alex", Start: at(1, 12, 0), End: at(1, 13, 0)},
		{ID: "sample-offsite", Summary: "Team offsite", Start: on(2), End: on(4)},
		{ID: "sample-review", Summary: "Quarterly review", Start: at(3, 15, 0), End: at(3, 16, 30)},
		{ID: "sample-release", Summary: "Release window", Start: at(5, 23, 0), End: at(6, 1, 0)},
		{ID: "sample-holiday", Summary: "Public holiday", Start: on(7), End: on(8)},
	}
}
