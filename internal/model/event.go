package model

import (
	"slices"
	"sort"
	"time"
)

// EventTime is the start or end of a RawEvent. Exactly one of the two forms
// is set: a timed instant or an all-day calendar date.
type EventTime struct {
	instant time.Time
	date    Date
	allDay  bool
	set     bool
}

// Timed returns an EventTime holding an instant.
func Timed(t time.Time) EventTime {
	return EventTime{instant: t, set: !t.IsZero()}
}

// AllDay returns an EventTime holding a calendar date.
func AllDay(d Date) EventTime {
	return EventTime{date: d, allDay: true, set: !d.IsZero()}
}

// IsZero reports whether neither form is set.
func (t EventTime) IsZero() bool { return !t.set }

// IsAllDay reports whether t holds a calendar date.
func (t EventTime) IsAllDay() bool { return t.set && t.allDay }

// Instant returns the timed instant; ok is false for all-day or unset values.
func (t EventTime) Instant() (time.Time, bool) {
	if !t.set || t.allDay {
		return time.Time{}, false
	}
	return t.instant, true
}

// Date returns the all-day date; ok is false for timed or unset values.
func (t EventTime) Date() (Date, bool) {
	if !t.set || !t.allDay {
		return Date{}, false
	}
	return t.date, true
}

// RawEvent is an event as returned by the Calendar API, immutable once
// received. All-day events use an exclusive End date.
type RawEvent struct {
	ID      string
	Summary string
	Start   EventTime
	End     EventTime
}

// DayEvent is one day's slice of an event inside a DayIndex bucket.
type DayEvent struct {
	ID         string `json:"id"`
	CalendarID string `json:"calendarId,omitempty"`
	Summary    string `json:"summary"`
	AllDay     bool   `json:"allDay"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	IsMultiDay bool   `json:"isMultiDay"`
}

// DayIndex maps a calendar-date key to the events on that day.
type DayIndex map[string][]DayEvent

// Clone returns a deep copy so that no bucket is shared between indexes.
func (idx DayIndex) Clone() DayIndex {
	if idx == nil {
		return DayIndex{}
	}
	out := make(DayIndex, len(idx))
	for k, events := range idx {
		out[k] = slices.Clone(events)
	}
	return out
}

// Count returns the total number of entries across all days.
func (idx DayIndex) Count() int {
	n := 0
	for _, events := range idx {
		n += len(events)
	}
	return n
}

// Keys returns the day keys in ascending order.
func (idx DayIndex) Keys() []string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CalendarInfo describes one calendar from the user's calendar list.
type CalendarInfo struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	TimeZone   string `json:"timeZone,omitempty"`
	Primary    bool   `json:"primary,omitempty"`
	AccessRole string `json:"accessRole,omitempty"`
	Color      string `json:"color,omitempty"`
}
