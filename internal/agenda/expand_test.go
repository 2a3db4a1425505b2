package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agendacal/internal/model"
)

func entryKeys(entries []DayEntry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

func TestExpander_AllDayExclusiveEnd(t *testing.T) {
	ev := model.RawEvent{
		ID:      "offsite",
		Summary: "Offsite",
		Start:   model.AllDay(model.NewDate(2025, time.June, 8)),
		End:     model.AllDay(model.NewDate(2025, time.June, 10)),
	}

	entries, err := Expander{}.Expand("work", ev)
	require.NoError(t, err)
	require.Equal(t, []string{"2025-06-08", "2025-06-09"}, entryKeys(entries))

	for _, e := range entries {
		assert.True(t, e.Event.AllDay)
		assert.True(t, e.Event.IsMultiDay)
		assert.Equal(t, "00:00", e.Event.StartTime)
		assert.Equal(t, "23:59", e.Event.EndTime)
		assert.Equal(t, "work", e.Event.CalendarID)
		assert.Equal(t, "offsite", e.Event.ID)
	}
}

func TestExpander_SingleAllDay(t *testing.T) {
	day := model.NewDate(2025, time.June, 8)

	t.Run("exclusive end", func(t *testing.T) {
		entries, err := Expander{}.Expand("", model.RawEvent{ID: "a", Start: model.AllDay(day), End: model.AllDay(day.AddDays(1))})
		require.NoError(t, err)
		require.Equal(t, []string{"2025-06-08"}, entryKeys(entries))
		assert.False(t, entries[0].Event.IsMultiDay)
	})

	t.Run("end equals start", func(t *testing.T) {
		entries, err := Expander{}.Expand("", model.RawEvent{ID: "a", Start: model.AllDay(day), End: model.AllDay(day)})
		require.NoError(t, err)
		require.Equal(t, []string{"2025-06-08"}, entryKeys(entries))
		assert.False(t, entries[0].Event.IsMultiDay)
	})
}

func TestExpander_TimedAcrossYearBoundary(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	ev := model.RawEvent{
		ID:      "nye",
		Summary: "Countdown",
		Start:   model.Timed(time.Date(2025, time.December, 31, 23, 0, 0, 0, jst)),
		End:     model.Timed(time.Date(2026, time.January, 1, 1, 0, 0, 0, jst)),
	}

	t.Run("own offset", func(t *testing.T) {
		entries, err := Expander{}.Expand("", ev)
		require.NoError(t, err)
		require.Equal(t, []string{"2025-12-31", "2026-01-01"}, entryKeys(entries))
		for _, e := range entries {
			assert.False(t, e.Event.AllDay)
			assert.True(t, e.Event.IsMultiDay)
			assert.Equal(t, "23:00", e.Event.StartTime)
			assert.Equal(t, "01:00", e.Event.EndTime)
		}
	})

	t.Run("explicit location", func(t *testing.T) {
		entries, err := Expander{Location: jst}.Expand("", model.RawEvent{
			ID:    "nye",
			Start: model.Timed(time.Date(2025, time.December, 31, 14, 0, 0, 0, time.UTC)),
			End:   model.Timed(time.Date(2025, time.December, 31, 16, 0, 0, 0, time.UTC)),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-12-31", "2026-01-01"}, entryKeys(entries))
	})

	t.Run("utc collapses to one day", func(t *testing.T) {
		entries, err := Expander{Location: time.UTC}.Expand("", ev)
		require.NoError(t, err)
		require.Equal(t, []string{"2025-12-31"}, entryKeys(entries))
		assert.False(t, entries[0].Event.IsMultiDay)
		assert.Equal(t, "14:00", entries[0].Event.StartTime)
		assert.Equal(t, "16:00", entries[0].Event.EndTime)
	})
}

func TestExpander_TimedSameDay(t *testing.T) {
	start := time.Date(2025, time.June, 8, 9, 30, 0, 0, time.UTC)
	entries, err := Expander{}.Expand("", model.RawEvent{
		ID:    "standup",
		Start: model.Timed(start),
		End:   model.Timed(start.Add(15 * time.Minute)),
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.DayEvent{
		ID:        "standup",
		StartTime: "09:30",
		EndTime:   "09:45",
	}, entries[0].Event)
	assert.Equal(t, model.NewDate(2025, time.June, 8), entries[0].Date)
}

func TestExpander_Malformed(t *testing.T) {
	day := model.NewDate(2025, time.June, 8)
	instant := time.Date(2025, time.June, 8, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ev   model.RawEvent
	}{
		{"missing start", model.RawEvent{ID: "x", End: model.AllDay(day)}},
		{"missing end", model.RawEvent{ID: "x", Start: model.Timed(instant)}},
		{"mixed kinds", model.RawEvent{ID: "x", Start: model.AllDay(day), End: model.Timed(instant)}},
		{"timed end before start", model.RawEvent{ID: "x", Start: model.Timed(instant), End: model.Timed(instant.Add(-time.Hour))}},
		{"all-day end before start", model.RawEvent{ID: "x", Start: model.AllDay(day), End: model.AllDay(day.AddDays(-2))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Expander{}.Expand("", tt.ev)
			assert.ErrorIs(t, err, ErrMalformedEvent)
			assert.Contains(t, err.Error(), `"x"`)
			assert.Nil(t, entries)
		})
	}
}

func TestExpander_MaxSpan(t *testing.T) {
	start := model.NewDate(2025, time.January, 1)
	ev := model.RawEvent{ID: "long", Start: model.AllDay(start), End: model.AllDay(start.AddDays(10))}

	_, err := Expander{MaxSpanDays: 5}.Expand("", ev)
	assert.ErrorIs(t, err, ErrMalformedEvent)

	entries, err := Expander{MaxSpanDays: 10}.Expand("", ev)
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	huge := model.RawEvent{ID: "huge", Start: model.AllDay(start), End: model.AllDay(start.AddDays(DefaultMaxSpanDays + 1))}
	_, err = Expander{}.Expand("", huge)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
