package agenda

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agendacal/internal/model"
	"github.com/teemow/agendacal/internal/session"
)

func TestRenderText(t *testing.T) {
	snap := Snapshot{
		StartDate: model.NewDate(2025, time.June, 8),
		Days:      2,
		Window:    []string{"2025-06-08", "2025-06-09"},
		Identity:  &session.Identity{Name: "Test User"},
		Index: model.DayIndex{
			"2025-06-08": {
				{ID: "a", Summary: "Offsite", AllDay: true, StartTime: "00:00", EndTime: "23:59"},
				{ID: "b", Summary: "Standup", StartTime: "09:00", EndTime: "09:30"},
			},
		},
	}

	var b strings.Builder
	require.NoError(t, RenderText(&b, snap))
	out := b.String()

	assert.Contains(t, out, "Agenda 2 day(s) from 2025-06-08 for Test User")
	assert.Contains(t, out, "Sun 2025-06-08")
	assert.Contains(t, out, "all day      Offsite")
	assert.Contains(t, out, "09:00-09:30  Standup")
	assert.Contains(t, out, "Mon 2025-06-09\n  (no events)")
	assert.Less(t, strings.Index(out, "Offsite"), strings.Index(out, "Standup"))
}

func TestRenderText_PlaceholderAndError(t *testing.T) {
	snap := Snapshot{
		StartDate:   model.NewDate(2025, time.June, 8),
		Days:        1,
		Window:      []string{"2025-06-08"},
		Placeholder: true,
		Error:       &RunError{Kind: KindLoadError, Message: "boom"},
	}

	var b strings.Builder
	require.NoError(t, RenderText(&b, snap))

	assert.Contains(t, b.String(), "(sample data, not signed in)")
	assert.Contains(t, b.String(), "Error: LOAD_ERROR: boom")
}
