package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agendacal/internal/model"
)

func TestWindow_Compute(t *testing.T) {
	tests := []struct {
		name   string
		start  model.Date
		length int
		want   []string
	}{
		{
			name:   "single day",
			start:  model.NewDate(2025, time.June, 8),
			length: 1,
			want:   []string{"2025-06-08"},
		},
		{
			name:   "month boundary",
			start:  model.NewDate(2025, time.June, 29),
			length: 4,
			want:   []string{"2025-06-29", "2025-06-30", "2025-07-01", "2025-07-02"},
		},
		{
			name:   "year boundary",
			start:  model.NewDate(2025, time.December, 30),
			length: 3,
			want:   []string{"2025-12-30", "2025-12-31", "2026-01-01"},
		},
		{
			name:   "leap day",
			start:  model.NewDate(2028, time.February, 28),
			length: 3,
			want:   []string{"2028-02-28", "2028-02-29", "2028-03-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow()
			dates, err := w.Compute(tt.start, tt.length)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Keys(dates))
		})
	}
}

func TestWindow_ConsecutiveAndDistinct(t *testing.T) {
	w := NewWindow()
	start := model.NewDate(2025, time.January, 1)

	for n := 1; n <= 400; n += 37 {
		dates, err := w.Compute(start, n)
		require.NoError(t, err)
		require.Len(t, dates, n)
		assert.Equal(t, start, dates[0])

		seen := make(map[model.Date]bool, n)
		for i, d := range dates {
			assert.False(t, seen[d], "duplicate date %s", d)
			seen[d] = true
			if i > 0 {
				assert.Equal(t, 1, dates[i-1].DaysUntil(d), "gap between %s and %s", dates[i-1], d)
			}
		}
	}
}

func TestWindow_Memoizes(t *testing.T) {
	w := NewWindow()
	var lookups []bool
	w.OnLookup = func(hit bool) { lookups = append(lookups, hit) }

	start := model.NewDate(2025, time.June, 8)
	first, err := w.Compute(start, 8)
	require.NoError(t, err)
	second, err := w.Compute(start, 8)
	require.NoError(t, err)

	// Same backing array, not a recomputed copy.
	assert.Same(t, &first[0], &second[0])
	assert.Equal(t, WindowStats{Hits: 1, Misses: 1, Entries: 1}, w.Stats())
	assert.Equal(t, []bool{false, true}, lookups)

	_, err = w.Compute(start, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), w.Stats().Misses)
}

func TestWindow_Clear(t *testing.T) {
	w := NewWindow()
	start := model.NewDate(2025, time.June, 8)

	first, err := w.Compute(start, 3)
	require.NoError(t, err)
	w.Clear()
	assert.Equal(t, 0, w.Stats().Entries)

	second, err := w.Compute(start, 3)
	require.NoError(t, err)
	assert.NotSame(t, &first[0], &second[0])
	assert.Equal(t, first, second)
}

func TestWindow_RejectsLengthOutOfRange(t *testing.T) {
	w := NewWindow()
	for _, n := range []int{0, -1, MaxWindowDays + 1, 1 << 40} {
		_, err := w.Compute(model.NewDate(2025, time.June, 8), n)
		assert.ErrorIs(t, err, ErrInvalidWindowLength)
	}
	assert.Equal(t, 0, w.Stats().Entries)

	dates, err := w.Compute(model.NewDate(2025, time.June, 8), MaxWindowDays)
	require.NoError(t, err)
	assert.Len(t, dates, MaxWindowDays)
}
