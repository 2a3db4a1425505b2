package agenda

import (
	"errors"
	"fmt"
	"sync"

	"github.com/teemow/agendacal/internal/model"
)

// MaxWindowDays is the longest window the engine computes.
const MaxWindowDays = 62

// ErrInvalidWindowLength is returned for a window length below one day or
// above the configured maximum.
var ErrInvalidWindowLength = errors.New("window length out of range")

type windowKey struct {
	start  model.Date
	length int
}

// WindowStats reports cache effectiveness.
type WindowStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Window computes and memoizes runs of consecutive dates.
type Window struct {
	mu     sync.Mutex
	cache  map[windowKey][]model.Date
	hits   uint64
	misses uint64

	// OnLookup, when set, is called after every Compute with whether the
	// result came from the cache.
	OnLookup func(hit bool)
}

// NewWindow returns an empty Window.
func NewWindow() *Window {
	return &Window{cache: make(map[windowKey][]model.Date)}
}

// Compute returns length consecutive dates starting at start. Repeated calls
// with the same arguments return the same slice; callers must not modify it.
func (w *Window) Compute(start model.Date, length int) ([]model.Date, error) {
	if length <= 0 || length > MaxWindowDays {
		return nil, fmt.Errorf("%w: %d days, must be between 1 and %d", ErrInvalidWindowLength, length, MaxWindowDays)
	}

	key := windowKey{start: start, length: length}

	w.mu.Lock()
	if dates, ok := w.cache[key]; ok {
		w.hits++
		w.mu.Unlock()
		w.lookup(true)
		return dates, nil
	}

	dates := make([]model.Date, length)
	for i := range dates {
		dates[i] = start.AddDays(i)
	}
	if w.cache == nil {
		w.cache = make(map[windowKey][]model.Date)
	}
	w.cache[key] = dates
	w.misses++
	w.mu.Unlock()

	w.lookup(false)
	return dates, nil
}

// Clear drops every cached window.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache = make(map[windowKey][]model.Date)
}

// Stats returns the hit and miss counters and the current cache size.
func (w *Window) Stats() WindowStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WindowStats{Hits: w.hits, Misses: w.misses, Entries: len(w.cache)}
}

func (w *Window) lookup(hit bool) {
	if w.OnLookup != nil {
		w.OnLookup(hit)
	}
}

// Keys returns the calendar-date keys of dates.
func Keys(dates []model.Date) []string {
	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = d.String()
	}
	return keys
}
