package agenda

import "github.com/teemow/agendacal/internal/model"

// Deduplicator suppresses a second entry with the same event id on the same
// day. It is used for a single run and is not safe for concurrent use.
type Deduplicator struct {
	seen map[string]map[string]struct{}
}

// NewDeduplicator returns an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]map[string]struct{})}
}

// Admit reports whether ev is the first entry with its id on dateKey and
// records it if so. The same id on a different day is admitted.
func (d *Deduplicator) Admit(dateKey string, ev model.DayEvent) bool {
	ids, ok := d.seen[dateKey]
	if !ok {
		ids = make(map[string]struct{})
		d.seen[dateKey] = ids
	}
	if _, dup := ids[ev.ID]; dup {
		return false
	}
	ids[ev.ID] = struct{}{}
	return true
}
