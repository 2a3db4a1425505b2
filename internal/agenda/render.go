package agenda

import (
	"fmt"
	"io"
	"strings"

	"github.com/teemow/agendacal/internal/model"
)

// RenderText writes a plain-text agenda for snap, one block per day of the
// window. Days without events are listed as free.
func RenderText(w io.Writer, snap Snapshot) error {
	var b strings.Builder

	header := fmt.Sprintf("Agenda %d day(s) from %s", snap.Days, snap.StartDate)
	if snap.Placeholder {
		header += " (sample data, not signed in)"
	} else if snap.Identity != nil {
		header += " for " + snap.Identity.Name
	}
	b.WriteString(header + "\n")
	if snap.Error != nil {
		fmt.Fprintf(&b, "Error: %s\n", snap.Error.Error())
	}

	for _, key := range snap.Window {
		b.WriteString("\n")
		label := key
		if d, err := model.ParseDate(key); err == nil {
			label = d.In(nil).Weekday().String()[:3] + " " + key
		}
		b.WriteString(label + "\n")

		events := snap.Index[key]
		if len(events) == 0 {
			b.WriteString("  (no events)\n")
			continue
		}
		for _, ev := range events {
			when := ev.StartTime + "-" + ev.EndTime
			if ev.AllDay {
				when = "all day"
			}
			line := fmt.Sprintf("  %-11s  %s", when, ev.Summary)
			if ev.IsMultiDay && !ev.AllDay {
				line += " (continues)"
			}
			b.WriteString(line + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
