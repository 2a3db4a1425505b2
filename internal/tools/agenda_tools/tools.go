package agenda_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agendacal/internal/agenda"
	"github.com/teemow/agendacal/internal/model"
	"github.com/teemow/agendacal/internal/server"
	"github.com/teemow/agendacal/internal/tools/common"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// RegisterAgendaTools registers all agenda tools with the MCP server.
// With readOnly set only the tools that do not change the window or the
// calendar selection are registered.
func RegisterAgendaTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if s == nil || sc == nil {
		return fmt.Errorf("mcp server and server context are required")
	}

	viewTool := mcp.NewTool("agenda_view",
		mcp.WithDescription("Show the current agenda: every day of the rolling window with its events, all-day events first"),
		mcp.WithString("date",
			mcp.Description("Only show this day (YYYY-MM-DD). Must be inside the window."),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'text' (default) or 'json'"),
		),
	)
	s.AddTool(viewTool, common.InstrumentedToolHandler("agenda_view", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleView(sc, request)
	}))

	refreshTool := mcp.NewTool("agenda_refresh",
		mcp.WithDescription("Fetch events from all visible calendars and rebuild the agenda"),
		mcp.WithString("format",
			mcp.Description("Output format: 'text' (default) or 'json'"),
		),
	)
	s.AddTool(refreshTool, common.InstrumentedToolHandler("agenda_refresh", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return refreshAndRender(ctx, sc, request.GetString("format", formatText))
	}))

	listTool := mcp.NewTool("agenda_list_calendars",
		mcp.WithDescription("List the signed-in user's calendars and whether each is included in the agenda"),
	)
	s.AddTool(listTool, common.InstrumentedToolHandler("agenda_list_calendars", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListCalendars(ctx, sc)
	}))

	if readOnly {
		return nil
	}

	windowTool := mcp.NewTool("agenda_set_window",
		mcp.WithDescription("Change the agenda window and refresh it"),
		mcp.WithString("startDate",
			mcp.Description("First day (YYYY-MM-DD), or 'today' to follow the current day"),
		),
		mcp.WithNumber("days",
			mcp.Description("Number of days in the window"),
		),
	)
	s.AddTool(windowTool, common.InstrumentedToolHandler("agenda_set_window", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSetWindow(ctx, sc, request)
	}))

	visibleTool := mcp.NewTool("agenda_set_visible_calendars",
		mcp.WithDescription("Choose which calendars are aggregated and refresh the agenda"),
		mcp.WithString("calendarIds",
			mcp.Required(),
			mcp.Description("Calendar IDs as a comma-separated string or an array of strings. An empty value hides all calendars."),
		),
	)
	s.AddTool(visibleTool, common.InstrumentedToolHandler("agenda_set_visible_calendars", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := parseCalendarIDs(request.GetArguments()["calendarIds"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := sc.Orchestrator().SetVisibleCalendars(ids); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to set visible calendars: %v", err)), nil
		}
		return refreshAndRender(ctx, sc, formatText)
	}))

	return nil
}

func handleView(sc *server.ServerContext, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := sc.Orchestrator().Snapshot()

	if date := request.GetString("date", ""); date != "" {
		d, err := model.ParseDate(date)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		key := d.String()
		if len(snap.Window) == 0 {
			return mcp.NewToolResultError("The agenda has not been refreshed yet"), nil
		}
		if !slices.Contains(snap.Window, key) {
			return mcp.NewToolResultError(fmt.Sprintf("%s is outside the agenda window %s..%s", key, snap.Window[0], snap.Window[len(snap.Window)-1])), nil
		}
		snap.Window = []string{key}
		snap.Index = model.DayIndex{key: snap.Index[key]}
	}

	return render(snap, request.GetString("format", formatText))
}

func handleSetWindow(ctx context.Context, sc *server.ServerContext, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var start *model.Date
	if raw, ok := args["startDate"].(string); ok {
		var d model.Date
		if raw = strings.TrimSpace(raw); raw != "" && !strings.EqualFold(raw, "today") {
			parsed, err := model.ParseDate(raw)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			d = parsed
		}
		start = &d
	}

	var days *int
	if _, ok := args["days"]; ok {
		n := request.GetInt("days", 0)
		days = &n
	}

	if err := sc.Orchestrator().SetWindow(start, days); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to set window: %v", err)), nil
	}

	return refreshAndRender(ctx, sc, formatText)
}

type calendarEntry struct {
	model.CalendarInfo
	Visible bool `json:"visible"`
}

func handleListCalendars(ctx context.Context, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	orch := sc.Orchestrator()
	calendars, err := orch.LoadCalendars(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list calendars: %v", err)), nil
	}

	visible := orch.Snapshot().VisibleCalendars
	entries := make([]calendarEntry, 0, len(calendars))
	for _, c := range calendars {
		entries = append(entries, calendarEntry{CalendarInfo: c, Visible: slices.Contains(visible, c.ID)})
	}

	result, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(result)), nil
}

// refreshAndRender runs one aggregation pass. Run failures are reported as
// tool errors followed by the snapshot so the agent sees what is shown.
func refreshAndRender(ctx context.Context, sc *server.ServerContext, format string) (*mcp.CallToolResult, error) {
	orch := sc.Orchestrator()
	err := orch.Refresh(ctx)
	if errors.Is(err, agenda.ErrRunInFlight) {
		return mcp.NewToolResultError("A refresh is already running, try again shortly"), nil
	}

	result, renderErr := render(orch.Snapshot(), format)
	if renderErr != nil || result.IsError {
		return result, renderErr
	}
	if err != nil {
		result.IsError = true
	}
	return result, nil
}

func render(snap agenda.Snapshot, format string) (*mcp.CallToolResult, error) {
	switch strings.ToLower(format) {
	case "", formatText:
		var b strings.Builder
		if err := agenda.RenderText(&b, snap); err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(b.String()), nil
	case formatJSON:
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(data)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unsupported format %q, use 'text' or 'json'", format)), nil
	}
}

// parseCalendarIDs accepts a comma-separated string or an array of strings.
func parseCalendarIDs(param any) ([]string, error) {
	switch v := param.(type) {
	case nil:
		return nil, fmt.Errorf("calendarIds is required")
	case string:
		return splitIDs(v), nil
	case []any:
		ids := make([]string, 0, len(v))
		for i, item := range v {
			id, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("calendarIds[%d] must be a string", i)
			}
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("calendarIds must be a string or array of strings")
	}
}

func splitIDs(s string) []string {
	ids := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
