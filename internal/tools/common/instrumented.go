package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/server"
)

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a tracing span, metrics and
// audit logging. A result with IsError set counts as a failed invocation.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		action := instrumentation.NewAction(toolName).WithSpanContext(ctx)
		if sess, ok := sc.Sessions().Current(); ok {
			action.WithUser(sess.Identity.Email)
		}

		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		failure := err
		if err == nil && result != nil && result.IsError {
			failure = errToolResult
		}
		if failure != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, failure)
		} else {
			instrumentation.SetSpanSuccess(span)
		}

		snap := sc.Orchestrator().Snapshot()
		action.WithWindow(snap.StartDate.String(), snap.Days).WithRunID(snap.RunID).Complete(failure)

		sc.Metrics().RecordToolInvocation(ctx, toolName, status, duration)
		sc.Audit().Log(ctx, action)

		return result, err
	}
}

var errToolResult = errors.New("tool returned an error result")
