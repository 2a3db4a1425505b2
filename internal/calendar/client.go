package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/logging"
	"github.com/teemow/agendacal/internal/model"
)

// Config configures how clients reach the Calendar API.
type Config struct {
	// Endpoint overrides the API base URL (e.g. for tests). Empty means the
	// public Google endpoint.
	Endpoint string

	// HTTPClient supplies the base transport. The bearer token is layered on
	// top of it. Defaults to an HTTP/1.1 transport.
	HTTPClient *http.Client

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Client wraps the Google Calendar service for a single bearer token.
type Client struct {
	svc     *calendar.Service
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewClient creates a Calendar client that authorizes every request with
// "Authorization: Bearer <bearerToken>".
func NewClient(ctx context.Context, bearerToken string, cfg Config) (*Client, error) {
	if bearerToken == "" {
		return nil, fmt.Errorf("bearer token cannot be empty")
	}

	base := cfg.HTTPClient
	if base == nil {
		// Force HTTP/1.1 by disabling HTTP/2
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ForceAttemptHTTP2 = false
		base = &http.Client{Transport: transport}
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: bearerToken,
		TokenType:   "Bearer",
	})
	httpClient := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), tokenSource)

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		svc:     svc,
		logger:  logging.WithOperation(logger, "calendar"),
		metrics: cfg.Metrics,
	}, nil
}

// ListEvents lists the events of one calendar in [timeMin, timeMax).
// Recurring events are expanded server-side and results are ordered by
// start time. All result pages are followed.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]model.RawEvent, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationListEvents,
		instrumentation.NewSpanAttributeBuilder().WithCalendar(calendarID).Build()...)
	defer span.End()
	start := time.Now()

	call := c.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	var events []model.RawEvent
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			events = append(events, toRawEvent(item))
		}
		return nil
	})
	c.record(ctx, instrumentation.OperationListEvents, err, time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to list events for calendar %s: %w", calendarID, toHTTPError(err))
	}

	instrumentation.SetSpanSuccess(span)
	c.logger.Debug("listed events", logging.Calendar(calendarID), slog.Int("count", len(events)))
	return events, nil
}

// ListCalendars lists all calendars on the user's calendar list.
func (c *Client) ListCalendars(ctx context.Context) ([]model.CalendarInfo, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationListCalendars)
	defer span.End()
	start := time.Now()

	var calendars []model.CalendarInfo
	err := c.svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, entry := range page.Items {
			calendars = append(calendars, toCalendarInfo(entry))
		}
		return nil
	})
	c.record(ctx, instrumentation.OperationListCalendars, err, time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to list calendars: %w", toHTTPError(err))
	}

	instrumentation.SetSpanSuccess(span)
	return calendars, nil
}

func (c *Client) record(ctx context.Context, operation string, err error, d time.Duration) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, d)
}

// toHTTPError converts googleapi errors into *HTTPError and leaves
// transport-level errors untouched.
func toHTTPError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &HTTPError{Status: apiErr.Code, Message: apiErr.Message}
	}
	return err
}
