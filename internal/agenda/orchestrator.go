package agenda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/logging"
	"github.com/teemow/agendacal/internal/model"
	"github.com/teemow/agendacal/internal/session"
)

// ErrRunSuperseded is returned when a session change during a run caused its
// result to be discarded.
var ErrRunSuperseded = errors.New("run superseded by a session change")

// DefaultWindowDays is the window length used when none is configured.
const DefaultWindowDays = 8

// EventSource is the calendar backend used by a run.
type EventSource interface {
	ListCalendars(ctx context.Context) ([]model.CalendarInfo, error)
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]model.RawEvent, error)
}

// SourceFactory creates an EventSource authorized with bearerToken.
type SourceFactory func(ctx context.Context, bearerToken string) (EventSource, error)

// SessionStore is the session state the orchestrator depends on.
// *session.Manager implements it.
type SessionStore interface {
	Current() (session.Session, bool)
	Generation() uint64
	Check(s session.Session) error
	Expire(generation uint64, reason string) bool
	Logout(reason string)
}

// Phase is the state of the orchestrator's run state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseFetching   Phase = "fetching"
	PhaseReducing   Phase = "reducing"
	PhaseCommitted  Phase = "committed"
	PhaseFailed     Phase = "failed"
)

// Active reports whether a run is in progress in this phase.
func (p Phase) Active() bool {
	return p == PhaseValidating || p == PhaseFetching || p == PhaseReducing
}

// Run results recorded in metrics and logs.
const (
	resultCommitted      = "committed"
	resultPlaceholder    = "placeholder"
	resultEmpty          = "empty"
	resultLoadError      = "load_error"
	resultSessionExpired = "session_expired"
	resultSuperseded     = "superseded"
	resultRejected       = "rejected"
)

// RetryPolicy bounds the attempts of a single run.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy returns 3 attempts starting at 500ms, doubling up to 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
		Multiplier:      2,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

func (p RetryPolicy) backOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxInterval,
	}
}

// RunInfo identifies one aggregation run.
type RunInfo struct {
	ID         string
	StartedAt  time.Time
	StartDate  model.Date
	Days       int
	Generation uint64
	Attempts   int
}

// Listener receives run lifecycle events. Calls are made synchronously in
// registration order.
type Listener interface {
	OnRunStarted(info RunInfo)
	OnRunCommitted(info RunInfo, snapshot Snapshot)
	OnRunFailed(info RunInfo, err *RunError)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Started   func(RunInfo)
	Committed func(RunInfo, Snapshot)
	Failed    func(RunInfo, *RunError)
}

func (l ListenerFuncs) OnRunStarted(info RunInfo) {
	if l.Started != nil {
		l.Started(info)
	}
}

func (l ListenerFuncs) OnRunCommitted(info RunInfo, snapshot Snapshot) {
	if l.Committed != nil {
		l.Committed(info, snapshot)
	}
}

func (l ListenerFuncs) OnRunFailed(info RunInfo, err *RunError) {
	if l.Failed != nil {
		l.Failed(info, err)
	}
}

// Snapshot is a copy of the orchestrator's observable state.
type Snapshot struct {
	StartDate        model.Date           `json:"startDate"`
	Days             int                  `json:"days"`
	Window           []string             `json:"window"`
	Index            model.DayIndex       `json:"index"`
	Loading          bool                 `json:"loading"`
	Phase            Phase                `json:"phase"`
	Error            *RunError            `json:"error,omitempty"`
	Calendars        []model.CalendarInfo `json:"calendars"`
	VisibleCalendars []string             `json:"visibleCalendars"`
	Identity         *session.Identity    `json:"identity,omitempty"`
	Placeholder      bool                 `json:"placeholder"`
	LastCommitted    *time.Time           `json:"lastCommitted,omitempty"`
	RunID            string               `json:"runId,omitempty"`
}

// Options configures an Orchestrator.
type Options struct {
	// Sources creates the calendar backend for a bearer token. Required.
	Sources SourceFactory
	// Sessions provides the signed-in user. Required.
	Sessions SessionStore

	Window   *Window
	Expander Expander
	Retry    RetryPolicy

	// Days is the window length. Zero means DefaultWindowDays.
	Days int
	// MaxDays caps Days and later window changes. Zero means MaxWindowDays;
	// larger values are rejected.
	MaxDays int
	// StartDate pins the first day of the window. Zero follows today.
	StartDate model.Date
	// Location is used for "today" and for the fetch range. Nil means
	// time.Local.
	Location *time.Location
	// VisibleCalendars restricts the calendars fetched after sign-in. Empty
	// means every calendar on the user's list.
	VisibleCalendars []string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Now     func() time.Time
}

// Orchestrator owns the day index and drives aggregation runs.
type Orchestrator struct {
	sources    SourceFactory
	sessions   SessionStore
	window     *Window
	expander   Expander
	retry      RetryPolicy
	loc        *time.Location
	configured []string
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	now        func() time.Time

	running atomic.Bool

	mu            sync.RWMutex
	startDate     model.Date
	followToday   bool
	days          int
	maxDays       int
	dates         []model.Date
	index         model.DayIndex
	phase         Phase
	lastErr       *RunError
	placeholder   bool
	lastCommitted time.Time
	lastRunID     string
	calendars     []model.CalendarInfo
	calendarsGen  uint64
	visible       []string
	visibleGen    uint64

	listenersMu sync.Mutex
	listeners   []Listener
}

// NewOrchestrator creates an Orchestrator with an empty index.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Sources == nil {
		return nil, fmt.Errorf("event source factory is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	maxDays := opts.MaxDays
	if maxDays == 0 {
		maxDays = MaxWindowDays
	}
	if maxDays < 0 || maxDays > MaxWindowDays {
		return nil, fmt.Errorf("%w: maximum of %d days, must be between 1 and %d", ErrInvalidWindowLength, opts.MaxDays, MaxWindowDays)
	}
	if opts.Days < 0 || opts.Days > maxDays {
		return nil, fmt.Errorf("%w: %d days, must be between 1 and %d", ErrInvalidWindowLength, opts.Days, maxDays)
	}

	o := &Orchestrator{
		sources:     opts.Sources,
		sessions:    opts.Sessions,
		window:      opts.Window,
		expander:    opts.Expander,
		retry:       opts.Retry.withDefaults(),
		loc:         opts.Location,
		configured:  slices.Clone(opts.VisibleCalendars),
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
		startDate:   opts.StartDate,
		followToday: opts.StartDate.IsZero(),
		days:        opts.Days,
		maxDays:     maxDays,
		index:       model.DayIndex{},
		phase:       PhaseIdle,
		visible:     slices.Clone(opts.VisibleCalendars),
	}
	if o.window == nil {
		o.window = NewWindow()
	}
	if o.window.OnLookup == nil && o.metrics != nil {
		o.window.OnLookup = func(hit bool) {
			o.metrics.RecordWindowCacheLookup(context.Background(), hit)
		}
	}
	if o.loc == nil {
		o.loc = time.Local
	}
	if o.expander.Location == nil {
		o.expander.Location = o.loc
	}
	if o.days == 0 {
		o.days = DefaultWindowDays
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = logging.WithOperation(o.logger, "agenda")
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Window returns the window cache used by the orchestrator.
func (o *Orchestrator) Window() *Window {
	return o.window
}

// Subscribe registers l for run lifecycle events.
func (o *Orchestrator) Subscribe(l Listener) {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()
	o.listeners = append(o.listeners, l)
}

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Refresh runs one aggregation pass. It returns ErrRunInFlight without doing
// anything if another run has not finished yet.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.RecordAgendaRun(ctx, resultRejected, 0)
		return ErrRunInFlight
	}
	defer o.running.Store(false)

	ctx, span := instrumentation.StartSpan(ctx, "agenda.refresh")
	defer span.End()

	if err := o.run(ctx); err != nil {
		instrumentation.SetSpanError(span, err)
		return err
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}

func (o *Orchestrator) run(ctx context.Context) error {
	// The generation is read before the session so that a concurrent
	// sign-out always makes this run stale.
	info := RunInfo{
		ID:         uuid.NewString(),
		StartedAt:  o.now(),
		Generation: o.sessions.Generation(),
	}

	o.mu.Lock()
	if o.followToday {
		o.startDate = model.DateOf(info.StartedAt.In(o.loc))
	}
	info.StartDate, info.Days = o.startDate, o.days
	o.phase = PhaseValidating
	o.mu.Unlock()

	logger := o.logger.With(logging.RunID(info.ID))
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().
		WithRunID(info.ID).
		WithWindow(info.StartDate.String(), info.Days).
		Build()...)
	start := time.Now()
	finish := func(result string, err error) error {
		span.SetAttributes(attribute.Int(instrumentation.SpanAttrAttempts, info.Attempts))
		o.metrics.RecordAgendaRun(ctx, result, time.Since(start))
		logger.Info("aggregation run finished",
			slog.String("result", result),
			slog.Int("attempts", info.Attempts),
			slog.Duration(logging.KeyDuration, time.Since(start)))
		return err
	}

	dates, err := o.window.Compute(info.StartDate, info.Days)
	if err != nil {
		o.setPhase(PhaseFailed)
		return finish(resultLoadError, err)
	}

	o.emitStarted(info)

	sess, ok := o.sessions.Current()
	if !ok {
		batch := calendarBatch{
			calendarID: PlaceholderCalendarID,
			events:     PlaceholderEvents(dates[0], o.loc),
		}
		index := o.reduce(ctx, logger, dates, []calendarBatch{batch})
		if !o.commit(info, dates, index, true) {
			return finish(resultSuperseded, ErrRunSuperseded)
		}
		return finish(resultPlaceholder, nil)
	}

	if err := o.sessions.Check(sess); err != nil {
		logger.Warn("session no longer valid", logging.UserHash(sess.Identity.Email), logging.Err(err))
		return finish(resultSessionExpired, o.expire(info, fmt.Errorf("%w: %w", ErrSessionExpired, err)))
	}

	src, err := o.sources(ctx, sess.Bearer())
	if err != nil {
		return finish(resultLoadError, o.failLoad(info, err))
	}

	timeMin := dates[0].In(o.loc)
	timeMax := dates[len(dates)-1].AddDays(1).In(o.loc)

	var empty bool
	attempt := func() (model.DayIndex, error) {
		info.Attempts++
		if info.Attempts > 1 {
			o.metrics.RecordAgendaRetry(ctx)
		}

		o.setPhase(PhaseFetching)
		visible, err := o.resolveVisible(ctx, src, info.Generation)
		if err != nil {
			return nil, err
		}
		if len(visible) == 0 {
			empty = true
			return model.DayIndex{}, nil
		}

		batches, err := o.fetchAll(ctx, src, visible, timeMin, timeMax)
		if err != nil {
			return nil, err
		}

		o.setPhase(PhaseReducing)
		return o.reduce(ctx, logger, dates, batches), nil
	}

	index, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(o.retry.backOff()),
		backoff.WithMaxTries(uint(o.retry.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("aggregation attempt failed, retrying",
				slog.Int("attempt", info.Attempts),
				slog.Duration("backoff", next),
				logging.Err(err))
		}),
	)
	if err != nil {
		if IsAuthFailure(err) {
			return finish(resultSessionExpired, o.expire(info, fmt.Errorf("%w: %w", ErrSessionExpired, err)))
		}
		return finish(resultLoadError, o.failLoad(info, err))
	}

	if !o.commit(info, dates, index, false) {
		return finish(resultSuperseded, ErrRunSuperseded)
	}
	if empty {
		return finish(resultEmpty, nil)
	}
	return finish(resultCommitted, nil)
}

type calendarBatch struct {
	calendarID string
	events     []model.RawEvent
}

// fetchAll queries every calendar concurrently and returns the batches in
// the order of ids.
func (o *Orchestrator) fetchAll(ctx context.Context, src EventSource, ids []string, timeMin, timeMax time.Time) ([]calendarBatch, error) {
	batches := make([]calendarBatch, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			events, err := src.ListEvents(gctx, id, timeMin, timeMax)
			if err != nil {
				return err
			}
			batches[i] = calendarBatch{calendarID: id, events: events}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

// reduce builds a fresh index for dates from batches.
func (o *Orchestrator) reduce(ctx context.Context, logger *slog.Logger, dates []model.Date, batches []calendarBatch) model.DayIndex {
	inWindow := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		inWindow[d.String()] = struct{}{}
	}

	index := make(model.DayIndex, len(dates))
	dedupe := NewDeduplicator()
	for _, batch := range batches {
		for _, ev := range batch.events {
			entries, err := o.expander.Expand(batch.calendarID, ev)
			if err != nil {
				logger.Warn("skipping event", logging.Calendar(batch.calendarID), logging.EventID(ev.ID), logging.Err(err))
				o.metrics.RecordSkippedEvent(ctx, "malformed")
				continue
			}
			for _, entry := range entries {
				if _, ok := inWindow[entry.Key]; !ok {
					continue
				}
				if !dedupe.Admit(entry.Key, entry.Event) {
					o.metrics.RecordSkippedEvent(ctx, "duplicate")
					continue
				}
				index[entry.Key] = append(index[entry.Key], entry.Event)
			}
		}
	}

	for _, events := range index {
		sortDay(events)
	}
	return index
}

// sortDay orders a bucket with all-day entries first, then by start time.
// Entries that compare equal keep their reduce order.
func sortDay(events []model.DayEvent) {
	slices.SortStableFunc(events, func(a, b model.DayEvent) int {
		if a.AllDay != b.AllDay {
			if a.AllDay {
				return -1
			}
			return 1
		}
		return strings.Compare(a.StartTime, b.StartTime)
	})
}

// resolveVisible returns the calendars to fetch for generation, loading the
// calendar list first if it has not been loaded for this session.
func (o *Orchestrator) resolveVisible(ctx context.Context, src EventSource, generation uint64) ([]string, error) {
	o.mu.RLock()
	loaded := o.calendarsGen == generation
	o.mu.RUnlock()

	if !loaded {
		calendars, err := src.ListCalendars(ctx)
		if err != nil {
			return nil, err
		}
		o.storeCalendars(calendars, generation)
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.visible), nil
}

func (o *Orchestrator) storeCalendars(calendars []model.CalendarInfo, generation uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calendars = calendars
	o.calendarsGen = generation
	if o.visibleGen != generation {
		o.visible = initialVisible(calendars, o.configured)
		o.visibleGen = generation
	}
}

// initialVisible picks the configured calendars that exist, in configured
// order, or every calendar when none are configured.
func initialVisible(calendars []model.CalendarInfo, configured []string) []string {
	if len(configured) == 0 {
		ids := make([]string, 0, len(calendars))
		for _, c := range calendars {
			ids = append(ids, c.ID)
		}
		return ids
	}
	known := make(map[string]struct{}, len(calendars))
	for _, c := range calendars {
		known[c.ID] = struct{}{}
	}
	ids := make([]string, 0, len(configured))
	for _, id := range configured {
		if _, ok := known[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// commit swaps in index unless the session changed since the run started.
func (o *Orchestrator) commit(info RunInfo, dates []model.Date, index model.DayIndex, placeholder bool) bool {
	o.mu.Lock()
	if o.sessions.Generation() != info.Generation {
		o.phase = PhaseIdle
		o.mu.Unlock()
		o.logger.Info("discarding result of superseded run", logging.RunID(info.ID))
		return false
	}
	o.dates = dates
	o.index = index
	o.phase = PhaseCommitted
	o.lastErr = nil
	o.placeholder = placeholder
	o.lastCommitted = o.now()
	o.lastRunID = info.ID
	snapshot := o.snapshotLocked()
	o.mu.Unlock()

	o.emitCommitted(info, snapshot)
	return true
}

// expire ends the session the run started with and records SESSION_EXPIRED.
func (o *Orchestrator) expire(info RunInfo, cause error) error {
	if !o.sessions.Expire(info.Generation, "session expired") {
		o.setPhase(PhaseIdle)
		return ErrRunSuperseded
	}
	runErr := NewRunError(KindSessionExpired, cause, o.now())
	o.fail(info, runErr)
	return runErr
}

// failLoad records LOAD_ERROR and clears the index, keeping the session.
func (o *Orchestrator) failLoad(info RunInfo, cause error) error {
	if o.sessions.Generation() != info.Generation {
		o.setPhase(PhaseIdle)
		return ErrRunSuperseded
	}
	runErr := NewRunError(KindLoadError, cause, o.now())
	o.fail(info, runErr)
	return runErr
}

func (o *Orchestrator) fail(info RunInfo, runErr *RunError) {
	o.mu.Lock()
	o.index = model.DayIndex{}
	o.placeholder = false
	o.phase = PhaseFailed
	o.lastErr = runErr
	o.lastRunID = info.ID
	o.mu.Unlock()

	o.logger.Error("aggregation run failed",
		logging.RunID(info.ID),
		slog.String("kind", string(runErr.Kind)),
		slog.Int("status", runErr.Status),
		logging.Err(runErr.Err))
	o.emitFailed(info, runErr)
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

// LoadCalendars fetches the user's calendar list. The first load after a
// sign-in makes the configured calendars, or all of them, visible.
func (o *Orchestrator) LoadCalendars(ctx context.Context) ([]model.CalendarInfo, error) {
	if o.running.Load() {
		return nil, ErrRunInFlight
	}

	generation := o.sessions.Generation()
	sess, ok := o.sessions.Current()
	if !ok {
		return nil, session.ErrNoSession
	}
	if err := o.sessions.Check(sess); err != nil {
		o.sessions.Expire(generation, "session expired")
		runErr := NewRunError(KindSessionExpired, fmt.Errorf("%w: %w", ErrSessionExpired, err), o.now())
		o.recordError(runErr)
		return nil, runErr
	}

	src, err := o.sources(ctx, sess.Bearer())
	if err == nil {
		var calendars []model.CalendarInfo
		calendars, err = src.ListCalendars(ctx)
		if err == nil {
			o.storeCalendars(calendars, generation)
			return slices.Clone(calendars), nil
		}
	}

	runErr := NewRunError(KindAPIError, err, o.now())
	o.recordError(runErr)
	o.logger.Warn("failed to load calendar list", logging.Err(err))
	return nil, runErr
}

// RecordError stores err as the last error without touching the index.
func (o *Orchestrator) RecordError(err *RunError) {
	o.recordError(err)
}

func (o *Orchestrator) recordError(err *RunError) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastErr = err
}

// SetStartDate pins the first day of the window. A zero date makes the
// window follow today again.
func (o *Orchestrator) SetStartDate(d model.Date) error {
	return o.SetWindow(&d, nil)
}

// SetWindowLength changes the number of days in the window.
func (o *Orchestrator) SetWindowLength(days int) error {
	return o.SetWindow(nil, &days)
}

// SetWindow changes the start date and the length of the window in one step.
// Nil fields keep their current value. Nothing is applied unless both fields
// are valid.
func (o *Orchestrator) SetWindow(start *model.Date, days *int) error {
	if days != nil && (*days <= 0 || *days > o.maxDays) {
		return fmt.Errorf("%w: %d days, must be between 1 and %d", ErrInvalidWindowLength, *days, o.maxDays)
	}
	return o.mutate(func() {
		changed := false
		if start != nil {
			o.followToday = start.IsZero()
			if !o.followToday && *start != o.startDate {
				o.startDate = *start
				changed = true
			}
		}
		if days != nil && *days != o.days {
			o.days = *days
			changed = true
		}
		if changed {
			o.window.Clear()
		}
	})
}

// MaxDays returns the longest window SetWindow accepts.
func (o *Orchestrator) MaxDays() int {
	return o.maxDays
}

// SetVisibleCalendars replaces the set of calendars fetched by later runs.
func (o *Orchestrator) SetVisibleCalendars(ids []string) error {
	generation := o.sessions.Generation()
	return o.mutate(func() {
		o.visible = slices.Clone(ids)
		o.visibleGen = generation
	})
}

// mutate applies fn while holding the run guard so no run observes a half
// applied change.
func (o *Orchestrator) mutate(fn func()) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrRunInFlight
	}
	defer o.running.Store(false)

	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
	return nil
}

// SignOut ends the current session and clears the index.
func (o *Orchestrator) SignOut(reason string) {
	o.sessions.Logout(reason)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.index = model.DayIndex{}
	o.placeholder = false
	o.lastErr = nil
	if !o.phase.Active() {
		o.phase = PhaseIdle
	}
}

// Snapshot returns a deep copy of the observable state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	dates := o.dates
	if dates == nil {
		dates = make([]model.Date, o.days)
		for i := range dates {
			dates[i] = o.startDate.AddDays(i)
		}
	}

	s := Snapshot{
		StartDate:        o.startDate,
		Days:             o.days,
		Window:           Keys(dates),
		Index:            o.index.Clone(),
		Loading:          o.phase.Active(),
		Phase:            o.phase,
		Calendars:        slices.Clone(o.calendars),
		VisibleCalendars: slices.Clone(o.visible),
		Placeholder:      o.placeholder,
		RunID:            o.lastRunID,
	}
	if s.Calendars == nil {
		s.Calendars = []model.CalendarInfo{}
	}
	if s.VisibleCalendars == nil {
		s.VisibleCalendars = []string{}
	}
	if o.lastErr != nil {
		errCopy := *o.lastErr
		s.Error = &errCopy
	}
	if !o.lastCommitted.IsZero() {
		t := o.lastCommitted
		s.LastCommitted = &t
	}
	if sess, ok := o.sessions.Current(); ok {
		identity := sess.Identity
		s.Identity = &identity
	}
	return s
}

func (o *Orchestrator) snapshotListeners() []Listener {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()
	return slices.Clone(o.listeners)
}

func (o *Orchestrator) emitStarted(info RunInfo) {
	for _, l := range o.snapshotListeners() {
		l.OnRunStarted(info)
	}
}

func (o *Orchestrator) emitCommitted(info RunInfo, snapshot Snapshot) {
	for _, l := range o.snapshotListeners() {
		l.OnRunCommitted(info, snapshot)
	}
}

func (o *Orchestrator) emitFailed(info RunInfo, err *RunError) {
	for _, l := range o.snapshotListeners() {
		l.OnRunFailed(info, err)
	}
}
