// Package poll implements the adaptive poller that checks the server for
// new messages, backing off exponentially while the server is failing.
package poll

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/eventbus"
	"github.com/colonyops/cinq/internal/core/kv"
	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
)

// CheckpointKey is the KV key, relative to the "cinq" scope, holding the
// epoch-millisecond checkpoint sent as ?since=.
const CheckpointKey = "last_notification_check"

// Default texts for items built from a poll response.
const (
	DefaultTitle = "Nouveau message"
	PingBody     = "💫 Ping !"
)

// ErrCycleInFlight is returned by RunCycle when another cycle is running.
var ErrCycleInFlight = errors.New("poll cycle already in flight")

// State is the scheduler lifecycle state.
type State int32

const (
	Stopped State = iota
	Scheduled
	InFlight
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case InFlight:
		return "in-flight"
	default:
		return "stopped"
	}
}

// Message is the summary of the newest message returned by the server.
type Message struct {
	SenderName string
	Content    string
	IsPing     bool
	URL        string
}

// Result is a decoded poll response.
type Result struct {
	NewCount   int
	Latest     *Message
	ServerTime time.Time // zero when the server did not report one
}

// Fetcher performs the poll request.
type Fetcher interface {
	Poll(ctx context.Context, token string, since time.Time) (Result, error)
}

// TokenSource returns the bearer token, or "" when not authenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Publisher receives the scheduler's output.
type Publisher interface {
	PublishNotificationArrived(ctx context.Context, p eventbus.NotificationArrivedPayload) error
	PublishPollCompleted(p eventbus.PollCompletedPayload)
}

// Options configures cadence and backoff.
type Options struct {
	Foreground        time.Duration
	Background        time.Duration
	Idle              time.Duration
	MaxBackoff        int
	BackoffResetAfter time.Duration
	// AppURL is the navigation target for items without their own URL.
	AppURL string
}

// Scheduler runs poll cycles on a single goroutine so that at most one
// request is ever in flight.
type Scheduler struct {
	opts      Options
	fetcher   Fetcher
	tokens    TokenSource
	publisher Publisher
	activity  *Tracker
	checkpt   *kv.TypedKV[int64]
	log       zerolog.Logger
	now       func() time.Time

	state   atomic.Int32
	visible atomic.Bool
	cycles  atomic.Uint64

	cycleMu sync.Mutex // held for the duration of a cycle

	mu          sync.Mutex
	backoff     Backoff
	lastSuccess time.Time
	cancel      context.CancelFunc
	done        chan struct{}

	rearm   chan struct{}
	pollNow chan struct{}
}

// New creates a stopped scheduler. The page starts out visible.
func New(opts Options, fetcher Fetcher, tokens TokenSource, publisher Publisher, activity *Tracker, store kv.KV) *Scheduler {
	s := &Scheduler{
		opts:      opts,
		fetcher:   fetcher,
		tokens:    tokens,
		publisher: publisher,
		activity:  activity,
		checkpt:   kv.Scoped[int64](store, "cinq"),
		log:       logging.Component("poll"),
		now:       time.Now,
		backoff:   NewBackoff(opts.MaxBackoff, opts.BackoffResetAfter),
		rearm:     make(chan struct{}, 1),
		pollNow:   make(chan struct{}, 1),
	}
	s.visible.Store(true)
	activity.OnWake(s.Rearm)
	return s
}

// State reports the lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Multiplier reports the current backoff multiplier.
func (s *Scheduler) Multiplier() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backoff.Multiplier()
}

// LastSuccess is the time of the last successful cycle.
func (s *Scheduler) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

// Interval computes the delay until the next cycle from visibility, idleness
// and the backoff multiplier.
func (s *Scheduler) Interval() time.Duration {
	base := s.opts.Foreground
	switch {
	case !s.visible.Load():
		base = s.opts.Background
	case s.activity.Idle(s.now()):
		base = s.opts.Idle
	}
	return base * time.Duration(s.Multiplier())
}

// Start runs an immediate cycle and then keeps polling until Stop. Calling
// Start on a running scheduler does nothing. After a Stop, Start waits for
// the previous loop to exit so the restart cycle is not lost to it.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.cancel != nil {
			s.mu.Unlock()
			return
		}
		prev := s.done
		if prev != nil && !closed(prev) {
			s.mu.Unlock()
			select {
			case <-prev:
				continue
			case <-ctx.Done():
				return
			}
		}

		loopCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.done = make(chan struct{})
		done := s.done
		s.mu.Unlock()

		s.state.Store(int32(Scheduled))
		go s.loop(loopCtx, done)
		return
	}
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Stop cancels the next tick. A cycle already in flight runs to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Done is closed once the loop has exited after Stop.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// SetVisible records a visibility change and re-arms the timer. Becoming
// visible also requests an immediate cycle.
func (s *Scheduler) SetVisible(visible bool) {
	was := s.visible.Swap(visible)
	if was == visible {
		return
	}
	s.Rearm()
	if visible {
		s.PollNow()
	}
}

// Visible reports the last visibility passed to SetVisible.
func (s *Scheduler) Visible() bool {
	return s.visible.Load()
}

// Rearm asks the loop to recompute the interval. Requests made while a
// cycle is in flight are applied after it settles.
func (s *Scheduler) Rearm() {
	select {
	case s.rearm <- struct{}{}:
	default:
	}
}

// PollNow asks the loop to run a cycle as soon as it is free.
func (s *Scheduler) PollNow() {
	select {
	case s.pollNow <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		if s.done == done {
			s.state.Store(int32(Stopped))
		}
		s.mu.Unlock()
	}()

	s.runFromLoop(ctx)

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	idle := time.NewTimer(s.untilIdle())
	defer idle.Stop()

	reset := func() {
		interval := s.Interval()
		timer.Reset(interval)
		idle.Reset(s.untilIdle())
		s.log.Debug().Dur("interval", interval).Int("multiplier", s.Multiplier()).Msg("poll re-armed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.runFromLoop(ctx)
			reset()
		case <-s.pollNow:
			s.runFromLoop(ctx)
			reset()
		case <-s.rearm:
			reset()
		case <-idle.C:
			// idle onset: stretch the interval
			reset()
		}
	}
}

// untilIdle returns the delay until the user crosses the idle threshold, or a
// long delay when already idle.
func (s *Scheduler) untilIdle() time.Duration {
	d := s.activity.IdleAt().Sub(s.now())
	if d <= 0 {
		return time.Hour
	}
	return d + time.Millisecond
}

func (s *Scheduler) runFromLoop(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_ = s.RunCycle(ctx)
}

// RunCycle performs one poll. It is safe to call while the loop is running;
// overlapping calls return ErrCycleInFlight. Cancellation of ctx does not
// abort an in-flight request.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	if !s.cycleMu.TryLock() {
		return ErrCycleInFlight
	}
	defer s.cycleMu.Unlock()

	prev := s.state.Swap(int32(InFlight))
	defer s.state.CompareAndSwap(int32(InFlight), prev)

	ctx = context.WithoutCancel(ctx)
	ctx = logging.WithSource(ctx, string(eventbus.SourcePoll))
	ctx = logging.WithCycleID(ctx, strconv.FormatUint(s.cycles.Add(1), 10))

	token, err := s.tokens.Token(ctx)
	if err != nil || token == "" {
		if err != nil {
			s.log.Debug().Ctx(ctx).Err(err).Msg("no usable token, skipping poll")
		}
		s.publisher.PublishPollCompleted(eventbus.PollCompletedPayload{
			Skipped:    true,
			Multiplier: s.Multiplier(),
			Interval:   s.Interval(),
		})
		return nil
	}

	since, err := s.checkpt.GetOr(ctx, CheckpointKey, 0)
	if err != nil {
		s.log.Warn().Ctx(ctx).Err(err).Msg("checkpoint unreadable, polling from zero")
	}

	issued := s.now()
	res, err := s.fetcher.Poll(ctx, token, time.UnixMilli(since))
	if err != nil {
		s.mu.Lock()
		s.backoff.Fail(s.now())
		mult := s.backoff.Multiplier()
		s.mu.Unlock()

		s.log.Warn().Ctx(ctx).Err(err).Int("multiplier", mult).Msg("poll failed")
		s.publisher.PublishPollCompleted(eventbus.PollCompletedPayload{
			Err:        err,
			Multiplier: mult,
			Interval:   s.Interval(),
		})
		return err
	}

	s.mu.Lock()
	if s.backoff.Succeed(s.now()) {
		s.log.Info().Ctx(ctx).Msg("poll backoff reset")
	}
	s.lastSuccess = s.now()
	s.mu.Unlock()

	stamp := issued
	if !res.ServerTime.IsZero() {
		stamp = res.ServerTime
	}
	if err := s.checkpt.Set(ctx, CheckpointKey, stamp.UnixMilli()); err != nil {
		s.log.Error().Ctx(ctx).Err(err).Msg("failed to persist poll checkpoint")
	}

	if res.NewCount > 0 {
		arrival := eventbus.NotificationArrivedPayload{
			Item:        s.itemFrom(res.Latest),
			Source:      eventbus.SourcePoll,
			ServerCount: res.NewCount,
		}
		if err := s.publisher.PublishNotificationArrived(ctx, arrival); err != nil {
			s.log.Error().Ctx(ctx).Err(err).Msg("failed to publish arrival")
		}
	}

	s.publisher.PublishPollCompleted(eventbus.PollCompletedPayload{
		NewCount:   res.NewCount,
		Multiplier: s.Multiplier(),
		Interval:   s.Interval(),
	})

	s.log.Debug().Ctx(ctx).Int("new", res.NewCount).Msg("poll complete")
	return nil
}

func (s *Scheduler) itemFrom(m *Message) *notify.Item {
	if m == nil {
		return nil
	}
	item := ItemFromMessage(*m, s.opts.AppURL)
	return &item
}

// ItemFromMessage builds the center item for a message summary. Pings get a
// fixed body and messages without a URL navigate to appURL.
func ItemFromMessage(m Message, appURL string) notify.Item {
	item := notify.Item{
		Title: m.SenderName,
		Body:  m.Content,
		Type:  notify.TypeMessage,
		URL:   m.URL,
	}
	if item.Title == "" {
		item.Title = DefaultTitle
	}
	if m.IsPing {
		item.Type = notify.TypePing
		item.Body = PingBody
	}
	if item.URL == "" {
		item.URL = appURL
	}
	return item
}
