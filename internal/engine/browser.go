package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

// BrowserOptions configure a Browser.
type BrowserOptions struct {
	Interval     time.Duration // poll interval
	ReadTimeout  time.Duration // budget for ListSessions
	WriteTimeout time.Duration // budget for CreateSession
	Logger       *slog.Logger
	Now          func() time.Time
}

// Browser keeps a cached copy of the session list, refreshed on a fixed
// interval. Each refresh replaces the whole list.
type Browser struct {
	dir       SessionDirectory
	opts      BrowserOptions
	scheduler Scheduler
	events    atomic.Pointer[EventBroadcaster]

	paused   atomic.Bool
	creating atomic.Bool

	mu          sync.RWMutex
	sessions    []Session
	refreshedAt time.Time
	lastErr     error
}

// NewBrowser creates a session browser over dir.
func NewBrowser(dir SessionDirectory, opts BrowserOptions) *Browser {
	if opts.Interval <= 0 {
		opts.Interval = constants.DefaultSessionPollInterval
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = constants.DefaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = constants.DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Browser{dir: dir, opts: opts}
}

func (b *Browser) setEvents(e *EventBroadcaster) {
	b.events.Store(e)
}

// Refresh fetches the session list once. On failure the previous list is kept.
func (b *Browser) Refresh(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(ctx, b.opts.ReadTimeout)
	defer cancel()

	sessions, err := b.dir.ListSessions(tctx)

	b.mu.Lock()
	if err != nil {
		b.lastErr = err
		b.mu.Unlock()
		b.opts.Logger.Warn("failed to load sessions", "error", err)
		return fmt.Errorf("list sessions: %w", err)
	}
	b.sessions = sessions
	b.refreshedAt = b.opts.Now()
	b.lastErr = nil
	b.mu.Unlock()

	if e := b.events.Load(); e != nil {
		active, expired := b.Partition()
		e.SendEvent(Event{Type: EventSessions, Data: map[string]any{"active": active, "expired": expired}})
	}
	return nil
}

// Start refreshes immediately and then on every interval until Stop.
// Ticks are skipped while the browser is paused.
func (b *Browser) Start(ctx context.Context) error {
	if b.scheduler.Active() {
		return ErrSchedulerRunning
	}
	// The first refresh failing is not fatal; polling retries.
	_ = b.Refresh(ctx)

	return b.scheduler.Start(context.WithoutCancel(ctx), b.opts.Interval, func(ctx context.Context) {
		if b.paused.Load() {
			return
		}
		_ = b.Refresh(ctx)
	})
}

// Stop ends polling.
func (b *Browser) Stop() {
	b.scheduler.Stop()
}

// Active reports whether polling is running.
func (b *Browser) Active() bool {
	return b.scheduler.Active()
}

// Pause suspends polling without stopping the schedule.
func (b *Browser) Pause() {
	b.paused.Store(true)
}

// Resume re-enables polling after Pause.
func (b *Browser) Resume() {
	b.paused.Store(false)
}

// Paused reports whether polling is paused.
func (b *Browser) Paused() bool {
	return b.paused.Load()
}

// Sessions returns a copy of the cached list.
func (b *Browser) Sessions() []Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.sessions)
}

// Partition splits the cached list into active and expired sessions at the current time.
func (b *Browser) Partition() (active, expired []Session) {
	return PartitionSessions(b.Sessions(), b.opts.Now())
}

// Find returns the cached session with the given ID.
func (b *Browser) Find(id string) (Session, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

// RefreshedAt returns the time of the last successful refresh.
func (b *Browser) RefreshedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.refreshedAt
}

// LastError returns the error of the last refresh, if it failed.
func (b *Browser) LastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastErr
}

// Create validates and submits a new session, then refreshes the list.
// A second call while one is in flight fails with ErrCreateInProgress.
func (b *Browser) Create(ctx context.Context, req NewSession) (Session, error) {
	if err := req.Validate(); err != nil {
		return Session{}, err
	}
	if !b.creating.CompareAndSwap(false, true) {
		return Session{}, ErrCreateInProgress
	}
	defer b.creating.Store(false)

	tctx, cancel := context.WithTimeout(ctx, b.opts.WriteTimeout)
	defer cancel()

	s, err := b.dir.CreateSession(tctx, req)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	b.opts.Logger.Info("session created", "session_id", s.ID, "subject", s.Subject)

	_ = b.Refresh(ctx)
	return s, nil
}
