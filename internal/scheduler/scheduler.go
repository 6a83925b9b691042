// Package scheduler drives event delivery: one recovery sweep at startup to
// catch anything missed while the process was down, then a fixed-interval
// poll over active users. Dispatch is strictly sequential per tick; the
// conditional mark-sent update in the store is what makes delivery safe, the
// loop itself only decides and dispatches.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/albapepper/birthday-notifier/internal/event"
	"github.com/albapepper/birthday-notifier/internal/user"
)

// Store is the delivery-tracking surface the scheduler needs.
type Store interface {
	FetchActive(ctx context.Context) ([]user.User, error)
	FetchUnsent(ctx context.Context, t event.Type) ([]user.User, error)
	MarkSent(ctx context.Context, t event.Type, id int64) (bool, error)
	ResetRollover(ctx context.Context, t event.Type, window time.Duration) (int64, error)
}

// Mailer dispatches one message synchronously.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Resolver maps a city to a timezone. A failed lookup skips the user for the
// pass, it never fails the pass.
type Resolver interface {
	Location(city string) (*time.Location, error)
}

// Config controls scheduler timing.
type Config struct {
	Types          []event.Type
	Fire           event.FireTime
	Interval       time.Duration
	RecoveryWindow time.Duration
	SendTimeout    time.Duration
}

// Scheduler runs the recovery sweep and the periodic tick.
type Scheduler struct {
	store    Store
	resolver Resolver
	mailer   Mailer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time // injectable clock for tests
}

// New creates a Scheduler.
func New(store Store, resolver Resolver, mailer Mailer, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Scheduler{
		store:    store,
		resolver: resolver,
		mailer:   mailer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run performs the startup recovery sweep, then polls until ctx is cancelled.
// Intended to be called with `go`.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Scheduler started",
		"interval", s.cfg.Interval,
		"fire_time", s.cfg.Fire.String(),
		"recovery_window", s.cfg.RecoveryWindow)

	s.Recover(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		}
	}
}

// Recover runs the one-time startup sweep: every unsent record regardless of
// active status, with the relaxed elapsed-within-window due check.
func (s *Scheduler) Recover(ctx context.Context) {
	for _, t := range s.cfg.Types {
		users, err := s.store.FetchUnsent(ctx, t)
		if err != nil {
			s.logger.Error("Recovery sweep: fetch unsent failed", "type", t.Name, "error", err)
			continue
		}
		sent := 0
		for _, u := range users {
			if s.process(ctx, t, u, true) {
				sent++
			}
		}
		if sent > 0 || len(users) > 0 {
			s.logger.Info("Recovery sweep done", "type", t.Name, "checked", len(users), "sent", sent)
		}
	}
}

// Tick runs one periodic pass: rollover reset, then strict due evaluation
// over active users. A store failure aborts the tick; the next tick proceeds
// independently. The rollover reset is bounded by the recovery window so a
// delivery just before the year boundary stays claimed until its fire instant
// has aged out of the sweep's reach.
func (s *Scheduler) Tick(ctx context.Context) {
	for _, t := range s.cfg.Types {
		if n, err := s.store.ResetRollover(ctx, t, s.cfg.RecoveryWindow); err != nil {
			s.logger.Error("Tick: rollover reset failed", "type", t.Name, "error", err)
			return
		} else if n > 0 {
			s.logger.Info("Rollover: re-armed sent flags for new year", "type", t.Name, "count", n)
		}

		users, err := s.store.FetchActive(ctx)
		if err != nil {
			s.logger.Error("Tick: fetch active users failed", "type", t.Name, "error", err)
			return
		}
		for _, u := range users {
			s.process(ctx, t, u, false)
		}
	}
}

// process evaluates and, when due, dispatches one user for one event type.
// Returns true only after a successful send was recorded.
func (s *Scheduler) process(ctx context.Context, t event.Type, u user.User, relaxed bool) bool {
	date := u.EventDate(t)
	if date == nil {
		return false
	}
	if u.Sent(t) {
		return false
	}

	loc, err := s.resolver.Location(u.City)
	if err != nil {
		s.logger.Warn("Timezone unresolved, skipping user",
			"user_id", u.ID, "city", u.City, "error", err)
		return false
	}

	now := s.now()
	var due bool
	if relaxed {
		due = event.DuePast(now, *date, loc, s.cfg.Fire, s.cfg.RecoveryWindow, u.Sent(t))
	} else {
		due = event.Due(now, *date, loc, s.cfg.Fire, u.Sent(t))
	}
	if !due {
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	if err := s.mailer.Send(sendCtx, u.Email, t.Subject, t.Body(u.FirstName, u.LastName)); err != nil {
		// Not marked: the user stays unsent and is retried next tick.
		s.logger.Warn("Send failed", "user_id", u.ID, "type", t.Name, "error", err)
		return false
	}

	marked, err := s.store.MarkSent(ctx, t, u.ID)
	if err != nil {
		// Delivered but not recorded: the next pass may send again.
		// At-least-once until the flag transition is confirmed.
		s.logger.Error("Mark sent failed", "user_id", u.ID, "type", t.Name, "error", err)
		return false
	}
	if !marked {
		s.logger.Warn("Already marked sent by a concurrent pass", "user_id", u.ID, "type", t.Name)
		return false
	}

	s.logger.Info("Greeting sent", "user_id", u.ID, "type", t.Name, "email", u.Email)
	return true
}
